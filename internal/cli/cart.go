package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/cart"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

func newCartCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the cart kept on this machine",
	}
	cmd.AddCommand(
		newCartAddCmd(opts),
		newCartRemoveCmd(opts),
		newCartSetCmd(opts),
		newCartClearCmd(opts),
		newCartShowCmd(opts),
		newCartCheckoutCmd(opts),
	)
	return cmd
}

// withCart opens the local state, loads the saved cart and hands both to fn.
func withCart(opts *rootOptions, fn func(env *clientEnv, c *cart.Session) error) error {
	env, err := openClientEnv(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	session, err := cart.Load(env.store)
	if err != nil {
		return err
	}
	return fn(env, session)
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func newCartAddCmd(opts *rootOptions) *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Add a book to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}

			return withCart(opts, func(env *clientEnv, c *cart.Session) error {
				book, err := lookupBook(cmd, env, id)
				if err != nil {
					return err
				}
				if err := c.Add(*book, quantity); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %q; cart has %d item(s)\n", book.Title, c.TotalItems())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "copies to add")
	return cmd
}

// lookupBook fetches the book from the API, falling back to the cached catalog when the API is unreachable.
func lookupBook(cmd *cobra.Command, env *clientEnv, id uuid.UUID) (*catalog.Book, error) {
	book, apiErr := env.api.GetBook(cmd.Context(), id)
	if apiErr == nil {
		return book, nil
	}

	cached, err := env.cachedCatalog()
	if err != nil {
		return nil, apiErr
	}
	for i := range cached {
		if cached[i].ID == id {
			log.Warn().Err(apiErr).Stringer("book_id", id).Msg("Using cached book snapshot")
			return &cached[i], nil
		}
	}
	return nil, apiErr
}

func newCartRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			return withCart(opts, func(_ *clientEnv, c *cart.Session) error {
				if err := c.Remove(id); err != nil {
					return err
				}
				return printCart(cmd.OutOrStdout(), c.Cart)
			})
		},
	}
}

func newCartSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <book-id> <quantity>",
		Short: "Set a line's quantity; zero or less removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return withCart(opts, func(_ *clientEnv, c *cart.Session) error {
				if err := c.SetQuantity(id, quantity); err != nil {
					return err
				}
				return printCart(cmd.OutOrStdout(), c.Cart)
			})
		},
	}
}

func newCartClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(opts, func(_ *clientEnv, c *cart.Session) error {
				if err := c.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cart cleared")
				return nil
			})
		},
	}
}

func newCartShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart and its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(opts, func(_ *clientEnv, c *cart.Session) error {
				return printCart(cmd.OutOrStdout(), c.Cart)
			})
		},
	}
}

func newCartCheckoutCmd(opts *rootOptions) *cobra.Command {
	var (
		payment string
		details string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method := order.PaymentMethod(payment)
			if !method.Valid() {
				return fmt.Errorf("unknown payment method %q (use esewa or khalti)", payment)
			}

			var rawDetails json.RawMessage
			if details != "" {
				if !json.Valid([]byte(details)) {
					return errors.New("--details must be valid JSON")
				}
				rawDetails = json.RawMessage(details)
			}

			return withCart(opts, func(env *clientEnv, c *cart.Session) error {
				if err := env.requireSession(); err != nil {
					return err
				}
				if c.IsEmpty() {
					return errors.New("cart is empty")
				}

				placed, err := env.api.PlaceOrder(cmd.Context(), c.CheckoutLines(), method, rawDetails)
				if err != nil {
					return err
				}

				if err := c.Clear(); err != nil {
					log.Warn().Err(err).Stringer("order_id", placed.ID).Msg("Order placed but cart not cleared")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s placed: %s (%s, %s)\n",
					placed.ID, placed.TotalAmount.StringFixed(2), placed.PaymentMethod, placed.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payment, "payment", "", "payment method: esewa or khalti")
	cmd.Flags().StringVar(&details, "details", "", "payment details as a JSON object")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func printCart(out io.Writer, c *cart.Cart) error {
	if c.IsEmpty() {
		_, err := fmt.Fprintln(out, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK\tTITLE\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range c.Lines() {
		subtotal := l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.BookID, l.Book.Title, l.Quantity, l.Book.Price.StringFixed(2), subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\n", c.TotalItems(), c.TotalPrice().StringFixed(2))
	return tw.Flush()
}
