package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

func newOrdersCmd(opts *rootOptions) *cobra.Command {
	var orderID string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openClientEnv(opts)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.requireSession(); err != nil {
				return err
			}

			if orderID != "" {
				id, err := parseID("order", orderID)
				if err != nil {
					return err
				}
				o, err := env.api.GetOrder(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printOrderDetail(cmd.OutOrStdout(), o)
			}

			orders, err := env.api.MyOrders(cmd.Context())
			if err != nil {
				return err
			}
			return printOrders(cmd.OutOrStdout(), orders)
		},
	}
	cmd.Flags().StringVar(&orderID, "id", "", "show one order with its lines")
	return cmd
}

func printOrders(out io.Writer, orders []order.Order) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(out, "no orders yet")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPLACED\tSTATUS\tPAYMENT\tITEMS\tTOTAL")
	for _, o := range orders {
		items := 0
		for _, l := range o.Items {
			items += l.Quantity
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Status, o.PaymentMethod, items, o.TotalAmount.StringFixed(2))
	}
	return tw.Flush()
}

func printOrderDetail(out io.Writer, o *order.Order) error {
	fmt.Fprintf(out, "order %s (%s, %s)\n", o.ID, o.Status, o.PaymentMethod)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tQTY\tPRICE")
	for _, l := range o.Items {
		title := l.BookID.String()
		if l.Book != nil {
			title = l.Book.Title
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", title, l.Quantity, l.Price.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\n", o.TotalAmount.StringFixed(2))
	return tw.Flush()
}
