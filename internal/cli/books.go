package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/localstore"
)

func newBooksCmd(opts *rootOptions) *cobra.Command {
	var (
		genre   string
		query   string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List catalog books, optionally by genre or search text",
		Long: `List catalog books. --genre keeps one genre ("All" keeps every genre),
--query matches title, author or genre case-insensitively.

Every online listing of the whole catalog is cached locally; --offline filters
that cached copy instead of calling the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Blank queries list everything, as the server does.
			query = strings.TrimSpace(query)

			env, err := openClientEnv(opts)
			if err != nil {
				return err
			}
			defer env.Close()

			var books []catalog.Book
			if offline {
				books, err = env.cachedCatalog()
				if errors.Is(err, localstore.ErrNotFound) {
					return errors.New("no cached catalog yet; run `bookstore books` online once")
				}
				if err != nil {
					return err
				}
				books = catalog.FilterByGenre(books, genre)
				if query != "" {
					books = catalog.Search(books, query)
				}
			} else {
				books, err = env.api.ListBooks(cmd.Context(), catalog.Filter{Genre: genre, Query: query})
				if err != nil {
					return err
				}
				if (genre == "" || genre == catalog.GenreAll) && query == "" {
					if err := env.cacheCatalog(books); err != nil {
						log.Warn().Err(err).Msg("Failed to cache catalog")
					}
				}
			}

			return printBooks(cmd.OutOrStdout(), books)
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "genre to keep (All for every genre)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search text")
	cmd.Flags().BoolVar(&offline, "offline", false, "filter the locally cached catalog")
	cmd.AddCommand(newGenresCmd(opts))
	return cmd
}

func newGenresCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the genres present in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openClientEnv(opts)
			if err != nil {
				return err
			}
			defer env.Close()

			genres, err := env.api.ListGenres(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range genres {
				fmt.Fprintln(cmd.OutOrStdout(), g)
			}
			return nil
		},
	}
}

func printBooks(out io.Writer, books []catalog.Book) error {
	if len(books) == 0 {
		_, err := fmt.Fprintln(out, "no books found")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tGENRE\tPRICE\tSTOCK")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", b.ID, b.Title, b.Author, b.Genre, b.Price.StringFixed(2), b.Stock)
	}
	return tw.Flush()
}
