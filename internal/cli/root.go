package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/client"
)

type rootOptions struct {
	apiURL    string
	statePath string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bookstore",
		Short: "Bookstore server and shopping client",
		Long: `bookstore runs the bookstore HTTP API (serve, migrate, seed, grant-admin)
and doubles as a shopping client for it: browse the catalog, keep a cart on
this machine and check it out.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			setupLogger("development", level)
		},
	}

	apiURL := os.Getenv("BOOKSTORE_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "bookstore API base URL (env BOOKSTORE_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.statePath, "state", os.Getenv("BOOKSTORE_STATE"), "local state file (default: user config dir)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newGrantAdminCmd(),
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoAmICmd(opts),
		newBooksCmd(opts),
		newCartCmd(opts),
		newOrdersCmd(opts),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger points the global zerolog logger at stderr: JSON in production, console output elsewhere.
func setupLogger(env string, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	if env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "bookstore").Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Str("service", "bookstore").Logger()
}
