package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/config"
	"github.com/vasiliy-maslov/bookstore/internal/db"
	bookstoreHttp "github.com/vasiliy-maslov/bookstore/internal/handler/http"
	"github.com/vasiliy-maslov/bookstore/internal/notify"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

const sessionSweepInterval = time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bookstore HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := zerolog.DebugLevel
			if cfg.App.Env == "production" {
				level = zerolog.InfoLevel
			}
			setupLogger(cfg.App.Env, level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("env", cfg.App.Env).Str("stock_policy", string(cfg.Orders.StockPolicy)).Msg("Bookstore starting...")

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	bookRepository := catalog.NewRepository(dbConn.Pool)
	orderRepository := order.NewRepository(dbConn.Pool)
	authRepository := auth.NewRepository(dbConn.Pool)

	catalogSvc := catalog.NewService(bookRepository)
	authSvc := auth.NewService(authRepository, cfg.Auth.SessionTTL)
	orderSvc := order.NewService(orderRepository, bookRepository, newNotifier(cfg.Mail, authSvc), cfg.Orders)

	router := bookstoreHttp.NewRouter(bookstoreHttp.Services{
		Catalog: catalogSvc,
		Orders:  orderSvc,
		Auth:    authSvc,
		Health:  dbConn,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go sweepSessions(ctx, authRepository)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", cfg.App.Port, err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("Bookstore stopped gracefully")
	return nil
}

func newNotifier(cfg config.MailConfig, profiles notify.ProfileLookup) order.Notifier {
	if cfg.SendGridAPIKey == "" {
		log.Info().Msg("SENDGRID_API_KEY not set, order confirmation emails disabled")
		return notify.Noop{}
	}
	emailClient := notify.NewSendGridClient(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress)
	return notify.NewOrderMailer(emailClient, profiles, cfg.FromName)
}

// sweepSessions drops expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, repo auth.Repository) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := repo.DeleteExpiredSessions(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("Failed to delete expired sessions")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("Expired sessions deleted")
			}
		}
	}
}
