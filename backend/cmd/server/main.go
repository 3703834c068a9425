package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/user/stocksim/backend/internal/analysis"
	"github.com/user/stocksim/backend/internal/handlers"
	"github.com/user/stocksim/backend/internal/middleware"
	"github.com/user/stocksim/backend/internal/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "stocksim",
		Short:        "Simulated stock trading backend",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSentimentCmd())
	rootCmd.AddCommand(newVerifyCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.withAuth(); err != nil {
		return err
	}

	if err := a.auth.EnsureDemoUser(ctx, a.cfg.DemoUser, a.cfg.DemoPassword); err != nil {
		a.log.Error().Err(err).Msg("failed to create demo user")
	}
	if a.sim != nil {
		go a.sim.Run(ctx, simTickInterval)
	}

	go a.market.Cleanup(ctx, time.Minute)
	go a.sentiment.Cleanup(ctx, time.Minute)

	limiter := middleware.NewIPRateLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst, a.log)
	go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	server := fiber.New(fiber.Config{
		AppName:               "stocksim",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	h := handlers.New(a.auth, a.trading, a.market, a.sentiment, analysis.NewService(a.market, a.log), a.log)
	handlers.SetupRoutes(server, h, a.tokens, limiter)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.cfg.Port).Str("store", a.cfg.Store).Str("market", a.cfg.MarketSource).Msg("starting server")
		errCh <- server.Listen(":" + a.cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	return server.ShutdownWithTimeout(10 * time.Second)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store != "postgres" {
				return fmt.Errorf("migrate needs STORE=postgres, got %q", cfg.Store)
			}
			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			store.Close()
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func newSentimentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment SYMBOL [SYMBOL...]",
		Short: "Print composite sentiment readings as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(args) == 1 {
				reading, err := a.sentiment.Composite(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return enc.Encode(reading)
			}
			return enc.Encode(a.sentiment.Market(cmd.Context(), args))
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify USERNAME",
		Short: "Check stored holdings against the transaction log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("%w: %s", models.ErrUserNotFound, args[0])
			}
			drift, err := a.trading.Verify(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drift) == 0 {
				fmt.Fprintf(out, "%s: holdings match the transaction log\n", user.Username)
				return nil
			}
			for _, line := range drift {
				fmt.Fprintln(out, line)
			}
			return errors.New("holdings drifted from the transaction log")
		},
	}
}
