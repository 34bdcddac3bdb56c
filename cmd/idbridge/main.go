package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/idbridge/idbridge/internal/app"
	"github.com/idbridge/idbridge/internal/config"
	identitypg "github.com/idbridge/idbridge/internal/identity/pg"
	"github.com/idbridge/idbridge/internal/observability/logger"
	"github.com/idbridge/idbridge/internal/security/secretbox"
	migrations "github.com/idbridge/idbridge/migrations/postgres"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "idbridge",
		Short: "External identity federation service",
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env is optional; system env wins either way.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config")

	root.AddCommand(serveCmd(&cfgPath), migrateCmd(&cfgPath), keygenCmd(), encryptCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      application.Handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.L().Info("server listening", logger.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				logger.L().Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrations require the postgres driver, got %q", cfg.Storage.Driver)
			}

			logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: cfg.App.Name})
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			store, err := identitypg.New(ctx, identitypg.Config{DSN: cfg.Storage.DSN})
			if err != nil {
				return err
			}
			defer store.Close()

			return migrations.Apply(ctx, store.Pool())
		},
	}
}

func keygenCmd() *cobra.Command {
	var nBytes int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random base64 secret (state signing, secretbox master key)",
		RunE: func(*cobra.Command, []string) error {
			b := make([]byte, nBytes)
			if _, err := rand.Read(b); err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&nBytes, "bytes", 32, "key length in bytes")
	return cmd
}

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a config secret with SECRETBOX_MASTER_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			out, err := secretbox.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
