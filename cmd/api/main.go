package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/account"
	"github.com/mediassist/backend/internal/api"
	"github.com/mediassist/backend/internal/api/handlers"
	"github.com/mediassist/backend/internal/auth"
	"github.com/mediassist/backend/internal/cache/redis"
	"github.com/mediassist/backend/internal/catalog"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/metrics"
	"github.com/mediassist/backend/internal/middleware/ratelimit"
	"github.com/mediassist/backend/internal/report"
	"github.com/mediassist/backend/internal/storage/sqlite"
	"github.com/mediassist/backend/pkg/config"
	appLogger "github.com/mediassist/backend/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mediassist",
		Short:        "MediAssist disease prediction backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQLite schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			ctx := cmd.Context()
			store, err := sqlite.NewClient(ctx, cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.InitSchema(ctx); err != nil {
				return err
			}
			fmt.Printf("Schema ready at %s\n", cfg.SQLite.Path)
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the symptom catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}

			asYAML, _ := cmd.Flags().GetBool("yaml")
			if asYAML {
				out, err := cat.YAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			term, _ := cmd.Flags().GetString("search")
			for _, c := range cat.Search(term) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", c.Name)
				for _, s := range c.Symptoms {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %s\n", s, catalog.DisplayName(s))
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("yaml", false, "emit the catalog as a YAML file usable as catalog.path")
	cmd.Flags().String("search", "", "only show symptoms whose name contains this text")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the prediction cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached prediction, e.g. after deploying a new model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			if !cfg.Redis.Enabled {
				return fmt.Errorf("redis is disabled; nothing to flush")
			}
			cache, err := redis.NewClient(cmd.Context(), cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer cache.Close()

			n, err := cache.InvalidatePredictions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d cached predictions\n", n)
			return nil
		},
	})
	return cmd
}

func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := appLogger.Init(appLogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		Service:    "mediassist",
		Env:        cfg.Env,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runServer() error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting MediAssist backend", zap.String("env", cfg.Env))
	metrics.Init()

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := sqlite.NewClient(startCtx, cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("failed to create SQLite client: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(startCtx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load symptom catalog: %w", err)
	}
	appLogger.Info("Symptom catalog loaded", zap.Int("symptoms", cat.Size()))

	gateway, err := newGateway(startCtx, cfg, cat)
	if err != nil {
		return err
	}

	accounts, err := account.NewService(store, cfg.Auth.BcryptCost, cfg.Reports.CascadeOnAccountDelete)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	scale, _ := inference.ParseScale(cfg.Inference.ScoreScale)

	app := api.NewApp(cfg, api.Dependencies{
		Catalog:    cat,
		Predictor:  gateway.predictor,
		Reports:    report.NewService(report.NewBuilder(), store, store, gateway.predictor),
		Accounts:   accounts,
		Tokens:     auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
		Limiter:    limiter,
		ScoreScale: scale,
		Ready:      gateway.ready(store),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Shutdown did not complete", zap.Error(err))
	}
	if gateway.cache != nil {
		_ = gateway.cache.Close()
	}
	appLogger.Info("Server stopped")
	return nil
}

type gatewayDeps struct {
	predictor inference.Predictor
	cache     *redis.Client
}

func (g gatewayDeps) ready(store *sqlite.Client) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{"sqlite": store}
	if g.cache != nil {
		deps["redis"] = g.cache
	}
	return deps
}

// newGateway wires the configured transport behind the catalog check, the
// circuit breaker and, when Redis is enabled, the prediction cache.
func newGateway(ctx context.Context, cfg *config.Config, cat *catalog.Catalog) (gatewayDeps, error) {
	scale, err := inference.ParseScale(cfg.Inference.ScoreScale)
	if err != nil {
		return gatewayDeps{}, err
	}
	timeout := time.Duration(cfg.Inference.TimeoutSec) * time.Second

	var transport inference.Predictor
	switch cfg.Inference.Mode {
	case "process":
		transport = inference.NewProcessPredictor(cfg.Inference.Command, cfg.Inference.Args, "", timeout, scale)
	default:
		transport = inference.NewHTTPPredictor(cfg.Inference.URL, timeout, scale)
	}

	opts := []inference.Option{
		inference.WithBreaker(inference.NewBreaker(
			cfg.Inference.BreakerFailureThreshold,
			time.Duration(cfg.Inference.BreakerTimeoutSec)*time.Second,
		)),
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// The cache is an optimization; serve without it.
			appLogger.Warn("Prediction cache disabled", zap.Error(err))
			cache = nil
		} else {
			opts = append(opts, inference.WithCache(cache, time.Duration(cfg.Inference.CacheTTLSec)*time.Second))
		}
	}

	appLogger.Info("Classifier configured",
		zap.String("mode", cfg.Inference.Mode),
		zap.Duration("timeout", timeout),
		zap.String("score_scale", string(scale)),
		zap.Bool("cache", cache != nil),
	)

	return gatewayDeps{
		predictor: inference.NewGateway(cat, transport, cfg.Inference.Mode, opts...),
		cache:     cache,
	}, nil
}
