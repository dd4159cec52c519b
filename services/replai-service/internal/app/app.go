package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/api/option"

	"github.com/stoik/replai/services/replai-service/internal/analytics"
	"github.com/stoik/replai/services/replai-service/internal/api"
	"github.com/stoik/replai/services/replai-service/internal/auth"
	"github.com/stoik/replai/services/replai-service/internal/billing"
	"github.com/stoik/replai/services/replai-service/internal/calendar"
	"github.com/stoik/replai/services/replai-service/internal/composer"
	"github.com/stoik/replai/services/replai-service/internal/config"
	"github.com/stoik/replai/services/replai-service/internal/db"
	"github.com/stoik/replai/services/replai-service/internal/logging"
	"github.com/stoik/replai/services/replai-service/internal/poller"
	"github.com/stoik/replai/services/replai-service/internal/provider"
	"github.com/stoik/replai/services/replai-service/internal/store"
)

const (
	pollerStopTimeout = 10 * time.Second
	httpStopTimeout   = 5 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "replai",
	Short: "Replai email auto-reply service",
	Long:  "Polls connected mailboxes, classifies new mail and answers it with generated replies",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API server and the mailbox pollers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel)

		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()
		st := store.New(pool)

		var googleOpts []option.ClientOption
		if cfg.Google.APIEndpoint != "" {
			googleOpts = append(googleOpts, option.WithEndpoint(cfg.Google.APIEndpoint))
		}
		factory := provider.NewFactory(provider.OAuthConfig(cfg.Google), st, cfg.Sync.LookbackDays, logging.ForComponent(logger, "provider"), googleOpts...)
		recorder := analytics.New(st, logging.ForComponent(logger, "analytics"))
		comp := composer.New(composer.NewOpenAIGenerator(cfg.AI, logging.ForComponent(logger, "composer")))

		service := poller.NewService(st, factory, recorder, comp, poller.Config{
			Interval:  cfg.Sync.Interval,
			BatchSize: cfg.Sync.BatchSize,
		}, logging.ForComponent(logger, "poller"))
		if err := service.Start(ctx); err != nil {
			return err
		}

		router := api.NewRouter(api.Deps{
			Store:     st,
			Poller:    service,
			Connector: factory,
			Analytics: recorder,
			Calendar:  calendar.NewService(st, factory, logging.ForComponent(logger, "calendar")),
			Billing:   billing.NewService(cfg.Stripe, cfg.Server.FrontendURL, st, logging.ForComponent(logger, "billing")),
			Auth:      auth.NewManager(cfg.JWT.Secret, cfg.JWT.Expiry),
			Config:    cfg,
			Logger:    logging.ForComponent(logger, "api"),
		})
		server := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		select {
		case <-sigChan:
			logger.Info("Shutting down gracefully...")
		case err := <-errChan:
			logger.Error("HTTP server failed", "error", err)
			cancel()
			service.Stop(pollerStopTimeout)
			return err
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), httpStopTimeout)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server did not stop cleanly", "error", err)
		}

		cancel()
		if !service.Stop(pollerStopTimeout) {
			logger.Warn("Some mailbox ticks may not have completed")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Flags
	rootCmd.PersistentFlags().String("database.url", "", "Database connection URL")
	rootCmd.PersistentFlags().String("server.port", "8000", "HTTP listen port")
	rootCmd.PersistentFlags().Duration("sync.interval", 60*time.Second, "Mailbox poll interval")
	rootCmd.PersistentFlags().Int64("sync.batch_size", 5, "Unread messages fetched per tick")
	rootCmd.PersistentFlags().String("log.level", "info", "Log level: debug, info, warn or error")

	// Bind flags to viper
	for _, name := range []string{"database.url", "server.port", "sync.interval", "sync.batch_size", "log.level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./services/replai-service")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
