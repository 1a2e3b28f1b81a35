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

	"snapletter/internal/api"
	"snapletter/internal/app"
	"snapletter/internal/infra/config"
	"snapletter/internal/infra/database"
	"snapletter/internal/infra/engine"
	"snapletter/internal/infra/logger"
	"snapletter/internal/infra/scheduler"
	"snapletter/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, renewal scheduler and ops bot",
		Long: `Serve the subscriber API. When RENEWAL_ENABLED is true the renewal sweep
runs on CRON_SPEC_RENEWAL; when TELEGRAM_TOKEN is set the ops bot starts too.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load application configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cfg *config.AppConfig, autoMigrate bool) error {
	logger.Init(cfg)
	log := logger.Component("serve")
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"driver":      cfg.DatabaseDriver,
		"http_addr":   cfg.HTTPAddr,
		"timezone":    cfg.DeliveryLocation.String(),
	}).Info("Configuration loaded")

	// Initialize Database Connection
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	if autoMigrate {
		if err := database.Migrate(db, cfg.DatabaseDriver, database.MigrateUp, logger.Component("migrate")); err != nil {
			return err
		}
	}

	prefRepo, err := database.NewPreferenceRepository(cfg.DatabaseDriver, db)
	if err != nil {
		return err
	}

	engineClient := engine.NewClient(cfg.Engine, logger.Component("engine"))
	if !engineClient.Configured() {
		log.Warn("ENGINE_EVENT_KEY / ENGINE_SIGNING_KEY not set; delivery scheduling will be skipped")
	}

	dispatcher := app.NewDispatcher(engineClient, prefRepo, engineClient.EventName(), logger.Component("dispatcher"))
	reconciler := app.NewReconciler(prefRepo, dispatcher, cfg.DeliveryLocation, logger.Component("reconciler"))
	tracker := app.NewRunTracker(engineClient, logger.Component("run_tracker"))
	subscriptions := app.NewSubscriptionService(prefRepo, reconciler, tracker, logger.Component("subscriptions"))

	// Ops bot (optional)
	var alerter scheduler.Alerter
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err := telegram.NewBot(cfg.TelegramToken, botLogger)
		if err != nil {
			return err
		}
		adminService := app.NewAdminService(subscriptions, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.NewAdminHandlers(adminService, botLogger).Register(bot)
		alerter = telegram.NewAdminAlerter(bot, cfg.AdminTelegramID, botLogger)

		go bot.Start()
		defer bot.Stop()
		log.Info("Ops bot started")
	}

	if cfg.RenewalEnabled {
		renewals := scheduler.NewRenewalScheduler(subscriptions, alerter, logger.Component("scheduler"), cfg.CronSpecRenewal, cfg.DeliveryLocation)
		if err := renewals.Start(); err != nil {
			return err
		}
		defer renewals.Stop()
	}

	router := api.NewRouter(api.RouterDeps{
		Subscribers: api.NewSubscriberHandler(subscriptions),
		Engine:      api.NewEngineHandler(engineClient, cfg.Engine, cfg.Environment),
		DB:          db,
		Logger:      logger.Component("http"),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	log.Info("Application shut down gracefully")
	return nil
}
