// File: cmd/auspex/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/auspex-monitoring/auspex/internal/alerting"
	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/notification"
	"github.com/auspex-monitoring/auspex/internal/poller"
	"github.com/auspex-monitoring/auspex/internal/server"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires the monitoring components together
type Application struct {
	config     *config.Config
	logger     *logrus.Logger
	storage    storage.Store
	metricsMgr *metrics.Manager
	dispatcher *notification.Dispatcher
	engine     *alerting.Engine
	poller     *poller.Poller
	server     *server.HTTPServer
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return app, nil
}

func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
	}).Info("Logger initialized")
	return nil
}

func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	// Storage
	store, err := storage.NewStorage(&storage.StorageConfig{
		Type:             app.config.Storage.Type,
		ConnectionString: app.config.Storage.ConnectionString,
		MaxConnections:   app.config.Storage.MaxConnections,
		MaxIdleTime:      app.config.Storage.MaxIdleTime,
		RetentionDays:    app.config.Storage.RetentionDays,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate storage: %w", err)
	}
	app.storage = store

	// Metrics
	app.metricsMgr = metrics.NewManager()
	m := app.metricsMgr.GetMetrics()

	// Notification dispatcher with its channel transports
	if app.config.Notifications.Enabled {
		app.dispatcher = notification.NewDispatcher(&notification.DispatcherConfig{
			RetryAttempts:       app.config.Notifications.RetryAttempts,
			RetryDelay:          app.config.Notifications.RetryDelay,
			MaxRetryDelay:       app.config.Notifications.MaxRetryDelay,
			NotificationTimeout: app.config.Notifications.NotificationTimeout,
		}, store, m,
			notification.NewEmailSender(&app.config.Notifications.SMTP),
			notification.NewSlackEmailSender(&app.config.Notifications.SMTP),
			notification.NewWebhookSender(app.config.Notifications.NotificationTimeout),
			notification.NewPagerDutySender(app.config.Notifications.NotificationTimeout),
		)
	}

	// Alert engine
	app.engine = alerting.NewEngine(&app.config.Engine, store, app.dispatcher, m)

	// SNMP poller
	app.poller = poller.NewPoller(&app.config.Poller, store, app.engine, m)

	// HTTP server
	app.server = server.NewHTTPServer(&app.config.Server, store, app.poller, app.engine, app.metricsMgr, AppVersion)

	app.logger.Info("All components initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting Auspex")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := app.engine.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start alert engine: %w", err)
	}
	if err := app.poller.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	go app.metricsMgr.Run(app.ctx, 30*time.Second)

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"poll_interval":  app.config.Poller.Interval.String(),
	}).Info("Auspex started successfully")
	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping Auspex")

	app.cancel()

	// Stop components in reverse order
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}
	if app.poller != nil {
		if err := app.poller.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop poller")
		}
	}
	if app.engine != nil {
		if err := app.engine.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop alert engine")
		}
	}
	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("Auspex stopped successfully")
	return nil
}

// CLI Commands

var rootCmd = &cobra.Command{
	Use:     "auspex",
	Short:   "SNMP network monitoring and alerting",
	Long:    `Auspex polls network targets over SNMP, records their availability and latency history, and turns status changes into notifications with maintenance-window suppression.`,
	Version: AppVersion,
	RunE:    runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Auspex %s\n", AppVersion)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Poll interval: %s\n", cfg.Poller.Interval)
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test storage connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStorage(&storage.StorageConfig{
			Type:             cfg.Storage.Type,
			ConnectionString: cfg.Storage.ConnectionString,
			MaxConnections:   cfg.Storage.MaxConnections,
			MaxIdleTime:      cfg.Storage.MaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer store.Close()
		fmt.Println("✓ Storage connection successful")

		if cfg.Notifications.SMTP.Host != "" {
			fmt.Printf("SMTP relay configured: %s:%d\n", cfg.Notifications.SMTP.Host, cfg.Notifications.SMTP.Port)
		}

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
