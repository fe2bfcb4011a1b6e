// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"adcp-service/internal/adcp"
	"adcp-service/internal/config"
	"adcp-service/internal/database"
	"adcp-service/internal/driver"
	"adcp-service/internal/handler"
	"adcp-service/internal/model"
	"adcp-service/internal/repository"
	"adcp-service/internal/routes"
	"adcp-service/internal/service"
	"adcp-service/internal/status"
	"adcp-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler

	client           *adcp.Client
	driverRegistry   *driver.Registry
	projectorService *service.ProjectorService
	operationRepo    repository.OperationRepository
	poller           *status.Poller

	cancel     context.CancelFunc
	background sync.WaitGroup
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, startupSummary(cfg))

	app := &Application{
		config:   cfg,
		logger:   logger,
		eventBus: handler.NewEventBus(logger),
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := app.initializeDriverRegistry(); err != nil {
		return nil, fmt.Errorf("failed to initialize driver registry: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, operation history kept in memory",
			zap.Int("history_size", app.config.Operations.HistorySize),
		)
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	app.database = db

	if app.config.Database.AutoMigrate {
		migrator := database.NewMigrator(db, app.logger, &app.config.Database)
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() error {
	if app.database != nil {
		app.operationRepo = repository.NewOperationRepository(app.database, app.logger)
	} else {
		app.operationRepo = repository.NewMemoryOperationRepository(app.config.Operations.HistorySize)
	}

	app.logger.Info("Repositories initialized successfully")
	return nil
}

// initializeDriverRegistry sets up the projector driver registry
func (app *Application) initializeDriverRegistry() error {
	app.driverRegistry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Int("registered_drivers", len(app.driverRegistry.ListDrivers())),
	)
	return nil
}

// initializeServices creates the ADCP client, driver, poller and service
func (app *Application) initializeServices() error {
	pc := app.config.Projector

	app.client = adcp.NewClient(adcp.Config{
		Host:           pc.Host,
		Port:           pc.Port,
		Username:       pc.Username,
		Password:       pc.Password,
		UseAuth:        pc.UseAuth,
		ConnectTimeout: pc.ConnectTimeout,
		CommandTimeout: pc.CommandTimeout,
		WriteTimeout:   pc.WriteTimeout,
		KeepAlive:      pc.KeepAlive,
		Markers: adcp.Markers{
			PasswordPrompt: pc.Markers.PasswordPrompt,
			Success:        pc.Markers.Success,
			Failure:        pc.Markers.Failure,
			Prompt:         pc.Markers.Prompt,
		},
	}, app.logger, adcp.WithStateListener(app.publishConnectionState))

	info := &model.ProjectorInfo{
		Name:           pc.Name,
		Brand:          model.BrandSony,
		Model:          pc.Model,
		Host:           pc.Host,
		Port:           pc.Port,
		ConnectionType: model.ConnectionTypeTCP,
		UseAuth:        pc.UseAuth,
	}

	projectorDriver, err := app.driverRegistry.CreateDriver(info, app.client)
	if err != nil {
		return fmt.Errorf("failed to create projector driver: %w", err)
	}

	var opts []service.ServiceOption
	if app.config.SNMP.Enabled {
		sc := app.config.SNMP
		fetcher, err := status.NewSNMPFetcher(status.SNMPConfig{
			Host:      sc.Host,
			Port:      sc.Port,
			Community: sc.Community,
			Version:   sc.Version,
			Timeout:   sc.Timeout,
			Retries:   sc.Retries,
			OIDs:      sc.OIDs,
		}, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create SNMP fetcher: %w", err)
		}

		app.poller = status.NewPoller(fetcher, sc.Interval, app.logger,
			status.WithPollTimeout(sc.Timeout*time.Duration(sc.Retries+1)),
			status.WithUpdateCallback(app.publishStatus),
		)
		opts = append(opts, service.WithStatusSource(app.poller))
	}

	app.projectorService = service.NewProjectorService(
		projectorDriver,
		app.client,
		app.operationRepo,
		app.eventBus,
		app.logger,
		opts...,
	)

	app.logger.Info("Services initialized successfully",
		zap.String("projector", info.Name),
		zap.String("host", pc.Host),
		zap.Int("port", pc.Port),
		zap.Bool("snmp_enabled", app.poller != nil),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	app.wsHandler = handler.NewWebSocketHandler(
		app.projectorService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	var db handler.DatabaseChecker
	if app.database != nil {
		db = app.database
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		db,
		app.projectorService,
		app.wsHandler,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices(ctx context.Context) {
	go app.eventBus.Start()
	app.wsHandler.Start()

	if app.poller != nil {
		app.background.Add(1)
		go func() {
			defer app.background.Done()
			app.poller.Run(ctx)
		}()
	}

	app.background.Add(1)
	go func() {
		defer app.background.Done()
		app.startCleanupService(ctx)
	}()

	app.logger.Info("Background services started")
}

// startCleanupService removes operations older than the retention
func (app *Application) startCleanupService(ctx context.Context) {
	ticker := time.NewTicker(app.config.Operations.CleanupInterval)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started",
		zap.Duration("interval", app.config.Operations.CleanupInterval),
		zap.Duration("retention", app.config.Operations.Retention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := app.projectorService.CleanupOperations(cleanupCtx, app.config.Operations.Retention); err != nil {
				app.logger.Error("Failed to cleanup old operations", zap.Error(err))
			}
			cancel()
		}
	}
}

func (app *Application) publishConnectionState(old, new adcp.ConnectionState) {
	severity := model.SeverityInfo
	if new == adcp.StateDisconnected {
		severity = model.SeverityWarning
	}
	app.eventBus.Publish(model.NewProjectorEvent(model.EventConnectionState, "adcp", severity, model.JSONObject{
		"old_state": string(old),
		"new_state": string(new),
	}))
}

func (app *Application) publishStatus(snapshot status.Snapshot) {
	severity := model.SeverityInfo
	data := model.JSONObject{"values": snapshot.Values}
	if snapshot.LastError != "" {
		severity = model.SeverityWarning
		data["error"] = snapshot.LastError
	}
	app.eventBus.Publish(model.NewProjectorEvent(model.EventStatusUpdate, "snmp", severity, data))
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Stop background loops before the session they report on goes away.
	if app.cancel != nil {
		app.cancel()
	}
	app.background.Wait()

	app.wsHandler.Close()
	app.projectorService.Shutdown()
	app.eventBus.Stop()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start runs the HTTP server and background services until a signal arrives
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices(ctx)

	app.waitForShutdown()

	return nil
}

// startupSummary is the configuration logged at startup, without secrets
func startupSummary(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"environment":     cfg.App.Environment,
		"server":          cfg.GetServerAddr(),
		"projector_host":  cfg.Projector.Host,
		"projector_port":  cfg.Projector.Port,
		"projector_model": cfg.Projector.Model,
		"use_auth":        cfg.Projector.UseAuth,
		"snmp_enabled":    cfg.SNMP.Enabled,
		"database":        cfg.Database.Enabled,
		"log_level":       cfg.Logging.Level,
	}
}
