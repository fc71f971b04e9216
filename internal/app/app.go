package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trackpoint/location-agent/internal/config"
	"trackpoint/location-agent/internal/positionsource"
	"trackpoint/location-agent/internal/queue"
	"trackpoint/location-agent/internal/reachability"
	"trackpoint/location-agent/internal/reporter"
	"trackpoint/location-agent/internal/store"
	"trackpoint/location-agent/internal/uploader"
)

// App wires together the location agent services and manages their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run starts all configured services and blocks until the context is
// cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	db, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.store = db

	if err := a.store.InitSchema(ctx); err != nil {
		return err
	}

	defer func() {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()

	deviceID, err := a.store.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("resolve device id: %w", err)
	}
	a.logger.Info("device identity resolved", "device_id", deviceID)

	serverURL := a.cfg.ServerBaseURL
	if serverURL == "" {
		serverURL, err = discoverCollector(ctx, a.logger)
		if err != nil {
			return fmt.Errorf("no collector configured and discovery failed: %w", err)
		}
	}

	pending := queue.New(ctx, a.store, a.logger)
	if n := pending.Count(); n > 0 {
		a.logger.Info("restored pending samples from previous run", "count", n)
	}

	up := uploader.New(serverURL, deviceID, a.cfg.APISecret, pending, reachability.New(), a.logger)

	cfg := a.cfg
	engine := reporter.New(func() config.Config { return cfg }, up, a.logger)

	source := positionsource.New(a.cfg.PositionBroker, a.cfg.PositionTopic, engine.Submit, a.logger)
	if err := source.Start(); err != nil {
		return err
	}
	defer source.Stop()

	engineErrCh := make(chan error, 1)
	go func() {
		engineErrCh <- engine.Run(ctx)
	}()

	// SIGUSR1 requests an immediate upload of the last known position.
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, syscall.SIGUSR1)
	defer signal.Stop(forceCh)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down")
			return nil
		case <-forceCh:
			if err := engine.ForceUpload(ctx); err != nil {
				a.logger.Warn("forced upload skipped", "error", err)
			}
		case err := <-engineErrCh:
			if err != nil {
				return fmt.Errorf("decision engine: %w", err)
			}
			return nil
		case event := <-engine.Events():
			a.logger.Info("decision cycle",
				"status", event.Status,
				"pending", event.QueueCount,
				"latitude", event.Sample.Latitude,
				"longitude", event.Sample.Longitude,
			)
		}
	}
}
