// Package app composes the application from its parts with fx.
package app

import (
	"context"

	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/dispatch"
	"github.com/ptelles/sendq/internal/lock"
	"github.com/ptelles/sendq/internal/logging"
	"github.com/ptelles/sendq/internal/queue"
	"github.com/ptelles/sendq/internal/session"
	"github.com/ptelles/sendq/internal/settings"
	"github.com/ptelles/sendq/internal/smsgw"
	"github.com/ptelles/sendq/internal/status"
	"github.com/ptelles/sendq/internal/store"
	"github.com/ptelles/sendq/internal/tui"
	"github.com/ptelles/sendq/internal/tui/model"
	"github.com/ptelles/sendq/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("sendq",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideSettings,
			provideStore,
			provideAdapter,
			provideQueue,
			provideGateway,
			provideDispatcher,
			provideViewModel,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideSettings(p Params, logger *zap.Logger) (settings.Settings, error) {
	cfg, err := settings.Load(session.SettingsPath(p.SessionName))
	if err != nil {
		return settings.Settings{}, err
	}
	logger.Info("settings loaded",
		zap.String("backend_url", cfg.BackendURL),
		zap.Int("refresh_interval_s", cfg.RefreshIntervalSeconds))
	return cfg, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideQueue(p Params, cfg settings.Settings, b *bus.Bus, logger *zap.Logger) *queue.Synchronizer {
	return queue.New(cfg, session.SettingsPath(p.SessionName), b, logger)
}

func provideGateway(cfg settings.Settings) smsgw.Sender {
	if cfg.SMSGatewayURL == "" {
		return nil
	}
	return smsgw.NewClient(cfg.SMSGatewayURL)
}

func provideDispatcher(q *queue.Synchronizer, gw smsgw.Sender, adapter *wa.Adapter, db *store.DB, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(q, gw, adapter, db, b, logger)
}

func provideViewModel(q *queue.Synchronizer, d *dispatch.Dispatcher, db *store.DB) *model.ViewModel {
	return model.NewViewModel(q, d, db)
}

func provideTUI(p Params, vm *model.ViewModel, b *bus.Bus, machine *status.Machine, adapter *wa.Adapter, logger *zap.Logger) *tui.App {
	return tui.NewApp(vm, b, machine, adapter, p.SessionName, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, ui *tui.App, q *queue.Synchronizer, db *store.DB, adapter *wa.Adapter, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			q.StartRefreshLoop(context.Background())

			ui.SetOnQuit(func() {
				_ = shutdowner.Shutdown()
			})
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			q.StopRefreshLoop()
			adapter.Disconnect()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("sendq stopped")
			return nil
		},
	})
}
