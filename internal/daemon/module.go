package daemon

import (
	"context"
	"os"
	"time"

	"github.com/pedrosland/textdeck/internal/bus"
	"github.com/pedrosland/textdeck/internal/config"
	"github.com/pedrosland/textdeck/internal/lock"
	"github.com/pedrosland/textdeck/internal/logging"
	"github.com/pedrosland/textdeck/internal/receipt"
	"github.com/pedrosland/textdeck/internal/selection"
	"github.com/pedrosland/textdeck/internal/session"
	"github.com/pedrosland/textdeck/internal/status"
	"github.com/pedrosland/textdeck/internal/store"
	intsync "github.com/pedrosland/textdeck/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Owner       string // optional override for config default_owner
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideStore,
			provideCoordinator,
			provideBatcher,
			provideEngine,
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

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config unreadable, using defaults", zap.Error(err))
		}
		return &config.Config{}
	}
	return cfg
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
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

func provideCoordinator(db *store.DB, logger *zap.Logger) *selection.Coordinator {
	return selection.NewCoordinator(db, logger)
}

func provideBatcher(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *receipt.Batcher {
	debounce := time.Duration(cfg.ReadDebounceMs) * time.Millisecond
	return receipt.NewBatcher(db, b, debounce, logger)
}

func provideEngine(db *store.DB, b *bus.Bus, machine *status.Machine, coord *selection.Coordinator, batcher *receipt.Batcher, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	interval := time.Duration(cfg.RefreshIntervalMs) * time.Millisecond
	return intsync.NewEngine(db, b, machine, coord, batcher, interval, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, lk *lock.Lock, engine *intsync.Engine, db *store.DB, logger *zap.Logger) {
	owner := p.Owner
	if owner == "" {
		owner = cfg.DefaultOwner
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			if owner != "" {
				engine.SwitchOwner(owner)
			} else {
				logger.Info("no owner configured; waiting for an explicit switch")
			}
			logger.Info("daemon started", zap.String("session", p.SessionName))
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
