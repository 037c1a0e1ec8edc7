package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/siakad/core/internal/adapters/notify"
	"github.com/siakad/core/internal/adapters/remote"
	"github.com/siakad/core/internal/adapters/repository"
	"github.com/siakad/core/internal/application/services"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/cache"
	"github.com/siakad/core/internal/infrastructure/config"
	"github.com/siakad/core/internal/infrastructure/database"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/infrastructure/metrics"
	"github.com/siakad/core/internal/ports"
)

// app is the wired service graph shared by every command.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	store    *services.Store
	notifier *notify.CronNotifier
	auth     *services.AuthService
	state    *services.AppState

	closers []io.Closer
}

// newApp loads configuration and wires storage, the remote client and the services.
// quiet discards logs, used by one-shot commands that print their own output.
func newApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.NewNop()
	if !quiet {
		appLogger, err = logger.New(cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	a := &app{cfg: cfg, logger: appLogger}

	kv, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.metrics = metrics.New()
	a.store = services.NewStore(kv, appLogger)
	a.closers = append(a.closers, a.store)

	clock := ports.SystemClock{}
	ids := entities.NewIDGenerator(nil)
	client := remote.NewClient(cfg.Remote, appLogger)

	a.notifier = notify.NewCronNotifier(appLogger)
	a.auth = services.NewAuthService(client, a.store, appLogger)

	if cfg.Notifications.FCMEnabled {
		sink, err := notify.NewFCMSink(ctx, cfg.Notifications.FCMCredentialsFile, appLogger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.notifier.SetPushTarget(sink, a.auth.DeviceToken)
	}

	outbox := services.NewOutbox(ctx, a.store, clock, appLogger, a.metrics)
	syncer := services.NewSyncService(client, a.store, outbox, appLogger, a.metrics)
	attendance := services.NewAttendanceService(a.store, a.notifier, clock, ids, appLogger, a.metrics)
	a.state = services.NewAppState(a.auth, syncer, attendance, client, a.store, a.notifier, ids, appLogger, a.metrics, services.StateOptions{
		PollInterval: cfg.Sync.PollInterval,
		MessageLimit: cfg.Remote.MessageLimit,
	})

	return a, nil
}

// openStorage returns the key-value backend selected by storage.driver.
func (a *app) openStorage(ctx context.Context) (ports.KeyValueStore, error) {
	switch a.cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.New(a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repository.MigrateUp(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		a.closers = append(a.closers, db)
		return repository.NewPostgresStore(db.DB), nil

	case config.StorageRedis:
		client, err := cache.Connect(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return repository.NewRedisStore(client, a.cfg.Redis.KeyPrefix), nil

	default:
		return repository.NewMemoryStore(), nil
	}
}

// seedReminderTime stores notifications.default_time when no preference exists yet.
func (a *app) seedReminderTime(ctx context.Context) {
	var pref string
	if a.store.Load(ctx, entities.KeyReminderTime, &pref) || a.cfg.Notifications.DefaultTime == "" {
		return
	}
	if err := a.state.SetReminderTime(ctx, a.cfg.Notifications.DefaultTime); err != nil {
		a.logger.Warnw("Ignoring default reminder time", "value", a.cfg.Notifications.DefaultTime, "error", err)
	}
}

// Close stops the state and releases storage in reverse order.
func (a *app) Close() {
	if a.state != nil {
		a.state.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warnw("Close failed", "error", err)
		}
	}
	a.logger.Sync()
}
