package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"opschat/pkg/backend"
	"opschat/pkg/config"
	"opschat/pkg/httpx"
	"opschat/pkg/logger"
	"opschat/pkg/session"
	"opschat/pkg/snapshot"
	"opschat/pkg/sync"
)

// App encapsulates the daemon's components and lifecycle: session bootstrap,
// backend client, sync engine, optional snapshot store and debug listener.
type App struct {
	cfg     *config.Config
	version string

	session *session.Session
	client  *backend.Client
	engine  *sync.Engine
	snap    *snapshot.Store
}

// New initializes resources that do not require a running context. It does
// not start polling or the debug listener; call Run to start those and block
// until shutdown.
func New(cfg *config.Config, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	sess := session.New()
	token, err := cfg.BearerToken()
	if err != nil {
		return nil, err
	}
	if token != "" {
		if err := sess.BeginFromToken(token, cfg.Session.JWTSecret); err != nil {
			return nil, fmt.Errorf("session bootstrap failed: %w", err)
		}
	} else {
		// no credential: the engine stays idle until a session begins
		logger.Warn("no_session_token", "msg", "sync disabled until a session begins")
	}

	doer, err := httpx.New(cfg.Backend.Transport, cfg.BackendTimeout())
	if err != nil {
		return nil, err
	}
	client, err := backend.New(cfg.Backend.BaseURL, doer, sess)
	if err != nil {
		return nil, err
	}

	var snap *snapshot.Store
	if cfg.Snapshot.Enabled {
		snap, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot at %s: %w", cfg.Snapshot.Path, err)
		}
	}

	engine := sync.New(client, sess, sync.Options{
		RoomPollInterval:    cfg.RoomPollInterval(),
		MessagePollInterval: cfg.MessagePollInterval(),
		RefreshRPS:          cfg.Sync.RefreshRPS,
		RefreshBurst:        cfg.Sync.RefreshBurst,
		EventBuffer:         cfg.Sync.EventBuffer,
		Snapshot:            snap,
	})

	return &App{cfg: cfg, version: version, session: sess, client: client, engine: engine, snap: snap}, nil
}

func validateConfig(cfg *config.Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required (flag -backend, env OPSCHAT_BACKEND_URL or config file)")
	}
	if cfg.Snapshot.Enabled && cfg.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required when snapshot is enabled")
	}
	return nil
}

// Engine exposes the sync engine, e.g. for embedding the daemon.
func (a *App) Engine() *sync.Engine { return a.engine }

// Run starts the engine, snapshot retention and the debug listener, then
// blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.snap != nil && a.cfg.Snapshot.Retention.Enabled {
		maxAge := time.Duration(a.cfg.Snapshot.Retention.MaxAgeDays) * 24 * time.Hour
		stop, err := a.snap.StartRetention(ctx, a.cfg.Snapshot.Retention.Cron, maxAge)
		if err != nil {
			return fmt.Errorf("failed to start snapshot retention: %w", err)
		}
		defer stop()
	}

	a.engine.Start(ctx)
	defer a.engine.Stop()

	errCh := a.startDebugListener(ctx)
	go a.logEvents(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if a.snap != nil {
		if err := a.snap.Close(); err != nil {
			logger.Warn("snapshot_close_failed", "error", err)
		}
	}
	return nil
}

// logEvents drains engine notifications into the log; a headless daemon has
// no UI to surface them in.
func (a *App) logEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.engine.Events():
			switch ev.Kind {
			case sync.EventSendFailed:
				logger.Warn("event_send_failed", "room", ev.RoomID, "error", ev.Err)
			case sync.EventRoomCreateFailed:
				logger.Warn("event_room_create_failed", "error", ev.Err)
			default:
				logger.Info("event", "kind", string(ev.Kind), "room", ev.RoomID)
			}
		}
	}
}
