// Package app wires the pieces together: config, settings, the API client,
// the state tables, the loader, the event session, and the sinks. Everything
// here is construction and lifecycle; the behavior lives in the packages.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/angelware-net/spectre/internal/api"
	"github.com/angelware-net/spectre/internal/cache"
	"github.com/angelware-net/spectre/internal/config"
	"github.com/angelware-net/spectre/internal/dispatch"
	"github.com/angelware-net/spectre/internal/gamelog"
	"github.com/angelware-net/spectre/internal/loader"
	"github.com/angelware-net/spectre/internal/notify"
	"github.com/angelware-net/spectre/internal/reconcile"
	"github.com/angelware-net/spectre/internal/session"
	"github.com/angelware-net/spectre/internal/settings"
	"github.com/angelware-net/spectre/internal/state"
)

type App struct {
	cfg     config.Config
	dataDir string

	Prefs     *settings.Store
	Client    *api.Client
	Friends   *state.FriendTable
	Instances *state.InstanceTable
	Current   *state.InstanceRef
	Cache     *cache.Cache
	History   *gamelog.DB
	Loader    *loader.Loader
	Session   *session.Manager

	logReader *gamelog.Reader
}

// New builds the full object graph. Nothing is started; Run does that.
func New(cfg config.Config, dataDir string) (*App, error) {
	prefs, err := settings.Open(filepath.Join(dataDir, "settings.json"))
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	cookies := api.NewCookieStore(filepath.Join(dataDir, ".cookies.dat"))
	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.UserAgent,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		cookies,
	)

	friends := state.NewFriendTable()
	instances := state.NewInstanceTable()
	current := state.NewInstanceRef()

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = filepath.Join(dataDir, "cache")
	}
	maxMB := prefs.Int(settings.KeyMaxCacheSize, cfg.Cache.MaxSizeMB)
	imageCache := cache.New(cacheDir, int64(maxMB)*1024*1024)

	history, err := gamelog.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	notifier := notify.NewManager(
		notify.NewDesktop(),
		notify.NewOverlay(cfg.Overlay.Host, cfg.Overlay.Port),
		func() bool { return prefs.Bool(settings.KeyOverlayEnabled, false) },
	)

	ldr := loader.New(client, friends, instances,
		cfg.Loader.BatchSize,
		time.Duration(cfg.Loader.BatchDelayMs)*time.Millisecond,
	)

	rec := reconcile.New(client, friends, instances, current, history, notifier, prefs)
	disp := dispatch.New(rec)

	sess := session.New(
		session.Config{
			URL:         cfg.Pipeline.URL,
			Heartbeat:   time.Duration(cfg.Pipeline.HeartbeatSec) * time.Second,
			Stale:       time.Duration(cfg.Pipeline.StaleSec) * time.Second,
			BackoffBase: time.Duration(cfg.Pipeline.BackoffBaseSec) * time.Second,
			BackoffCap:  time.Duration(cfg.Pipeline.BackoffCapSec) * time.Second,
		},
		session.WebsocketDialer(cfg.API.UserAgent),
		disp.Dispatch,
		cookies,
		ldr,
	)

	a := &App{
		cfg:       cfg,
		dataDir:   dataDir,
		Prefs:     prefs,
		Client:    client,
		Friends:   friends,
		Instances: instances,
		Current:   current,
		Cache:     imageCache,
		History:   history,
		Loader:    ldr,
		Session:   sess,
	}
	if cfg.GameLog.Enabled && cfg.GameLog.Dir != "" {
		a.logReader = gamelog.NewReader(cfg.GameLog.Dir, history)
	}
	return a, nil
}

// Run performs the startup sequence and then blocks until ctx is cancelled:
// trim the cache, load the initial snapshot, start the game log tailer, and
// connect the event stream.
func (a *App) Run(ctx context.Context) error {
	a.Cache.ManageSize()

	if err := a.Loader.LoadSnapshot(ctx); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	if a.logReader != nil {
		go func() {
			if err := a.logReader.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("APP: game log reader: %v", err)
			}
		}()
	}

	// A dial failure enters the session's own reconnection path; the only
	// error Connect surfaces is a missing auth token, and even that is not
	// fatal: the tailer and cache keep running, and login happens out of
	// process.
	if err := a.Session.Connect(ctx); err != nil {
		log.Printf("APP: connect stream: %v", err)
	}

	<-ctx.Done()
	return nil
}

// Close releases everything Run started.
func (a *App) Close() {
	a.Session.Disconnect()
	if err := a.History.Close(); err != nil {
		log.Printf("APP: close history db: %v", err)
	}
}
