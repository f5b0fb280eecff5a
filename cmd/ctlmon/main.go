package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ctlmon/internal/channel"
	"ctlmon/internal/follower"
	"ctlmon/internal/mirror"
	"ctlmon/internal/monitor"
)

// Config holds monitor configuration, loaded from environment variables.
type Config struct {
	ChannelPath    string
	LogsDir        string
	DismissKey     byte
	HandoffTimeout time.Duration
	PollInterval   time.Duration
	MirrorAddr     string
	ExitOnEmpty    bool
	ExitOnError    bool
}

func loadConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stateDir := filepath.Join(home, ".ctlmon")

	cfg := Config{
		ChannelPath:    filepath.Join(stateDir, "control"),
		LogsDir:        filepath.Join(stateDir, "logs"),
		DismissKey:     monitor.DefaultDismissKey,
		HandoffTimeout: channel.DefaultHandoffTimeout,
		PollInterval:   follower.DefaultPollInterval,
	}

	if v := os.Getenv("CTLMON_CHANNEL"); v != "" {
		cfg.ChannelPath = v
	}
	if v := os.Getenv("CTLMON_LOGS_DIR"); v != "" {
		cfg.LogsDir = v
	}
	if v := os.Getenv("CTLMON_DISMISS_KEY"); v != "" {
		cfg.DismissKey = v[0]
	}
	if v := os.Getenv("CTLMON_HANDOFF_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HandoffTimeout = d
		}
	}
	if v := os.Getenv("CTLMON_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("CTLMON_MIRROR_ADDR"); v != "" {
		cfg.MirrorAddr = v
	}
	if os.Getenv("CTLMON_EXIT_ON_EMPTY") == "1" {
		cfg.ExitOnEmpty = true
	}
	if os.Getenv("CTLMON_EXIT_ON_ERROR") == "1" {
		cfg.ExitOnError = true
	}

	return cfg
}

func main() {
	cfg := loadConfig()

	// Drop orphaned logs from sessions that never reached Terminating.
	if n := monitor.CleanStaleLogs(cfg.LogsDir); n > 0 {
		log.Printf("removed %d stale log file(s) from %s", n, cfg.LogsDir)
	}

	ch := channel.New(cfg.ChannelPath)
	ch.HandoffTimeout = cfg.HandoffTimeout

	// Optional observation mirror.
	var mir *mirror.Server
	var mirrorSrv *http.Server
	if cfg.MirrorAddr != "" {
		mir = mirror.New()
		mirrorSrv = &http.Server{Addr: cfg.MirrorAddr, Handler: mir.Handler()}
		go func() {
			log.Printf("mirror listening on http://%s", cfg.MirrorAddr)
			if err := mirrorSrv.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("mirror server error: %v", err)
			}
		}()
	}

	// SIGINT/SIGTERM end the monitor loop cleanly, with the terminal
	// restored by the session teardown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := monitor.New(monitor.Config{
		Channel:      ch,
		DismissKey:   cfg.DismissKey,
		PollInterval: cfg.PollInterval,
		ExitOnEmpty:  cfg.ExitOnEmpty,
		ExitOnError:  cfg.ExitOnError,
		Mirror:       mir,
	})

	err := m.Run(ctx)
	if mirrorSrv != nil {
		mirrorSrv.Close()
	}
	if err != nil {
		log.Printf("monitor: %v", err)
	}
	os.Exit(monitor.ExitCode(err))
}
