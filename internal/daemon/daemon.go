// Package daemon runs the periodic expiry sweep and config hot-reload loop.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/amie-labs/agentgate/internal/config"
	"github.com/amie-labs/agentgate/internal/core"
)

// Daemon drives the background lifecycle work that the request/response CLI
// paths only do lazily: expiring overdue pending actions on a schedule and
// reporting confirmed-but-unexecuted records.
type Daemon struct {
	svc        *core.ActionService
	cfg        config.Config
	configPath string
	logger     *log.Logger
}

// New creates a daemon for the given service and configuration. configPath is
// the file watched for hot-reload; empty disables watching.
func New(svc *core.ActionService, cfg config.Config, configPath string, logger *log.Logger) *Daemon {
	return &Daemon{
		svc:        svc,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, sweeping on the configured schedule.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(d.cfg.Daemon.SweepSchedule, d.sweep)
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	c.Start()
	defer c.Stop()

	d.logger.Info("daemon started", "sweep_schedule", d.cfg.Daemon.SweepSchedule)

	// Run one sweep immediately so a restart catches up on overdue records.
	d.sweep()

	if d.cfg.Daemon.WatchConfig && d.configPath != "" {
		if err := d.watchConfig(ctx); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	d.logger.Info("daemon stopping")
	return nil
}

// sweep expires overdue pending actions and logs stale confirmed records.
func (d *Daemon) sweep() {
	result, err := d.svc.Sweep()
	if err != nil {
		d.logger.Error("sweep failed", "err", err)
		return
	}
	if result.Expired > 0 {
		d.logger.Info("expired pending actions", "count", result.Expired)
	}
	for _, id := range result.StaleConfirmed {
		d.logger.Warn("confirmed action never executed", "action_id", id)
	}
}

// watchConfig reloads lifecycle settings when the config file changes.
// Editors often replace the file, so the parent directory is watched and
// events are filtered by name.
func (d *Daemon) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(d.configPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			d.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("config watcher error", "err", err)
		}
	}
}

func (d *Daemon) reload() {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: d.configPath})
	if err != nil {
		d.logger.Error("config reload failed, keeping previous settings", "err", err)
		return
	}
	d.cfg = cfg
	d.svc.UpdateConfig(core.ServiceConfig{
		DefaultTTLMinutes:     cfg.General.PendingTTLMinutes,
		StaleConfirmedMinutes: cfg.General.StaleConfirmedMinutes,
		DefaultTeamID:         cfg.General.DefaultTeamID,
	})
	d.logger.Info("config reloaded",
		"pending_ttl_minutes", cfg.General.PendingTTLMinutes,
		"stale_confirmed_minutes", cfg.General.StaleConfirmedMinutes)
}
