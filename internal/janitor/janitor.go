// Package janitor periodically drops abandoned conversations and leftover
// avatar staging files.
package janitor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SessionExpirer drops conversations idle longer than ttl.
type SessionExpirer interface {
	Expire(ttl time.Duration) int
}

// Sweeper drops stale rate limiter entries.
type Sweeper interface {
	Sweep() int
}

// Report is the result of one sweep.
type Report struct {
	Sessions int
	Limiter  int
	Files    int
}

// Janitor runs the periodic cleanup.
type Janitor struct {
	sessions SessionExpirer
	limiter  Sweeper
	tempDir  string
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// New creates a Janitor. limiter may be nil.
func New(sessions SessionExpirer, limiter Sweeper, tempDir string, ttl, interval time.Duration) *Janitor {
	return &Janitor{
		sessions: sessions,
		limiter:  limiter,
		tempDir:  tempDir,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a background goroutine that sweeps every interval until ctx
// is done.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Janitor started", "interval", j.interval, "ttl", j.ttl)

		for {
			select {
			case <-ticker.C:
				j.RunOnce()
			case <-ctx.Done():
				slog.Info("Janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce() Report {
	var r Report
	r.Sessions = j.sessions.Expire(j.ttl)
	if j.limiter != nil {
		r.Limiter = j.limiter.Sweep()
	}
	r.Files = j.removeStaleFiles()

	if r.Sessions > 0 || r.Files > 0 {
		slog.Info("Janitor cleanup completed",
			"sessions_expired", r.Sessions,
			"rate_limit_keys", r.Limiter,
			"files_removed", r.Files)
	}
	return r
}

func (j *Janitor) removeStaleFiles() int {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Janitor failed to read temp dir", "dir", j.tempDir, "error", err)
		}
		return 0
	}

	cutoff := j.now().Add(-j.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match("avatar_*", entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.tempDir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Janitor failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
