// Package scheduler runs periodic background tasks: retention pruning of
// recorded events and a periodic stats summary.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/events"
)

// Pruner deletes recorded events older than a cutoff.
type Pruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// StatsSource reports signal counters.
type StatsSource interface {
	Stats() map[events.EventType]uint64
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg       config.SchedulerConfig
	retention time.Duration
	dbPath    string

	pruner Pruner
	stats  StatsSource
	now    func() time.Time
	logger zerolog.Logger
}

// NewScheduler creates a task scheduler. pruner and stats may be nil,
// which disables the matching task.
func NewScheduler(cfg config.SchedulerConfig, storage config.StorageConfig, pruner Pruner, stats StatsSource) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		retention: storage.Retention(),
		dbPath:    storage.Path,
		pruner:    pruner,
		stats:     stats,
		now:       time.Now,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs the enabled tasks and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("scheduler started")

	if s.pruner != nil && s.retention > 0 && s.cfg.PruneIntervalSec > 0 {
		go s.every(ctx, time.Duration(s.cfg.PruneIntervalSec)*time.Second, s.runPrune)
	}
	if s.stats != nil && s.cfg.StatsLogIntervalSec > 0 {
		go s.every(ctx, time.Duration(s.cfg.StatsLogIntervalSec)*time.Second, s.logStats)
	}

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// every runs task once immediately and then on each tick.
func (s *Scheduler) every(ctx context.Context, interval time.Duration, task func()) {
	task()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

// runPrune removes events past the retention window.
func (s *Scheduler) runPrune() {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.pruner.Prune(cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("event pruning failed")
		return
	}

	e := s.logger.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff)
	if info, err := os.Stat(s.dbPath); err == nil {
		e = e.Str("database_size", formatBytes(info.Size()))
	}
	e.Msg("event pruning completed")
}

// logStats writes a one-line summary of the signal counters.
func (s *Scheduler) logStats() {
	s.logger.Info().
		Str("signals", summarize(s.stats.Stats())).
		Msg("stats summary")
}

// summarize renders counters as "type=n" pairs sorted by type.
func summarize(stats map[events.EventType]uint64) string {
	if len(stats) == 0 {
		return "none"
	}
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s=%d", t, stats[events.EventType(t)]))
	}
	return strings.Join(parts, " ")
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
