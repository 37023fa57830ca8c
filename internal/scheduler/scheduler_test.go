package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/events"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (p *fakePruner) Prune(cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 2, nil
}

func (p *fakePruner) calls() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.cutoffs...)
}

type fixedStats map[events.EventType]uint64

func (s fixedStats) Stats() map[events.EventType]uint64 { return s }

func TestPruneUsesRetention(t *testing.T) {
	pruner := &fakePruner{}
	s := NewScheduler(
		config.SchedulerConfig{PruneIntervalSec: 3600},
		config.StorageConfig{RetentionHours: 24},
		pruner, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pruner.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, now.Add(-24*time.Hour), pruner.calls()[0])

	cancel()
	<-done
}

func TestDisabledTasksDoNotRun(t *testing.T) {
	pruner := &fakePruner{}
	s := NewScheduler(config.SchedulerConfig{PruneIntervalSec: 1}, config.StorageConfig{}, pruner, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	assert.Empty(t, pruner.calls())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "none", summarize(nil))
	assert.Equal(t, "chat=3 gift=1", summarize(fixedStats{events.EventGift: 1, events.EventChat: 3}))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.50 KB", formatBytes(1536))
	assert.Equal(t, "2.00 MB", formatBytes(2*1024*1024))
}
