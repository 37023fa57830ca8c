package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/protocol"
)

const defaultPollingInterval = time.Second

// Fetcher performs one batch fetch with the given parameters.
type Fetcher interface {
	FetchBatch(ctx context.Context, params map[string]string) (*protocol.BatchResponse, error)
}

// Polling fetches a batch, waits the interval, and repeats. A failed
// fetch is reported and the loop carries on.
type Polling struct {
	fetcher  Fetcher
	params   *ClientParams
	interval time.Duration
	cb       Callbacks

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stopped  atomic.Bool
	delivery context.Context

	logger zerolog.Logger
}

// NewPolling creates a polling transport.
func NewPolling(fetcher Fetcher, params *ClientParams, interval time.Duration, cb Callbacks) *Polling {
	if interval <= 0 {
		interval = defaultPollingInterval
	}
	p := &Polling{
		fetcher:  fetcher,
		params:   params,
		interval: interval,
		cb:       cb,
		logger:   log.With().Str("component", "polling").Logger(),
	}
	p.delivery = deliveryContext(p)
	return p
}

// Name implements Transport.
func (p *Polling) Name() string { return "polling" }

// Start implements Transport. The loop outlives ctx and runs until Stop.
func (p *Polling) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped.Load() {
		return errors.New("polling transport already stopped")
	}
	if p.done != nil {
		return errors.New("polling transport already started")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(loopCtx, p.done)

	p.logger.Info().Dur("interval", p.interval).Msg("polling started")
	return nil
}

// Stop implements Transport.
func (p *Polling) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.logger.Info().Msg("polling stopped")
}

// Close implements Transport.
func (p *Polling) Close(ctx context.Context) error {
	p.Stop()
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil && !inDelivery(ctx, p) {
		<-done
	}
	return nil
}

func (p *Polling) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.tick(ctx)
		if p.stopped.Load() {
			return
		}
		timer.Reset(p.interval)
	}
}

func (p *Polling) tick(ctx context.Context) {
	resp, err := p.fetcher.FetchBatch(ctx, p.params.Snapshot())
	if p.stopped.Load() || ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Warn().Err(err).Msg("poll fetch failed")
		p.cb.failed(p.delivery, err)
		return
	}

	p.params.Apply(resp.Cursor, resp.InternalExt)
	p.cb.batch(p.delivery, resp)
}
