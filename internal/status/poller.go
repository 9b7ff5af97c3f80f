// Package status polls the backend's coarse status on a fixed interval and
// folds the result into the shared telemetry state.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/eventloop"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/internal/telemetry"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// DefaultInterval between polls
const DefaultInterval = 2 * time.Second

// Source fetches the status snapshot. api.Client implements it.
type Source interface {
	GetStats(ctx context.Context) (models.SystemStatus, error)
}

// Poller runs independently of the push channel. Each poll runs in its own
// goroutine so a slow request never delays the next tick; results are applied
// on the scheduler in completion order.
type Poller struct {
	source    Source
	state     *telemetry.State
	clock     clock.Clock
	scheduler eventloop.Scheduler
	interval  time.Duration

	mu       sync.Mutex
	onStatus func(models.SystemStatus)
	cancel   context.CancelFunc
	done     chan struct{}
	polls    sync.WaitGroup
}

// NewPoller creates a stopped poller
func NewPoller(source Source, state *telemetry.State, clk clock.Clock, scheduler eventloop.Scheduler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:    source,
		state:     state,
		clock:     clk,
		scheduler: scheduler,
		interval:  interval,
	}
}

// OnStatus registers a callback run on the scheduler after every successful
// poll.
func (p *Poller) OnStatus(fn func(models.SystemStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatus = fn
}

// Start polls once immediately and then on every tick until Stop or ctx is
// cancelled. Starting a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	ticker := p.clock.NewTicker(p.interval)

	debug.Info("Starting status poller with interval %v", p.interval)
	p.spawn(ctx)

	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.spawn(ctx)
			}
		}
	}(p.done)
}

func (p *Poller) spawn(ctx context.Context) {
	p.polls.Add(1)
	go func() {
		defer p.polls.Done()
		p.Poll(ctx)
	}()
}

// Poll performs a single request bounded by the poll interval and posts the
// outcome to the scheduler.
func (p *Poller) Poll(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.interval)
	status, err := p.source.GetStats(reqCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}

	p.scheduler.Post(func() {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			debug.Warning("Status poll failed: %v", err)
			p.state.MarkOffline()
			return
		}
		p.state.ApplyStatus(status)

		p.mu.Lock()
		onStatus := p.onStatus
		p.mu.Unlock()
		if onStatus != nil {
			onStatus(status)
		}
	})
}

// Stop halts polling and waits for in-flight requests to return
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.polls.Wait()
	debug.Info("Status poller stopped")
}

// Interval returns the poll period
func (p *Poller) Interval() time.Duration {
	return p.interval
}
