package poller

import (
	"context"
	"log"
	"time"
)

// Clock schedules poll ticks. The real implementation delegates to time.After;
// tests substitute a fake for deterministic tick control.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production Clock backed by the runtime timer.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// StatusFetcher is the slice of Client the poller needs.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, runID string) (*Snapshot, error)
}

// Poller repeatedly fetches a run's status projection and hands each snapshot
// to OnUpdate. Fetches are strictly sequential: a new fetch never starts
// before the previous one has resolved and its interval has elapsed.
type Poller struct {
	Client   StatusFetcher
	Interval time.Duration
	Clock    Clock

	// OnUpdate receives each successfully fetched snapshot. It runs on the
	// polling goroutine, so it must not block for long.
	OnUpdate func(*Snapshot)
}

// New creates a poller with the real clock.
func New(client StatusFetcher, interval time.Duration, onUpdate func(*Snapshot)) *Poller {
	return &Poller{
		Client:   client,
		Interval: interval,
		Clock:    RealClock{},
		OnUpdate: onUpdate,
	}
}

// Run polls until the run reaches a terminal status or ctx is cancelled. The
// first fetch happens immediately. Fetch failures are skipped ticks: logged
// and retried on the next interval. Once a terminal status is observed no
// further requests are made. A fetch that completes after cancellation is
// discarded without invoking OnUpdate.
func (p *Poller) Run(ctx context.Context, runID string) error {
	for {
		snapshot, err := p.Client.FetchStatus(ctx, runID)

		// Cancellation wins over any in-flight result.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			log.Printf("[Poller] Fetch failed for run %s: %v", runID, err)
		} else {
			if p.OnUpdate != nil {
				p.OnUpdate(snapshot)
			}
			if snapshot.Terminal() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.Clock.After(p.Interval):
		}
	}
}
