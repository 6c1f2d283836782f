package session

import (
	"context"
	"time"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollGrace    = time.Second
)

// Poller repeatedly snapshots one session until it reaches a terminal status.
type Poller struct {
	Client   *Client
	Interval time.Duration
	// Grace is waited after the terminal snapshot is seen and before it is
	// delivered, so consumers can render the final progress update first.
	Grace time.Duration
}

// Poll snapshots sessionID immediately and then every Interval, handing each
// snapshot to onUpdate. It returns the terminal snapshot after Grace, or the
// first read error. A nil onUpdate is allowed.
func (p *Poller) Poll(ctx context.Context, sessionID string, onUpdate func(*Snapshot)) (*Snapshot, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := p.Client.PollOnce(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if snap.Terminal() {
			if err := sleep(ctx, p.Grace); err != nil {
				return nil, err
			}
			if onUpdate != nil {
				onUpdate(snap)
			}
			return snap, nil
		}
		if onUpdate != nil {
			onUpdate(snap)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
