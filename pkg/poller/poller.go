package poller

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/legacy-guard/guard-client/pkg/datamodel"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// DefaultInterval is the fixed delay between two status fetches while a
// job is running.
var DefaultInterval = 5 * time.Second

var ErrNoJob = errors.New("no job to poll")

// Fetcher is the single backend operation the poller depends on.
type Fetcher interface {
	GetAnalysis(ctx context.Context, projectID string) (analysis *datamodel.Analysis, err error)
}

// OnUpdateFunc is called after every successful fetch with the fresh
// snapshot. It runs on the polling goroutine, between two fetches, so a
// slow callback delays the next fetch rather than overlapping it.
type OnUpdateFunc func(snapshot *datamodel.Analysis)

// Poller tracks a single analysis job: one immediate fetch, then one
// fetch per interval while the last observed status is pollable. At most
// one fetch is in flight at any time; each successful fetch replaces the
// whole snapshot.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	onUpdate OnUpdateFunc

	mu        sync.RWMutex
	projectID string
	snapshot  *datamodel.Analysis
}

func New(fetcher Fetcher, interval time.Duration, onUpdate OnUpdateFunc) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		onUpdate: onUpdate,
	}
}

// Snapshot returns the most recently fetched view of the tracked job,
// nil before the first successful fetch.
func (p *Poller) Snapshot() *datamodel.Analysis {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func (p *Poller) setSnapshot(projectID string, snapshot *datamodel.Analysis) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projectID = projectID
	p.snapshot = snapshot
}

// Track blocks until the job leaves its pollable states or ctx is torn
// down, and returns the last snapshot. The first fetch is issued
// immediately, before any delay. A failed fetch keeps the last-known-good
// snapshot; the cycle then continues only if that snapshot was still
// pollable. An error is returned only when no snapshot could ever be
// obtained or the context ended.
func (p *Poller) Track(ctx context.Context, projectID string) (last *datamodel.Analysis, err error) {
	if projectID == "" {
		err = ErrNoJob
		return
	}
	p.setSnapshot(projectID, nil)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		snapshot, fetchErr := p.fetcher.GetAnalysis(ctx, projectID)
		switch {
		case fetchErr == nil:
			// wholesale replacement, no merge with the previous view
			p.setSnapshot(projectID, snapshot)
			if p.onUpdate != nil {
				p.onUpdate(snapshot)
			}
		case ctx.Err() != nil:
			last = p.Snapshot()
			err = ctx.Err()
			return
		default:
			logger.Warn("status fetch failed, keeping last snapshot",
				slog.String("project-id", projectID),
				slog.String("error", fetchErr.Error()),
			)
		}

		last = p.Snapshot()
		if last == nil {
			// the very first fetch failed: no last-known status to
			// continue on
			err = fetchErr
			return
		}
		if !last.Status.Pollable() {
			logger.Debug("polling stopped",
				slog.String("project-id", projectID),
				slog.String("status", string(last.Status)),
			)
			return
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-timer.C:
		}
	}
}
