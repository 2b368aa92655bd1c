// Package monitor watches drop folders for new archives and hands them
// to a submission callback once their content has settled.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/legacy-guard/guard-client/pkg/intake"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

type Monitorer interface {
	Start()
	Close()
	Add(path string) error
	Remove(path string) error
}

// SubmitFunc receives the path of one settled archive.
type SubmitFunc func(archive string) error

type Monitor struct {
	watcher       *fsnotify.Watcher
	wg            sync.WaitGroup
	cb            SubmitFunc
	preScan       bool
	period        time.Duration
	modDelay      time.Duration
	paths         map[string]struct{}
	stop          context.Context
	cancel        context.CancelFunc
	pending       map[string]struct{}
	pendingLock   sync.Mutex
	submitted     map[string]struct{}
	submittedLock sync.Mutex
}

func NewMonitor(onArchive SubmitFunc, prescan bool, period time.Duration, modDelay time.Duration) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	stop, cancel := context.WithCancel(context.Background())
	return &Monitor{
		watcher:   watcher,
		cb:        onArchive,
		preScan:   prescan,
		period:    period,
		paths:     map[string]struct{}{},
		pending:   map[string]struct{}{},
		submitted: map[string]struct{}{},
		stop:      stop,
		cancel:    cancel,
		modDelay:  modDelay,
	}, nil
}

func (m *Monitor) Close() {
	m.watcher.Close()
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.work()
	if m.period != 0 {
		m.wg.Add(1)
		go m.rescan()
	}
	m.wg.Add(1)
	go m.settle()
}

// rescan periodically re-walks the watched folders so archives dropped
// while the watcher was down are still picked up.
func (m *Monitor) rescan() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			for path := range m.paths {
				m.scanDir(path)
			}
		}
	}
}

// scanDir queues every accepted archive directly under dir.
func (m *Monitor) scanDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		Logger.Error("could not scan watched folder", "path", dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m.queue(filepath.Join(dir, entry.Name()))
	}
}

func (m *Monitor) queue(path string) {
	if !intake.Accepted(path) {
		return
	}
	m.submittedLock.Lock()
	_, done := m.submitted[path]
	m.submittedLock.Unlock()
	if done {
		return
	}
	m.pendingLock.Lock()
	m.pending[path] = struct{}{}
	m.pendingLock.Unlock()
}

func (m *Monitor) work() {
	defer m.wg.Done()
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			Logger.Debug("new event", "event", event)
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				m.queue(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			Logger.Error("watcher error", "error", err)
		}
	}
}

var (
	SettleLoopPause = time.Millisecond * 100
	Since           = time.Since
)

// settle submits a pending archive once it stopped changing for
// modDelay, so half-copied archives are not submitted.
func (m *Monitor) settle() {
	defer m.wg.Done()
	ticker := time.NewTicker(SettleLoopPause)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			m.pendingLock.Lock()
			queued := make([]string, 0, len(m.pending))
			for path := range m.pending {
				queued = append(queued, path)
			}
			m.pendingLock.Unlock()
			for _, path := range queued {
				info, err := os.Stat(path)
				if err != nil {
					m.pendingLock.Lock()
					delete(m.pending, path)
					m.pendingLock.Unlock()
					continue
				}
				if Since(info.ModTime()) <= m.modDelay {
					continue
				}
				m.pendingLock.Lock()
				delete(m.pending, path)
				m.pendingLock.Unlock()
				if err := m.cb(path); err != nil {
					Logger.Error("archive submission failed", "path", path, "error", err)
					continue
				}
				m.submittedLock.Lock()
				m.submitted[path] = struct{}{}
				m.submittedLock.Unlock()
			}
		}
	}
}

func (m *Monitor) Add(path string) error {
	if err := m.watcher.Add(path); err != nil {
		return err
	}
	m.paths[path] = struct{}{}
	if m.preScan {
		go func() {
			m.scanDir(path)
		}()
	}
	return nil
}

func (m *Monitor) Remove(path string) error {
	delete(m.paths, path)
	return m.watcher.Remove(path)
}
