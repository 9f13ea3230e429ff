package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// MemoryWatcher polls heap usage and signals subscribers once each time
// usage rises above the soft limit. It rearms after usage drops below.
type MemoryWatcher struct {
	limit    uint64
	interval time.Duration
	read     func() uint64
	log      *slog.Logger

	mu    sync.Mutex
	subs  []chan struct{}
	above bool
}

// NewMemoryWatcher returns a watcher. A zero limit never signals.
func NewMemoryWatcher(limit uint64, interval time.Duration, log *slog.Logger) *MemoryWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MemoryWatcher{limit: limit, interval: interval, read: heapAlloc, log: log}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Subscribe returns a channel that receives one value per low-memory event.
// Slow receivers miss events rather than block the watcher.
func (m *MemoryWatcher) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run polls until ctx is done, then closes every subscriber channel.
func (m *MemoryWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer m.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check samples memory once and reports whether a signal was sent.
func (m *MemoryWatcher) Check() bool {
	if m.limit == 0 {
		return false
	}
	used := m.read()
	m.mu.Lock()
	defer m.mu.Unlock()
	if used <= m.limit {
		m.above = false
		return false
	}
	if m.above {
		return false
	}
	m.above = true
	m.log.Warn("memory above soft limit, signalling caches", "heap_bytes", used, "limit_bytes", m.limit)
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

func (m *MemoryWatcher) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}
