package latex

import (
	"slices"
	"sync"
	"time"
)

// maxStatsSamples caps the window so a burst of renders cannot grow it
// without bound.
const maxStatsSamples = 4096

type renderSample struct {
	at     time.Time
	took   time.Duration
	kind   Kind
	cached bool
}

// StatsSnapshot aggregates the renders inside the window.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Bitmap int     `json:"bitmap"`
	Vector int     `json:"vector"`
	Text   int     `json:"text"`
	Cached int     `json:"cached"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Stats keeps render outcomes for a sliding time window. Samples are held
// oldest first, so expiry trims a prefix.
type Stats struct {
	window time.Duration

	mu      sync.Mutex
	samples []renderSample
}

// NewStats returns a window of the given age, one hour when window <= 0.
func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window}
}

// Record adds one render outcome. Negative durations count as zero.
func (s *Stats) Record(kind Kind, cached bool, took time.Duration) {
	took = max(took, 0)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	if len(s.samples) == maxStatsSamples {
		s.samples = slices.Delete(s.samples, 0, 1)
	}
	s.samples = append(s.samples, renderSample{at: now, took: took, kind: kind, cached: cached})
}

// Snapshot summarizes the current window.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expire(time.Now())
	window := slices.Clone(s.samples)
	s.mu.Unlock()

	var snap StatsSnapshot
	if len(window) == 0 {
		return snap
	}
	ms := make([]float64, len(window))
	var total float64
	for i, r := range window {
		ms[i] = float64(r.took.Milliseconds())
		total += ms[i]
		switch r.kind {
		case KindBitmap:
			snap.Bitmap++
		case KindVector:
			snap.Vector++
		default:
			snap.Text++
		}
		if r.cached {
			snap.Cached++
		}
	}
	slices.Sort(ms)

	snap.Count = len(ms)
	snap.MinMs = int64(ms[0])
	snap.MaxMs = int64(ms[len(ms)-1])
	snap.AvgMs = total / float64(len(ms))
	snap.P50Ms = quantile(ms, 0.50)
	snap.P95Ms = quantile(ms, 0.95)
	snap.P99Ms = quantile(ms, 0.99)
	return snap
}

func (s *Stats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	n, _ := slices.BinarySearchFunc(s.samples, cutoff, func(r renderSample, t time.Time) int {
		return r.at.Compare(t)
	})
	if n > 0 {
		s.samples = slices.Delete(s.samples, 0, n)
	}
}

// quantile linearly interpolates q (0..1) over sorted values.
func quantile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	i := int(pos)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*(pos-float64(i))
}
