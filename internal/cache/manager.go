package cache

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
)

const (
	DefaultMathCountLimit = 30
	DefaultMathCostLimit  = 50
	DefaultTextCountLimit = 50
	DefaultTextCostLimit  = 100

	mathCostUnit = 1 << 20 // bitmap bytes per cost unit
	textCostUnit = 4096    // runes per cost unit
)

// Options sets the limits of the two caches held by a Manager.
type Options struct {
	MathCountLimit int
	MathCostLimit  int
	TextCountLimit int
	TextCostLimit  int
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		MathCountLimit: DefaultMathCountLimit,
		MathCostLimit:  DefaultMathCostLimit,
		TextCountLimit: DefaultTextCountLimit,
		TextCostLimit:  DefaultTextCostLimit,
	}
}

// MathEntry is a rendered formula bitmap.
type MathEntry struct {
	Image image.Image
	Size  style.Size
}

// Cost is the bitmap size in MiB, rounded up, at least 1.
func (e *MathEntry) Cost() int {
	if e == nil || e.Image == nil {
		return 1
	}
	b := e.Image.Bounds()
	return ceilDiv(b.Dx()*b.Dy()*4, mathCostUnit)
}

// TextEntry is a rendered, measured text block.
type TextEntry struct {
	Text   textrender.AttributedText
	Layout textrender.Layout
}

// Cost is the text length in 4096-rune units, rounded up, at least 1.
func (e *TextEntry) Cost() int {
	if e == nil {
		return 1
	}
	return ceilDiv(e.Text.Len(), textCostUnit)
}

// Manager owns the math and text caches. Build one per process (or per
// test) and inject it where renders are cached.
type Manager struct {
	math *LRU[string, *MathEntry]
	text *LRU[string, *TextEntry]

	mu     sync.Mutex
	unsubs []func()
}

// NewManager creates both caches. Zero limits fall back to the defaults.
func NewManager(opts Options) *Manager {
	def := DefaultOptions()
	if opts.MathCountLimit == 0 {
		opts.MathCountLimit = def.MathCountLimit
	}
	if opts.MathCostLimit == 0 {
		opts.MathCostLimit = def.MathCostLimit
	}
	if opts.TextCountLimit == 0 {
		opts.TextCountLimit = def.TextCountLimit
	}
	if opts.TextCostLimit == 0 {
		opts.TextCostLimit = def.TextCostLimit
	}
	return &Manager{
		math: NewLRU[string, *MathEntry](opts.MathCostLimit, opts.MathCountLimit),
		text: NewLRU[string, *TextEntry](opts.TextCostLimit, opts.TextCountLimit),
	}
}

// Key digests s after trimming surrounding whitespace. Blank input gets a
// random key so it never shares an entry.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		var b [16]byte
		rand.Read(b[:])
		return "rand-" + hex.EncodeToString(b[:])
	}
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:])
}

// Math looks up a formula bitmap by its source.
func (m *Manager) Math(src string) (*MathEntry, bool) {
	return m.math.Value(Key(src))
}

// SetMath stores a formula bitmap; nil removes it.
func (m *Manager) SetMath(src string, e *MathEntry) {
	m.math.SetValue(Key(src), e, e.Cost())
}

// ClearMath empties the math cache.
func (m *Manager) ClearMath() { m.math.RemoveAllValues() }

// Text looks up a rendered text block by its source.
func (m *Manager) Text(src string) (*TextEntry, bool) {
	return m.text.Value(Key(src))
}

// SetText stores a rendered text block; nil removes it.
func (m *Manager) SetText(src string, e *TextEntry) {
	m.text.SetValue(Key(src), e, e.Cost())
}

// ClearText empties the text cache.
func (m *Manager) ClearText() { m.text.RemoveAllValues() }

// Clear empties both caches.
func (m *Manager) Clear() {
	m.math.RemoveAllValues()
	m.text.RemoveAllValues()
}

// Watch clears both caches whenever signal fires. Close stops every watch.
func (m *Manager) Watch(signal <-chan struct{}) {
	relayMath := make(chan struct{}, 1)
	relayText := make(chan struct{}, 1)
	unMath := m.math.Subscribe(relayMath)
	unText := m.text.Subscribe(relayText)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				notify(relayMath)
				notify(relayText)
			}
		}
	}()

	m.mu.Lock()
	m.unsubs = append(m.unsubs, func() { close(done) }, unMath, unText)
	m.mu.Unlock()
}

// Close detaches every watched signal.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// CacheStats describes one cache.
type CacheStats struct {
	Entries    int `json:"entries"`
	Cost       int `json:"cost"`
	CountLimit int `json:"count_limit"`
	CostLimit  int `json:"cost_limit"`
}

// Stats describes both caches.
type Stats struct {
	Math CacheStats `json:"math"`
	Text CacheStats `json:"text"`
}

// Stats snapshots the occupancy of both caches.
func (m *Manager) Stats() Stats {
	return Stats{
		Math: lruStats(m.math),
		Text: lruStats(m.text),
	}
}

func lruStats[K comparable, V any](c *LRU[K, V]) CacheStats {
	return CacheStats{
		Entries:    c.Len(),
		Cost:       c.TotalCost(),
		CountLimit: c.CountLimit(),
		CostLimit:  c.CostLimit(),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func ceilDiv(n, unit int) int {
	if n <= 0 {
		return 1
	}
	return (n + unit - 1) / unit
}
