// Package imageload fetches images far enough to learn their dimensions.
// Results are kept in an LRU so repeated documents do not refetch.
package imageload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/style"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxBytes   = 10 << 20
	DefaultCacheCount = 256
	defaultTimeout    = 30 * time.Second
)

var (
	ErrUnsupportedScheme = errors.New("unsupported image source")
	ErrTooLarge          = errors.New("image exceeds size limit")
)

// Info is what is known about a loaded image.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// DisplaySize scales the image to fit width, keeping its aspect ratio.
// Images narrower than width keep their natural size.
func (i Info) DisplaySize(width float64) style.Size {
	if i.Width <= 0 || i.Height <= 0 {
		return style.Size{}
	}
	w, h := float64(i.Width), float64(i.Height)
	if width > 0 && w > width {
		h = h * width / w
		w = width
	}
	return style.Size{Width: w, Height: h}
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// Loader resolves image sources. It implements textrender.ImagePrefetcher.
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
	allowFiles bool
	cache      *cache.LRU[string, Info]
	log        *slog.Logger

	group singleflight.Group
	wg    sync.WaitGroup
	sem   chan struct{}
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option { return func(l *Loader) { l.httpClient = c } }

func WithMaxBytes(n int64) Option { return func(l *Loader) { l.maxBytes = n } }

// WithFiles allows file:// and bare path sources.
func WithFiles(allow bool) Option { return func(l *Loader) { l.allowFiles = allow } }

func WithLogger(log *slog.Logger) Option { return func(l *Loader) { l.log = log } }

// WithConcurrency bounds the number of concurrent prefetches.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.sem = make(chan struct{}, n)
		}
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBytes:   DefaultMaxBytes,
		cache:      cache.NewLRU[string, Info](0, DefaultCacheCount),
		log:        slog.Default(),
		sem:        make(chan struct{}, 4),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Cached returns a previously loaded result.
func (l *Loader) Cached(src string) (Info, bool) {
	return l.cache.Value(src)
}

// Load resolves src, consulting the cache first. Concurrent loads of the
// same source share one fetch.
func (l *Loader) Load(ctx context.Context, src string) (Info, error) {
	src = strings.TrimSpace(src)
	if info, ok := l.cache.Value(src); ok {
		return info, nil
	}
	v, err, _ := l.group.Do(src, func() (any, error) {
		info, err := l.load(ctx, src)
		if err != nil {
			return Info{}, err
		}
		l.cache.SetValue(src, info, 1)
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

// Prefetch starts loading src in the background.
func (l *Loader) Prefetch(src string) {
	if src == "" {
		return
	}
	if _, ok := l.cache.Value(src); ok {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.sem <- struct{}{}
		defer func() { <-l.sem }()
		if _, err := l.Load(context.Background(), src); err != nil {
			l.log.Debug("image prefetch failed", "src", src, "error", err)
		}
	}()
}

// Wait blocks until every started prefetch has finished.
func (l *Loader) Wait() { l.wg.Wait() }

func (l *Loader) load(ctx context.Context, src string) (Info, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURI(src)
		if err != nil {
			return Info{}, err
		}
		return l.decode(bytes.NewReader(data))
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	case l.allowFiles:
		path := src
		if u, err := url.Parse(src); err == nil && u.Scheme == "file" {
			path = u.Path
		} else if err == nil && u.Scheme != "" {
			return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
		f, err := os.Open(path)
		if err != nil {
			return Info{}, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		return l.decode(f)
	default:
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, truncate(src, 64))
	}
}

func (l *Loader) fetch(ctx context.Context, src string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, ctx.Err()
		}
		return Info{}, &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Info{}, &RetryableError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > l.maxBytes {
		return Info{}, ErrTooLarge
	}
	return l.decode(resp.Body)
}

func (l *Loader) decode(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(io.LimitReader(r, l.maxBytes))
	if err != nil {
		return Info{}, fmt.Errorf("decode image: %w", err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri: %w", err)
	}
	return []byte(s), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
