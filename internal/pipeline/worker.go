package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/markchunk/internal/chunker"
	"github.com/dgallion1/markchunk/internal/imageload"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/source"
	"golang.org/x/sync/errgroup"
)

// ImageLoader resolves an image source to its dimensions.
type ImageLoader interface {
	Load(ctx context.Context, src string) (imageload.Info, error)
}

// Worker processes a single document job.
type Worker struct {
	gen        *chunker.Generator
	parser     *markup.Parser
	images     ImageLoader
	log        *slog.Logger
	sourceOpts source.Options

	maxConcurrentImages int
	backoff             func(attempt int) time.Duration
}

// NewWorker builds a worker. A nil images loader skips image resolution.
func NewWorker(gen *chunker.Generator, images ImageLoader, log *slog.Logger, sourceOpts source.Options, maxImages int) *Worker {
	if maxImages <= 0 {
		maxImages = 4
	}
	return &Worker{
		gen:                 gen,
		parser:              markup.NewParser(),
		images:              images,
		log:                 log,
		sourceOpts:          sourceOpts,
		maxConcurrentImages: maxImages,
		backoff:             Backoff,
	}
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	conv, err := source.ForFile(job.Filename, w.sourceOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := conv.Convert(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.mu.Lock()
	if job.Title == "" {
		job.Title = doc.Title
	}
	job.ContentHash = ContentHashHex([]byte(doc.Markdown))
	job.fileData = nil
	job.mu.Unlock()

	// Phase 2: Generate
	job.SetStatus(StatusGenerating, "generating")
	chunks := w.gen.GenerateDocument(w.parser.ParseString(doc.Markdown))
	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no renderable content")
		job.SetStatus(StatusFailed, "generating")
		return
	}
	job.SetChunks(chunks[0].Identifier, chunks)
	log.Info("generated chunks", "chunks", len(chunks))

	// Phase 3: Resolve image sizes.
	failed := 0
	if w.images != nil {
		job.SetStatus(StatusResolving, "resolving")
		failed = w.resolveImages(ctx, job, chunks, log)
	}

	if failed > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job complete", "chunks", len(chunks), "image_errors", failed, "duration", time.Since(start))
}

// resolveImages replaces placeholder sizes of image chunks with the
// scaled natural size of the image. It returns the number of failures.
func (w *Worker) resolveImages(ctx context.Context, job *Job, chunks []chunker.Chunk, log *slog.Logger) int {
	var targets []int
	for i, c := range chunks {
		if c.Type == chunker.TypeImage && c.Source != "" {
			targets = append(targets, i)
		}
	}
	job.SetImagesTotal(len(targets))
	if len(targets) == 0 {
		return 0
	}

	var mu sync.Mutex
	failed := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentImages)
	for _, i := range targets {
		src := chunks[i].Source
		g.Go(func() error {
			info, err := w.loadWithRetry(gctx, src, log)
			if err != nil {
				log.Warn("image resolution failed", "chunk", i, "source", src, "error", err)
				job.AddError(fmt.Sprintf("image %d: %s", i, err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			job.UpdateChunk(i, func(c *chunker.Chunk) {
				width := c.ItemSize.Width
				if c.Style != nil {
					width = c.Style.ContainerWidth
				}
				// Chunks span the container; only the height follows the image.
				if size := info.DisplaySize(width); !size.IsZero() {
					c.ItemSize.Width = width
					c.ItemSize.Height = size.Height
					c.ComputeHashKey()
				}
			})
			job.IncrImagesResolved()
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func (w *Worker) loadWithRetry(ctx context.Context, src string, log *slog.Logger) (imageload.Info, error) {
	var info imageload.Info
	var lastErr error
	for attempt := range MaxRetries {
		info, lastErr = w.images.Load(ctx, src)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable image error", "source", src, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return info, ctx.Err()
		}
	}
	return info, lastErr
}
