package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/markchunk/internal/api"
	"github.com/dgallion1/markchunk/internal/cache"
	"github.com/dgallion1/markchunk/internal/chunker"
	"github.com/dgallion1/markchunk/internal/config"
	"github.com/dgallion1/markchunk/internal/imageload"
	"github.com/dgallion1/markchunk/internal/latex"
	"github.com/dgallion1/markchunk/internal/pipeline"
	"github.com/dgallion1/markchunk/internal/textrender"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	st, err := cfg.Style()
	if err != nil {
		log.Error("load style", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Render caches, cleared when heap usage crosses the soft limit.
	caches := cache.NewManager(cache.Options{
		MathCountLimit: cfg.MathCacheCount,
		MathCostLimit:  cfg.MathCacheCost,
		TextCountLimit: cfg.TextCacheCount,
		TextCostLimit:  cfg.TextCacheCost,
	})
	defer caches.Close()
	memory := pipeline.NewMemoryWatcher(cfg.MemorySoftLimit, cfg.MemoryCheckInterval, log)
	caches.Watch(memory.Subscribe())
	go memory.Run(ctx)

	measurer := newMeasurer(cfg.Measurer, log)
	var images *imageload.Loader
	var resolver pipeline.ImageLoader
	if cfg.ResolveImages {
		images = imageload.New(imageload.WithLogger(log), imageload.WithConcurrency(cfg.MaxConcurrentImages))
		resolver = images
	}

	opts := []chunker.Option{
		chunker.WithStyle(st),
		chunker.WithMaxTextLength(cfg.MaxTextLength),
		chunker.WithMeasurer(measurer),
		chunker.WithCache(caches),
		chunker.WithLatexRenderer(latex.NewRenderer(caches, latex.WithMeasurer(measurer), latex.WithLogger(log))),
		chunker.WithLogger(log),
	}
	if images != nil {
		opts = append(opts, chunker.WithImages(images))
	}
	gen := chunker.New(opts...)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, gen, resolver, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if images != nil {
			images.Wait()
		}
		cancel()
	}()

	log.Info("starting markchunk", "port", cfg.Port, "measurer", cfg.Measurer, "container_width", st.ContainerWidth)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newMeasurer(kind string, log *slog.Logger) textrender.Measurer {
	if kind == "grid" {
		return textrender.NewGridMeasurer()
	}
	m, err := textrender.NewCanvasMeasurer()
	if err != nil {
		log.Warn("canvas measurer unavailable, using grid", "error", err)
		return textrender.NewGridMeasurer()
	}
	return m
}
