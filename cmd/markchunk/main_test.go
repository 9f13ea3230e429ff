package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvert(t *testing.T) {
	gen, err := newGenerator(options{measurer: "grid", maxText: 2000, width: 300, advancedMath: true}, quietLogger())
	if err != nil {
		t.Fatalf("newGenerator: %v", err)
	}
	res, err := convert(gen, strings.NewReader("# Title\n\nbody\n\n---\n"), "doc.md")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.Title != "Title" || len(res.Chunks) != 2 || res.Identifier == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Chunks[1].ItemSize.Width != 300 {
		t.Errorf("expected width flag applied, got %v", res.Chunks[1].ItemSize.Width)
	}

	var buf bytes.Buffer
	if err := newEncoder(&buf).Encode(res); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Error("expected one JSON document per line for non-terminal output")
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	if _, err := newGenerator(options{measurer: "pixels"}, quietLogger()); err == nil {
		t.Error("expected error for unknown measurer")
	}
	if _, err := newGenerator(options{measurer: "grid", stylePath: "/nonexistent.mcss"}, quietLogger()); err == nil {
		t.Error("expected error for missing style sheet")
	}
	if _, err := convert(nil, strings.NewReader(""), "a.exe"); err == nil {
		t.Error("expected error for unsupported input")
	}
}

func TestWatch_RegeneratesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, []string{path}, quietLogger(), func(p string) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * settle)
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no change observed")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
	if seen[0] != path {
		t.Errorf("expected callback with original path %q, got %q", path, seen[0])
	}
}
