package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/markchunk/internal/chunker"
	"github.com/dgallion1/markchunk/internal/config"
	"github.com/dgallion1/markchunk/internal/pipeline"
	"github.com/dgallion1/markchunk/internal/textrender"
)

const testKey = "secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:         testKey,
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}
	gen := chunker.New(
		chunker.WithMeasurer(textrender.NewGridMeasurer()),
		chunker.WithLogger(log),
	)
	orch := pipeline.NewOrchestrator(cfg, gen, nil, log)
	orch.Start(context.Background())
	ts := httptest.NewServer(NewServer(orch, log, cfg))
	t.Cleanup(func() {
		ts.Close()
		orch.Stop()
	})
	return ts
}

func do(t *testing.T, method, url, contentType string, body io.Reader, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type chunkJSON struct {
	Identifier string `json:"identifier"`
	Index      int    `json:"index"`
	Type       string `json:"type"`
	ItemSize   struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"item_size"`
	HashKey string `json:"hash_key"`
}

type chunksBody struct {
	Identifier string      `json:"identifier"`
	Title      string      `json:"title"`
	Chunks     []chunkJSON `json:"chunks"`
}

func upload(t *testing.T, field, filename, content string, extra map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return mw.FormDataContentType(), &buf
}

func TestHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/health", "", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/cache/stats", "", nil, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	bad, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", bad.StatusCode)
	}
}

func TestChunks_JSON(t *testing.T) {
	ts := newTestServer(t)
	body := `{"markdown":"hello\n\n` + "```python\\nprint(1)\\n```" + `\n\nworld"}`
	resp := do(t, http.MethodPost, ts.URL+"/api/chunks", "application/json", strings.NewReader(body), true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out chunksBody
	decode(t, resp, &out)

	if len(out.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out.Chunks))
	}
	wantTypes := []string{"text", "code", "text"}
	for i, c := range out.Chunks {
		if c.Type != wantTypes[i] || c.Index != i || c.Identifier != out.Identifier {
			t.Errorf("chunk %d: unexpected %+v", i, c)
		}
	}
	if out.Identifier == "" {
		t.Error("expected identifier in response")
	}
}

func TestChunks_Overrides(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/api/chunks", "application/json",
		strings.NewReader(`{"markdown":"---","container_width":500}`), true)
	var out chunksBody
	decode(t, resp, &out)
	if len(out.Chunks) != 1 || out.Chunks[0].Type != "thematic" || out.Chunks[0].ItemSize.Width != 500 {
		t.Fatalf("expected one 500pt thematic break, got %+v", out.Chunks)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/chunks", "application/json",
		strings.NewReader(`{"markdown":"---"}`), true)
	decode(t, resp, &out)
	if out.Chunks[0].ItemSize.Width != 335 {
		t.Errorf("expected server default width after override request, got %v", out.Chunks[0].ItemSize.Width)
	}
}

func TestChunks_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"invalid json", "application/json", "{"},
		{"empty markdown", "application/json", `{"markdown":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/chunks", tt.contentType, strings.NewReader(tt.body), true)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	ct, buf := upload(t, "file", "virus.exe", "MZ", nil)
	resp := do(t, http.MethodPost, ts.URL+"/api/chunks", ct, buf, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported upload, got %d", resp.StatusCode)
	}
}

func TestChunks_MultipartCSV(t *testing.T) {
	ts := newTestServer(t)
	ct, buf := upload(t, "file", "stock.csv", "name,qty\nbolt,4\nnut,9\n", map[string]string{"max_text_length": "50"})
	resp := do(t, http.MethodPost, ts.URL+"/api/chunks", ct, buf, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out chunksBody
	decode(t, resp, &out)
	if out.Title != "stock" {
		t.Errorf("expected title stock, got %q", out.Title)
	}
	var table bool
	for _, c := range out.Chunks {
		if c.Type == "table" && c.ItemSize.Height > 0 {
			table = true
		}
	}
	if !table {
		t.Errorf("expected a measured table chunk, got %+v", out.Chunks)
	}
}

func TestJobs_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	ct, buf := upload(t, "file", "notes.md", "# Notes\n\nalpha\n\n---\n\nbeta", map[string]string{"title": "My Notes"})
	resp := do(t, http.MethodPost, ts.URL+"/api/jobs", ct, buf, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var sub struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, resp, &sub)
	if sub.PollURL != "/api/jobs/"+sub.JobID {
		t.Errorf("unexpected poll url %q", sub.PollURL)
	}

	deadline := time.Now().Add(5 * time.Second)
	var snap pipeline.JobSnapshot
	for {
		r := do(t, http.MethodGet, ts.URL+sub.PollURL, "", nil, true)
		decode(t, r, &snap)
		if snap.Status.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted || snap.Title != "My Notes" {
		t.Fatalf("unexpected final snapshot %+v", snap)
	}

	r := do(t, http.MethodGet, ts.URL+sub.PollURL+"/chunks", "", nil, true)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", r.StatusCode)
	}
	var out chunksBody
	decode(t, r, &out)
	if len(out.Chunks) != 3 || out.Identifier != snap.Identifier {
		t.Errorf("expected 3 chunks with job identifier, got %d (%q vs %q)", len(out.Chunks), out.Identifier, snap.Identifier)
	}
}

func TestJobs_NotFound(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/chunks"} {
		resp := do(t, http.MethodGet, ts.URL+path, "", nil, true)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestJobs_Batch(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{"a.txt": "alpha", "b.exe": "MZ"} {
		fw, _ := mw.CreateFormFile("files", name)
		fw.Write([]byte(content))
	}
	mw.Close()

	resp := do(t, http.MethodPost, ts.URL+"/api/jobs/batch", mw.FormDataContentType(), &buf, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	decode(t, resp, &out)
	if len(out.Jobs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Jobs))
	}
	var queued, rejected int
	for _, j := range out.Jobs {
		if _, ok := j["job_id"]; ok {
			queued++
		}
		if _, ok := j["error"]; ok {
			rejected++
		}
	}
	if queued != 1 || rejected != 1 {
		t.Errorf("expected one queued and one rejected, got %v", out.Jobs)
	}
}

func TestCacheEndpoints(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPost, ts.URL+"/api/chunks", "application/json",
		strings.NewReader(`{"markdown":"`+"```go\\nx := 1\\n```"+`"}`), true)

	var stats struct {
		Caches struct {
			Text struct {
				Entries    int `json:"entries"`
				CountLimit int `json:"count_limit"`
			} `json:"text"`
		} `json:"caches"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/api/cache/stats", "", nil, true), &stats)
	if stats.Caches.Text.Entries != 1 || stats.Caches.Text.CountLimit != 50 {
		t.Fatalf("expected one cached code block, got %+v", stats.Caches.Text)
	}

	decode(t, do(t, http.MethodPost, ts.URL+"/api/cache/clear", "", nil, true), &stats)
	if stats.Caches.Text.Entries != 0 {
		t.Errorf("expected cleared cache, got %d entries", stats.Caches.Text.Entries)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/stats/math", "", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for math stats, got %d", resp.StatusCode)
	}
}
