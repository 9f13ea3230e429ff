package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/markchunk/internal/chunker"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/source"
)

// chunkRequest is the JSON body of a synchronous chunk request. Unset
// fields keep the server defaults.
type chunkRequest struct {
	Markdown       string   `json:"markdown"`
	ContainerWidth *float64 `json:"container_width,omitempty"`
	MaxTextLength  *int     `json:"max_text_length,omitempty"`
	AdvancedMath   *bool    `json:"advanced_math,omitempty"`
}

type chunkResponse struct {
	Identifier string          `json:"identifier"`
	Title      string          `json:"title,omitempty"`
	Chunks     []chunker.Chunk `json:"chunks"`
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	var req chunkRequest
	var title string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		doc, err := s.readUpload(r, &req)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Markdown, title = doc.Markdown, doc.Title
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Markdown) == "" {
		jsonError(w, "markdown is required", http.StatusBadRequest)
		return
	}

	gen := s.generatorFor(req)
	chunks := gen.GenerateDocument(markup.NewParser().ParseString(req.Markdown))
	resp := chunkResponse{Title: title, Chunks: chunks}
	if len(chunks) > 0 {
		resp.Identifier = chunks[0].Identifier
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload converts a multipart "file" field into markdown and fills req
// from the optional form overrides.
func (s *Server) readUpload(r *http.Request, req *chunkRequest) (*source.Document, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	filename, data, err := s.formFile(r)
	if err != nil {
		return nil, err
	}
	conv, err := source.ForFile(filename, source.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, err
	}
	doc, err := conv.Convert(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}

	if v, err := strconv.ParseFloat(r.FormValue("container_width"), 64); err == nil {
		req.ContainerWidth = &v
	}
	if v, err := strconv.Atoi(r.FormValue("max_text_length")); err == nil {
		req.MaxTextLength = &v
	}
	if v, err := strconv.ParseBool(r.FormValue("advanced_math")); err == nil {
		req.AdvancedMath = &v
	}
	return doc, nil
}

// formFile reads the "file" field, enforcing the extension and size limits.
func (s *Server) formFile(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupportedExtension(filename) {
		return "", nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := readLimited(file, s.cfg.MaxUploadBytes)
	if err != nil {
		return "", nil, err
	}
	return filename, data, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", limit)
	}
	return data, nil
}

// generatorFor derives a generator carrying the request overrides.
func (s *Server) generatorFor(req chunkRequest) *chunker.Generator {
	base := s.orchestrator.Generator()
	var opts []chunker.Option
	if req.ContainerWidth != nil && *req.ContainerWidth > 0 || req.AdvancedMath != nil {
		st := base.Style().Clone()
		if req.ContainerWidth != nil && *req.ContainerWidth > 0 {
			st.ContainerWidth = *req.ContainerWidth
		}
		if req.AdvancedMath != nil {
			st.Math.Advanced = *req.AdvancedMath
		}
		opts = append(opts, chunker.WithStyle(st))
	}
	if req.MaxTextLength != nil && *req.MaxTextLength > 0 {
		opts = append(opts, chunker.WithMaxTextLength(*req.MaxTextLength))
	}
	if len(opts) == 0 {
		return base
	}
	return base.With(opts...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
