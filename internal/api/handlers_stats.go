package api

import (
	"net/http"
)

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"caches":      s.orchestrator.Generator().Cache().Stats(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	c := s.orchestrator.Generator().Cache()
	c.Clear()
	s.log.Info("render caches cleared", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"caches": c.Stats()})
}

func (s *Server) handleMathStats(w http.ResponseWriter, r *http.Request) {
	stats := s.orchestrator.Generator().Renderer().Stats()
	if stats == nil {
		jsonError(w, "math stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats.Snapshot()})
}
