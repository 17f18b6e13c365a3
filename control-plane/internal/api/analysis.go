package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/analysis"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}

	var req types.AnalysisRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.AnalysisTimeout)
	defer cancel()

	result, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		var upErr *analysis.UpstreamError
		switch {
		case errors.Is(err, analysis.ErrInvalidRequest):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &upErr):
			s.logger.Warn("intelligence service error", "status", upErr.StatusCode, "error", upErr.Message)
			s.writeError(w, http.StatusBadGateway, "intelligence service error: "+upErr.Message)
		case errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, http.StatusGatewayTimeout, "analysis timed out")
		default:
			s.logger.Error("analysis failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cache_stats": stats,
		"timestamp":   s.now().UTC(),
	})
}

func (s *Server) handleCachedQueries(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	queries, err := s.cache.Queries(r.Context())
	if err != nil {
		s.logger.Error("listing cached queries failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list cached queries")
		return
	}
	if queries == nil {
		queries = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cached_queries": queries,
		"count":          len(queries),
		"timestamp":      s.now().UTC(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	n, err := s.cache.Clear(r.Context())
	if err != nil {
		s.logger.Error("clearing cache failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	s.logger.Info("cache cleared", "count", n)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Cache cleared successfully",
		"cleared":   n,
		"timestamp": s.now().UTC(),
	})
}
