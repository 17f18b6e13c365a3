package api

import (
	"fmt"
	"net/http"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/kpi"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// validateTowerIDs rejects empty and oversized batches.
func validateTowerIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("tower_ids is required and must be a non-empty list")
	}
	if len(ids) > config.MaxKPIBatch {
		return fmt.Errorf("tower_ids exceeds maximum batch of %d", config.MaxKPIBatch)
	}
	return nil
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	var req types.KpiBatchRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	if err := validateTowerIDs(req.TowerIDs); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kpis := s.kpis.Get(req.TowerIDs)
	s.metrics.ObserveKPIBatch(len(kpis))
	s.logger.Debug("kpis served", "requested", len(req.TowerIDs), "count", len(kpis))

	s.writeJSON(w, http.StatusOK, types.KpiBatchResponse{
		Timestamp: s.now().UTC(),
		KPIs:      kpis,
	})
}

// =============================================================================
// INCIDENTS
// =============================================================================

func (s *Server) handleTriggerIncident(w http.ResponseWriter, r *http.Request) {
	if s.incidents == nil {
		s.writeError(w, http.StatusServiceUnavailable, "incident simulation not enabled")
		return
	}

	var req kpi.IncidentRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	if len(req.TowerIDs) > config.MaxKPIBatch {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("tower_ids exceeds maximum batch of %d", config.MaxKPIBatch))
		return
	}

	incidents, err := s.incidents.Trigger(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.IncidentsTriggered(string(req.Type), len(incidents))

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	if s.incidents == nil {
		s.writeError(w, http.StatusServiceUnavailable, "incident simulation not enabled")
		return
	}
	incidents := s.incidents.List()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleClearIncident(w http.ResponseWriter, r *http.Request) {
	if s.incidents == nil {
		s.writeError(w, http.StatusServiceUnavailable, "incident simulation not enabled")
		return
	}
	id := r.PathValue("tower_id")
	if !s.incidents.Clear(id) {
		s.writeError(w, http.StatusNotFound, "no active incident for tower")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
