package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/store"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// parseTowerQuery reads north/south/east/west, radio, limit and after. The
// box is optional but must be complete when given. after is the last id of
// the previous page.
func parseTowerQuery(r *http.Request) (store.TowerQuery, error) {
	q := r.URL.Query()
	tq := store.TowerQuery{
		Radio: q.Get("radio"),
		Limit: config.DefaultTowerLimit,
		After: q.Get("after"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return tq, fmt.Errorf("limit must be a positive integer")
		}
		if n > config.MaxTowerLimit {
			n = config.MaxTowerLimit
		}
		tq.Limit = n
	}

	b, err := types.ParseBoundsQuery(q)
	if err != nil {
		return tq, err
	}
	tq.Bounds = b
	return tq, nil
}

func (s *Server) handleListTowers(w http.ResponseWriter, r *http.Request) {
	q, err := parseTowerQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	towers, err := s.towers.ListTowers(r.Context(), q)
	if err != nil {
		s.logger.Error("listing towers failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list towers")
		return
	}
	if towers == nil {
		towers = []types.Tower{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"towers": towers,
		"count":  len(towers),
		"limit":  q.Limit,
	})
}

func (s *Server) handleGetTower(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tower, err := s.towers.GetTower(r.Context(), id)
	if err != nil {
		s.logger.Error("getting tower failed", "tower_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get tower")
		return
	}
	if tower == nil {
		s.writeError(w, http.StatusNotFound, "tower not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tower)
}
