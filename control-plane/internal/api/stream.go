package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
	// Dashboards are served from other origins, matching the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamTick resolves the push interval from a tick_ms hint.
func streamTick(tickMs int) time.Duration {
	if tickMs <= 0 {
		return config.DefaultStreamTick
	}
	d := time.Duration(tickMs) * time.Millisecond
	if d < config.MinStreamTick {
		return config.MinStreamTick
	}
	return d
}

// subscription is the tower list and tick of one stream session. The reader
// goroutine replaces it whenever the client sends a new KpiBatchRequest.
type subscription struct {
	mu      sync.Mutex
	ids     []string
	tick    time.Duration
	changed chan struct{}
}

func (sub *subscription) set(ids []string, tick time.Duration) {
	sub.mu.Lock()
	sub.ids = ids
	sub.tick = tick
	sub.mu.Unlock()
	select {
	case sub.changed <- struct{}{}:
	default:
	}
}

func (sub *subscription) get() ([]string, time.Duration) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.ids, sub.tick
}

// handleKPIStream upgrades to a websocket and pushes a KpiStreamFrame for
// the subscribed towers every tick. The client subscribes by sending a
// KpiBatchRequest; each new request replaces the previous subscription and
// triggers an immediate frame. tick_ms may also be given as a query param.
func (s *Server) handleKPIStream(w http.ResponseWriter, r *http.Request) {
	tickMs, _ := strconv.Atoi(r.URL.Query().Get("tick_ms"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	logger := s.logger.With("session_id", sessionID)
	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()
	logger.Info("kpi stream opened", "remote", r.RemoteAddr)

	sub := &subscription{tick: streamTick(tickMs), changed: make(chan struct{}, 1)}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var req types.KpiBatchRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("kpi stream read failed", "error", err)
				}
				return
			}
			if err := validateTowerIDs(req.TowerIDs); err != nil {
				logger.Debug("invalid subscription ignored", "error", err)
				continue
			}
			_, tick := sub.get()
			if req.Options.TickMs > 0 {
				tick = streamTick(req.Options.TickMs)
			}
			sub.set(req.TowerIDs, tick)
		}
	}()

	var seq int64
	_, tick := sub.get()
	timer := time.NewTimer(tick)
	defer timer.Stop()

	for {
		select {
		case <-done:
			logger.Info("kpi stream closed", "frames", seq)
			return
		case <-r.Context().Done():
			return
		case <-sub.changed:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		ids, tick := sub.get()
		timer.Reset(tick)
		if len(ids) == 0 {
			continue
		}

		kpis := s.kpis.Get(ids)
		s.metrics.ObserveKPIBatch(len(kpis))
		seq++
		frame := types.KpiStreamFrame{
			SessionID: sessionID,
			Seq:       seq,
			Timestamp: s.now().UTC(),
			KPIs:      kpis,
		}

		conn.SetWriteDeadline(time.Now().Add(config.StreamWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			logger.Debug("kpi stream write failed", "error", err)
			return
		}
	}
}
