package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func dialStream(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.server)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/kpis/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) types.KpiStreamFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame types.KpiStreamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestKPIStream(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "?tick_ms=250")

	if err := conn.WriteJSON(types.KpiBatchRequest{TowerIDs: []string{"t1", "t2"}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := readFrame(t, conn)
	if first.SessionID == "" || first.Seq != 1 {
		t.Errorf("first frame = session %q seq %d", first.SessionID, first.Seq)
	}
	if len(first.KPIs) != 2 {
		t.Errorf("first frame kpis = %d, want 2", len(first.KPIs))
	}

	second := readFrame(t, conn)
	if second.Seq != 2 || second.SessionID != first.SessionID {
		t.Errorf("second frame = session %q seq %d", second.SessionID, second.Seq)
	}

	// Resubscribing replaces the tower list.
	if err := conn.WriteJSON(types.KpiBatchRequest{TowerIDs: []string{"far"}}); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		if _, ok := f.KPIs["far"]; ok {
			if len(f.KPIs) != 1 {
				t.Errorf("resubscribed frame kpis = %v, want only far", f.KPIs)
			}
			return
		}
	}
	t.Fatal("never received a frame for the new subscription")
}

func TestKPIStreamIgnoresInvalidSubscription(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "?tick_ms=250")

	if err := conn.WriteJSON(types.KpiBatchRequest{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(types.KpiBatchRequest{TowerIDs: []string{"t1"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, conn)
	if _, ok := f.KPIs["t1"]; !ok || f.Seq != 1 {
		t.Errorf("frame = %+v, want t1 at seq 1", f)
	}
}
