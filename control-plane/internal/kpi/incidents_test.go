package kpi

import (
	"testing"
	"time"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func TestIncidentRequestDefaults(t *testing.T) {
	tests := []struct {
		name     string
		req      IncidentRequest
		wantErr  bool
		duration float64
	}{
		{"surge defaults", IncidentRequest{Type: IncidentTrafficSurge, TowerIDs: []string{"t1"}}, false, 15},
		{"outage defaults", IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1"}}, false, 15},
		{"loss spike defaults", IncidentRequest{Type: IncidentLossSpike, TowerIDs: []string{"t1"}}, false, 12},
		{"explicit duration", IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1"}, DurationSeconds: 3}, false, 3},
		{"no towers", IncidentRequest{Type: IncidentOutage}, true, 0},
		{"empty tower id", IncidentRequest{Type: IncidentOutage, TowerIDs: []string{""}}, true, 0},
		{"unknown type", IncidentRequest{Type: "meteor", TowerIDs: []string{"t1"}}, true, 0},
		{"shrinking surge", IncidentRequest{Type: IncidentTrafficSurge, TowerIDs: []string{"t1"}, Multiplier: 0.5}, true, 0},
		{"too long", IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1"}, DurationSeconds: 3600}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.DurationSeconds != tt.duration {
				t.Errorf("duration = %v, want %v", req.DurationSeconds, tt.duration)
			}
		})
	}
}

func TestIncidentApply(t *testing.T) {
	base := types.KpiSnapshot{Traffic: 0.4, LatencyMs: 40, PacketLoss: 0.01, Status: types.KpiStatusOK}

	surge := Incident{Type: IncidentTrafficSurge, Multiplier: 2.5}.Apply(base)
	if surge.Traffic != 1 || surge.Status != types.KpiStatusDown {
		t.Errorf("surge = %+v, want traffic clamped to 1 and down", surge)
	}

	outage := Incident{Type: IncidentOutage}.Apply(base)
	if outage.PacketLoss != maxPacketLoss || outage.LatencyMs != outageLatencyMs || outage.Status != types.KpiStatusDown {
		t.Errorf("outage = %+v", outage)
	}

	spike := Incident{Type: IncidentLossSpike, ExtraLoss: 0.05}.Apply(base)
	if spike.PacketLoss != 0.06 || spike.Status != types.KpiStatusDegraded {
		t.Errorf("loss spike = %+v, want loss 0.06 degraded", spike)
	}

	if base.Status != types.KpiStatusOK {
		t.Error("Apply mutated its input")
	}
}

func TestIncidentsExpire(t *testing.T) {
	now := newFakeNow()
	inc := NewIncidents(now.Now, testLogger())

	started, err := inc.Trigger(IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1", "t2"}, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(started) != 2 {
		t.Fatalf("started %d incidents, want 2", len(started))
	}

	now.Advance(10 * time.Second)
	if _, ok := inc.Active("t1"); !ok {
		t.Error("incident should still be active at exactly its expiry")
	}

	now.Advance(time.Millisecond)
	if _, ok := inc.Active("t1"); ok {
		t.Error("incident should have expired")
	}
	if list := inc.List(); len(list) != 0 {
		t.Errorf("List after expiry = %+v", list)
	}
}

func TestIncidentsReplaceAndClear(t *testing.T) {
	inc := NewIncidents(newFakeNow().Now, testLogger())

	inc.Trigger(IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1"}})
	inc.Trigger(IncidentRequest{Type: IncidentLossSpike, TowerIDs: []string{"t1"}})

	got, ok := inc.Active("t1")
	if !ok || got.Type != IncidentLossSpike {
		t.Fatalf("active = %+v, %v; want loss spike", got, ok)
	}
	if !inc.Clear("t1") {
		t.Error("Clear should report an active incident")
	}
	if inc.Clear("t1") {
		t.Error("second Clear should report nothing")
	}
}

func TestSimulatorAppliesIncidents(t *testing.T) {
	now := newFakeNow()
	inc := NewIncidents(now.Now, testLogger())
	s := newTestSimulator(now, inc)

	inc.Trigger(IncidentRequest{Type: IncidentOutage, TowerIDs: []string{"t1"}, DurationSeconds: 5})

	got := s.Get([]string{"t1", "t2"})
	if got["t1"].Status != types.KpiStatusDown {
		t.Errorf("t1 status = %s, want down during outage", got["t1"].Status)
	}
	if got["t1"].PacketLoss != maxPacketLoss {
		t.Errorf("t1 loss = %v, want %v", got["t1"].PacketLoss, maxPacketLoss)
	}

	now.Advance(6 * time.Second)
	after := s.Get([]string{"t1"})["t1"]
	if after.PacketLoss == maxPacketLoss && after.Traffic == outageTraffic {
		t.Error("outage still applied after expiry")
	}
}
