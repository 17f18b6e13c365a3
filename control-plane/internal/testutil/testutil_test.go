package testutil

import (
	"testing"
	"time"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func TestFixtureTower(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		tower := FixtureTower()
		if tower.ID == "" {
			t.Error("expected tower to have ID")
		}
		if err := tower.Validate(); err != nil {
			t.Errorf("expected valid tower: %v", err)
		}
		if tower.Radio != types.RadioLTE {
			t.Errorf("expected radio %s, got %s", types.RadioLTE, tower.Radio)
		}
	})

	t.Run("unique ids", func(t *testing.T) {
		if FixtureTower().ID == FixtureTower().ID {
			t.Error("expected distinct ids")
		}
	})

	t.Run("at position with overrides", func(t *testing.T) {
		tower := FixtureTowerAt("t1", 43.65, -79.38, func(tw *types.Tower) {
			tw.Radio = types.RadioNR
		})
		if tower.ID != "t1" || tower.Lat != 43.65 || tower.Lon != -79.38 {
			t.Errorf("unexpected tower %+v", tower)
		}
		if tower.Radio != types.RadioNR {
			t.Errorf("expected radio %s, got %s", types.RadioNR, tower.Radio)
		}
	})
}

func TestFixtureReport(t *testing.T) {
	report := FixtureReport(
		FixtureEvent("storm", "Storm",
			FixtureArea("Downtown", "high", 0.9),
			FixtureArea("Kitsilano", "low", 0.7, func(a *types.AffectedArea) {
				a.AffectedTowers = []string{"t1"}
			}),
		),
	)

	if len(report.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(report.Events))
	}
	if got := types.AreaCount(report.Events); got != 2 {
		t.Errorf("expected 2 areas, got %d", got)
	}
	area := report.Events[0].AffectedAreas[1]
	if len(area.AffectedTowers) != 1 || area.Confidence != 0.7 {
		t.Errorf("unexpected area %+v", area)
	}
	if len(area.LatRange) != 2 || area.LatRange[0] >= area.LatRange[1] {
		t.Errorf("expected ordered lat range, got %v", area.LatRange)
	}
}

func TestFixtureKPI(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	k := FixtureKPI(at, func(k *types.KpiSnapshot) {
		k.Status = types.KpiStatusDown
	})
	if !k.UpdatedAt.Equal(at) {
		t.Errorf("expected UpdatedAt %v, got %v", at, k.UpdatedAt)
	}
	if k.Status != types.KpiStatusDown {
		t.Errorf("expected status down, got %s", k.Status)
	}
}

func TestPtr(t *testing.T) {
	p := Ptr(42)
	if *p != 42 {
		t.Errorf("expected 42, got %d", *p)
	}
}
