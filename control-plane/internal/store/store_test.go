package store

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func TestBuildTowerQuery(t *testing.T) {
	bounds := types.NewBounds(49.0, 49.5, -123.5, -122.5)

	tests := []struct {
		name     string
		q        TowerQuery
		wantSQL  []string
		wantArgs []any
	}{
		{
			name:    "everything",
			q:       TowerQuery{},
			wantSQL: []string{"FROM towers ORDER BY id"},
		},
		{
			name:     "bounds and radio",
			q:        TowerQuery{Bounds: &bounds, Radio: "lte"},
			wantSQL:  []string{"lat BETWEEN $1 AND $2", "lon BETWEEN $3 AND $4", "radio = $5"},
			wantArgs: []any{49.0, 49.5, -123.5, -122.5, "LTE"},
		},
		{
			name:     "radio and limit",
			q:        TowerQuery{Radio: "NR", Limit: 10},
			wantSQL:  []string{"WHERE radio = $1", "LIMIT $2"},
			wantArgs: []any{"NR", 10},
		},
		{
			name:     "page after id",
			q:        TowerQuery{Radio: "lte", After: "t1", Limit: 2},
			wantSQL:  []string{"WHERE radio = $1 AND id > $2", "ORDER BY id LIMIT $3"},
			wantArgs: []any{"LTE", "t1", 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildTowerQuery(tt.q)
			for _, frag := range tt.wantSQL {
				if !strings.Contains(sql, frag) {
					t.Errorf("query %q missing %q", sql, frag)
				}
			}
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestTowerRowsSkipsInvalid(t *testing.T) {
	rows := towerRows([]types.Tower{
		{ID: "a", Lat: 49.2, Lon: -123.1, Radio: "lte"},
		{ID: "bad", Lat: 95, Lon: 0},
		{Lat: 49.25, Lon: -123.0},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][3] != "LTE" {
		t.Errorf("radio = %v, want LTE", rows[0][3])
	}
	if rows[1][0] != types.CoordinateKey(49.25, -123.0) {
		t.Errorf("id = %v, want coordinate key", rows[1][0])
	}
}

func catalogTowers() []types.Tower {
	return []types.Tower{
		{ID: "t3", Lat: 49.30, Lon: -123.10, Radio: types.RadioNR},
		{ID: "t1", Lat: 49.25, Lon: -123.10, Radio: types.RadioLTE},
		{ID: "t2", Lat: 49.28, Lon: -123.12, Radio: types.RadioLTE},
		{ID: "far", Lat: 43.65, Lon: -79.38, Radio: types.RadioLTE},
		{ID: "bad", Lat: 120, Lon: 0},
	}
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog(catalogTowers())

	if n, _ := c.CountTowers(ctx); n != 4 {
		t.Errorf("CountTowers = %d, want 4", n)
	}

	vancouver := types.NewBounds(49.0, 49.5, -123.5, -122.5)
	tests := []struct {
		name string
		q    TowerQuery
		want []string
	}{
		{"all", TowerQuery{}, []string{"far", "t1", "t2", "t3"}},
		{"bounds", TowerQuery{Bounds: &vancouver}, []string{"t1", "t2", "t3"}},
		{"bounds and radio", TowerQuery{Bounds: &vancouver, Radio: "lte"}, []string{"t1", "t2"}},
		{"limit", TowerQuery{Bounds: &vancouver, Limit: 1}, []string{"t1"}},
		{"limit without bounds", TowerQuery{Limit: 2}, []string{"far", "t1"}},
		{"after", TowerQuery{After: "far", Limit: 2}, []string{"t1", "t2"}},
		{"after unknown id", TowerQuery{After: "t15"}, []string{"t2", "t3"}},
		{"after last", TowerQuery{After: "t3"}, nil},
		{"after with bounds", TowerQuery{Bounds: &vancouver, After: "t1"}, []string{"t2", "t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			towers, err := c.ListTowers(ctx, tt.q)
			if err != nil {
				t.Fatalf("ListTowers: %v", err)
			}
			var got []string
			for _, tw := range towers {
				got = append(got, tw.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryCatalogGetTower(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog(catalogTowers())

	tw, err := c.GetTower(ctx, "t2")
	if err != nil || tw == nil || tw.Lat != 49.28 {
		t.Fatalf("GetTower(t2) = %+v, %v", tw, err)
	}
	if tw, _ := c.GetTower(ctx, "missing"); tw != nil {
		t.Errorf("GetTower(missing) = %+v, want nil", tw)
	}
}

func TestMemoryCatalogDuplicateReplaces(t *testing.T) {
	c := NewMemoryCatalog([]types.Tower{
		{ID: "x", Lat: 1, Lon: 1},
		{ID: "x", Lat: 2, Lon: 2},
	})
	tw, _ := c.GetTower(context.Background(), "x")
	if tw == nil || tw.Lat != 2 {
		t.Errorf("GetTower(x) = %+v, want the later entry", tw)
	}
}
