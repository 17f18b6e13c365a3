package impact

import (
	"reflect"
	"testing"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

const mixedResponse = `{
  "events": [{
    "event_id": "evt-2",
    "event_name": "Windstorm",
    "timeframe": "overnight",
    "affected_areas": [
      {"area_name": "Downtown", "lat_range": [49.28, 49.27], "long_range": [-123.12, -123.10],
       "severity": "High", "confidence": 0.8, "data_points": 4},
      {"area": "Kitsilano", "lat_range": ["49.25", "49.27"], "long_range": [-123.18, -123.15],
       "severity": 0.9, "confidence": "0.7", "center": {"lat": 49.26, "lng": -123.16}},
      {"area_name": "Burnaby", "lat_range": [49.2], "long_range": [-123.0, -122.9],
       "severity_level": "low", "confidence": 0.9},
      {"area_name": "Richmond", "lat_range": [49.1, 49.2], "long_range": [-123.2, -123.1],
       "severity_level": "low", "confidence": 0.66, "mitigation": "deploy cell on wheels"}
    ]
  }],
  "search_queries_used": ["windstorm outage"],
  "total_data_points": 12
}`

func TestDecodeReport(t *testing.T) {
	report, rep, err := DecodeReport([]byte(mixedResponse))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if rep.Events != 1 || rep.Areas != 3 || rep.Dropped != 1 {
		t.Errorf("report = %+v, want 1 event, 3 areas, 1 dropped", rep)
	}
	if report.TotalDataPoints != 12 || len(report.SearchQueriesUsed) != 1 {
		t.Errorf("top level = %+v", report)
	}

	areas := report.Events[0].AffectedAreas
	tests := []struct {
		name       string
		index      int
		areaName   string
		severity   string
		confidence float64
	}{
		{"label kept", 0, "Downtown", "High", 0.8},
		{"numeric severity and area alias", 1, "Kitsilano", "0.9", 0.7},
		{"severity_level alias", 2, "Richmond", "low", 0.66},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := areas[tt.index]
			if a.AreaName != tt.areaName || a.Severity != tt.severity || a.Confidence != tt.confidence {
				t.Errorf("area = %+v", a)
			}
		})
	}

	if areas[0].DataPoints != 4 {
		t.Errorf("data points = %d, want 4", areas[0].DataPoints)
	}
	if c := areas[1].Center; c == nil || c.Lat != 49.26 || c.Long != -123.16 {
		t.Errorf("center = %+v", c)
	}
	if m := areas[2].MitigationActions; len(m) != 1 || m[0] != "deploy cell on wheels" {
		t.Errorf("mitigation = %v", m)
	}
}

func TestDecodeReportMatchesNormalize(t *testing.T) {
	report, _, err := DecodeReport([]byte(mixedResponse))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}

	got := NormalizeResult(&types.AnalysisResult{Events: report.Events})
	want := Normalize([]byte(mixedResponse))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded areas differ from raw normalization\n got: %+v\nwant: %+v", got, want)
	}
}

func TestDecodeReportRejectsNonObject(t *testing.T) {
	for _, body := range []string{``, `[]`, `"events"`, `{"events":`} {
		if _, _, err := DecodeReport([]byte(body)); err == nil {
			t.Errorf("DecodeReport(%q) succeeded, want error", body)
		}
	}
}

func TestDecodeReportEmptyEvents(t *testing.T) {
	report, _, err := DecodeReport([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if report.Events == nil {
		t.Error("events should be an empty list, not nil")
	}
}
