package spatial

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// LoadTowers reads a tower reference file. See DecodeTowers for the format.
func LoadTowers(path string) ([]types.Tower, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tower file: %w", err)
	}
	towers, err := DecodeTowers(data)
	if err != nil {
		return nil, fmt.Errorf("parsing tower file %s: %w", path, err)
	}
	return towers, nil
}

// DecodeTowers parses either a JSON array of towers or an object with a
// "towers" array. Towers without ids get their coordinate key, and towers
// with out-of-range coordinates are rejected.
func DecodeTowers(data []byte) ([]types.Tower, error) {
	var towers []types.Tower
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Towers []types.Tower `json:"towers"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		towers = wrapped.Towers
	} else if err := json.Unmarshal(trimmed, &towers); err != nil {
		return nil, err
	}

	for _, t := range towers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return types.WithKeys(towers), nil
}

// FilterBBox returns the towers inside bounds, at most limit of them.
// A non-positive limit means no limit.
func FilterBBox(towers []types.Tower, bounds types.Bounds, limit int) []types.Tower {
	visible := FilterVisible(bounds, towers)
	if limit > 0 && len(visible) > limit {
		visible = visible[:limit]
	}
	return visible
}

// Cell CSV column positions (OpenCelliD export layout).
const (
	colRadio   = 0
	colMCC     = 1
	colMNC     = 2
	colCellID  = 4
	colLon     = 6
	colLat     = 7
	colRange   = 8
	colSamples = 9

	minCellColumns = 9
)

// ImportCellCSV reads an OpenCelliD style CSV export and keeps the cells of
// one operator (mcc/mnc). Ids are "<mcc>-<mnc>-<cell>". Short rows are
// skipped; unparseable coordinates are an error.
func ImportCellCSV(r io.Reader, mcc, mnc int) ([]types.Tower, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var towers []types.Tower
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < minCellColumns {
			continue
		}

		rowMCC, err1 := strconv.Atoi(strings.TrimSpace(row[colMCC]))
		rowMNC, err2 := strconv.Atoi(strings.TrimSpace(row[colMNC]))
		if err1 != nil || err2 != nil {
			// header or junk row
			continue
		}
		if rowMCC != mcc || rowMNC != mnc {
			continue
		}

		lon, err := strconv.ParseFloat(strings.TrimSpace(row[colLon]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing lon: %w", line, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[colLat]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing lat: %w", line, err)
		}

		t := types.Tower{
			ID:      fmt.Sprintf("%d-%d-%s", rowMCC, rowMNC, strings.TrimSpace(row[colCellID])),
			Lat:     lat,
			Lon:     lon,
			Radio:   strings.TrimSpace(row[colRadio]),
			MCC:     rowMCC,
			MNC:     rowMNC,
			RangeM:  optionalInt(row, colRange),
			Samples: optionalInt(row, colSamples),
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		towers = append(towers, t)
	}
	return towers, nil
}

func optionalInt(row []string, col int) *int {
	if col >= len(row) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(row[col]))
	if err != nil {
		return nil
	}
	return &n
}
