// Package store provides the tower reference catalog for the control plane.
//
// # Design
//
// The catalog is a single towers table queried with raw SQL through pgx.
// Bulk loads go through a COPY into a temporary staging table followed by an
// upsert, so re-seeding the same reference file is idempotent. When no
// database is configured the control plane serves the same catalog from
// memory (see MemoryCatalog).
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// TowerQuery selects towers from the catalog.
type TowerQuery struct {
	Bounds *types.Bounds // nil means everywhere; edges are inclusive
	Radio  string        // empty means any radio type
	Limit  int           // <= 0 means no limit
	After  string        // only ids sorting after this one, for paging
}

// Store provides database operations.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromURL creates a new store by connecting to the given database URL.
func NewStoreFromURL(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping tests database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool returns the underlying connection pool, used by migrations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// GetPoolStats returns the current connection pool statistics.
func (s *Store) GetPoolStats() types.PoolStats {
	stat := s.pool.Stat()
	return types.PoolStats{
		TotalConnections:    stat.TotalConns(),
		IdleConnections:     stat.IdleConns(),
		AcquiredConnections: stat.AcquiredConns(),
		MaxConnections:      stat.MaxConns(),
	}
}

// =============================================================================
// TOWERS
// =============================================================================

const towerColumns = `id, lat, lon, radio, mcc, mnc, range_m, samples`

// buildTowerQuery renders the SELECT for q with positional arguments.
func buildTowerQuery(q TowerQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.Bounds != nil {
		args = append(args, q.Bounds.MinLat, q.Bounds.MaxLat, q.Bounds.MinLon, q.Bounds.MaxLon)
		where = append(where, "lat BETWEEN $1 AND $2", "lon BETWEEN $3 AND $4")
	}
	if q.Radio != "" {
		args = append(args, strings.ToUpper(q.Radio))
		where = append(where, fmt.Sprintf("radio = $%d", len(args)))
	}
	if q.After != "" {
		args = append(args, q.After)
		where = append(where, fmt.Sprintf("id > $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + towerColumns + " FROM towers")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY id")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

// ListTowers returns the towers matching q, ordered by id.
func (s *Store) ListTowers(ctx context.Context, q TowerQuery) ([]types.Tower, error) {
	sql, args := buildTowerQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying towers: %w", err)
	}
	defer rows.Close()

	var towers []types.Tower
	for rows.Next() {
		t, err := scanTower(rows)
		if err != nil {
			return nil, err
		}
		towers = append(towers, t)
	}
	return towers, rows.Err()
}

// GetTower retrieves a tower by id.
func (s *Store) GetTower(ctx context.Context, id string) (*types.Tower, error) {
	t, err := scanTower(s.pool.QueryRow(ctx, `SELECT `+towerColumns+` FROM towers WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTowers returns the catalog size.
func (s *Store) CountTowers(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM towers`).Scan(&n)
	return n, err
}

func scanTower(row pgx.Row) (types.Tower, error) {
	var t types.Tower
	err := row.Scan(&t.ID, &t.Lat, &t.Lon, &t.Radio, &t.MCC, &t.MNC, &t.RangeM, &t.Samples)
	return t, err
}

// SeedTowers upserts towers into the catalog. Towers without an id get their
// coordinate key; invalid coordinates are skipped. Returns the number of rows
// written.
func (s *Store) SeedTowers(ctx context.Context, towers []types.Tower) (int, error) {
	rows := towerRows(towers)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE towers_staging (
			id TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			radio TEXT NOT NULL,
			mcc INTEGER NOT NULL,
			mnc INTEGER NOT NULL,
			range_m INTEGER,
			samples INTEGER
		) ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"towers_staging"},
		[]string{"id", "lat", "lon", "radio", "mcc", "mnc", "range_m", "samples"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy to staging: %w", err)
	}

	// DISTINCT ON keeps the last staged row per id so duplicates in one file
	// don't trip the upsert.
	tag, err := tx.Exec(ctx, `
		INSERT INTO towers (id, lat, lon, radio, mcc, mnc, range_m, samples)
		SELECT DISTINCT ON (id) id, lat, lon, radio, mcc, mnc, range_m, samples
		FROM towers_staging
		ORDER BY id
		ON CONFLICT (id) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			radio = EXCLUDED.radio,
			mcc = EXCLUDED.mcc,
			mnc = EXCLUDED.mnc,
			range_m = EXCLUDED.range_m,
			samples = EXCLUDED.samples,
			updated_at = NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("upsert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// towerRows converts valid towers into COPY rows.
func towerRows(towers []types.Tower) [][]any {
	rows := make([][]any, 0, len(towers))
	for _, t := range towers {
		if t.Validate() != nil {
			continue
		}
		rows = append(rows, []any{t.Key(), t.Lat, t.Lon, strings.ToUpper(t.Radio), t.MCC, t.MNC, t.RangeM, t.Samples})
	}
	return rows
}
