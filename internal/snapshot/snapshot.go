// Package snapshot stores a loaded friches table in a single SQLite file so a
// deployment can start without the upstream CSV or a Postgres server.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EmpoweredVote/friches-map/internal/friches"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
    site_id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    municipality TEXT NOT NULL DEFAULT '',
    municipality_code TEXT NOT NULL DEFAULT '',
    epci TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    raw_status TEXT NOT NULL DEFAULT '',
    surface REAL,
    lat REAL NOT NULL,
    lng REAL NOT NULL,
    owners TEXT NOT NULL DEFAULT '[]',
    owner_anonymized INTEGER NOT NULL DEFAULT 0,
    pollution TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sites_epci ON sites(epci, municipality);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

var ErrNoSnapshot = errors.New("snapshot file does not exist")

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging snapshot: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// Write replaces the snapshot contents with sites. The previous rows are
// removed in the same transaction.
func Write(ctx context.Context, path string, sites []friches.Site, report friches.LoadReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
		return fmt.Errorf("clearing sites: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sites
(site_id, position, name, municipality, municipality_code, epci, status, raw_status, surface, lat, lng, owners, owner_anonymized, pollution)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range sites {
		owners, err := json.Marshal(s.Owners)
		if err != nil {
			return fmt.Errorf("encoding owners of %s: %w", s.ID, err)
		}
		var surface sql.NullFloat64
		if s.Surface != nil {
			surface = sql.NullFloat64{Float64: *s.Surface, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			s.ID, i, s.Name, s.Municipality, s.MunicipalityCode, s.EPCI,
			string(s.Status), s.RawStatus, surface, s.Lat, s.Lng,
			string(owners), s.OwnerAnonymized, s.Pollution,
		); err != nil {
			return fmt.Errorf("inserting site %s: %w", s.ID, err)
		}
	}

	rep, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	meta := map[string]string{
		"report":     string(rep),
		"written_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// Read loads every site of the snapshot in the order it was written, along
// with the report of the load that produced it.
func Read(ctx context.Context, path string) ([]friches.Site, friches.LoadReport, error) {
	var report friches.LoadReport
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, report, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
	}
	db, err := open(path)
	if err != nil {
		return nil, report, err
	}
	defer db.Close()

	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'report'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, report, fmt.Errorf("reading meta: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, report, fmt.Errorf("decoding report: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT site_id, name, municipality, municipality_code, epci,
status, raw_status, surface, lat, lng, owners, owner_anonymized, pollution
FROM sites ORDER BY position`)
	if err != nil {
		return nil, report, fmt.Errorf("querying sites: %w", err)
	}
	defer rows.Close()

	var sites []friches.Site
	for rows.Next() {
		var (
			s       friches.Site
			status  string
			surface sql.NullFloat64
			owners  string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Municipality, &s.MunicipalityCode, &s.EPCI,
			&status, &s.RawStatus, &surface, &s.Lat, &s.Lng, &owners, &s.OwnerAnonymized, &s.Pollution); err != nil {
			return nil, report, fmt.Errorf("scanning site: %w", err)
		}
		s.Status = friches.ParseStatus(status)
		if surface.Valid {
			v := surface.Float64
			s.Surface = &v
		}
		if err := json.Unmarshal([]byte(owners), &s.Owners); err != nil {
			return nil, report, fmt.Errorf("decoding owners of %s: %w", s.ID, err)
		}
		if s.Owners == nil {
			s.Owners = []string{}
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, report, fmt.Errorf("iterating sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, report, friches.ErrNoDataRows
	}
	return sites, report, nil
}

// Source serves a snapshot file as a friches.SiteSource.
type Source struct {
	Path string
}

func (s *Source) Name() string { return "sqlite " + s.Path }

func (s *Source) LoadSites(ctx context.Context) ([]friches.Site, friches.LoadReport, error) {
	return Read(ctx, s.Path)
}
