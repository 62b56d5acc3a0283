package frichesimport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/EmpoweredVote/friches-map/internal/db"
	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run replaces the contents of friches.sites with the rows of the CSV. The
// truncate and the copy share one transaction, so readers see either the old
// table or the new one.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	var sum Summary
	if !cfg.Wipe {
		return sum, errors.New("refusing to run: set Wipe=true (this importer truncates friches.sites)")
	}

	ns, err := uuid.Parse(cfg.Namespace)
	if err != nil {
		return sum, fmt.Errorf("invalid namespace uuid: %w", err)
	}

	src := &friches.CSVSource{Location: cfg.CSVPath, Delimiter: cfg.Delimiter, Opener: friches.NewOpener(0)}
	sites, report, err := src.LoadSites(ctx)
	if err != nil {
		return sum, err
	}
	sum.RowsRead = report.RowsRead
	sum.DroppedNoCoords = report.DroppedNoCoords
	sum.Duplicates = report.Duplicates
	sum.UnknownStatus = report.UnknownStatus

	gdb, err := db.Open(cfg.DatabaseURL, false)
	if err != nil {
		return sum, err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := friches.Migrate(gdb); err != nil {
		return sum, err
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return sum, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	start := time.Now()
	rows := buildRows(ns, sites, start.UTC())

	tx, err := conn.Begin(ctx)
	if err != nil {
		return sum, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(context.Background())

	if _, err := tx.Exec(ctx, `TRUNCATE TABLE friches.sites`); err != nil {
		return sum, fmt.Errorf("truncate friches.sites: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"friches", "sites"}, siteColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return sum, fmt.Errorf("copy into friches.sites: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return sum, fmt.Errorf("commit: %w", err)
	}
	sum.Inserted = n

	log.Printf("[import] %s: inserted=%d read=%d no_coords=%d duplicates=%d in %dms",
		cfg.CSVPath, n, sum.RowsRead, sum.DroppedNoCoords, sum.Duplicates, time.Since(start).Milliseconds())
	return sum, nil
}
