package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/EmpoweredVote/friches-map/internal/config"
	"github.com/EmpoweredVote/friches-map/internal/db"
	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/EmpoweredVote/friches-map/internal/server"
	"github.com/EmpoweredVote/friches-map/internal/snapshot"
	"github.com/spf13/cobra"
)

var (
	exportSQLite  string
	exportGeoJSON string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the configured dataset to a SQLite snapshot or a GeoJSON file",
	Long: `Loads the sites from the configured source and writes them to a SQLite
snapshot (usable with source: sqlite) and/or a GeoJSON FeatureCollection of
points.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportSQLite, "sqlite", "", "snapshot file to write")
	exportCmd.Flags().StringVar(&exportGeoJSON, "geojson", "", "GeoJSON file to write")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportSQLite == "" && exportGeoJSON == "" {
		return fmt.Errorf("nothing to do: pass --sqlite and/or --geojson")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Source == config.SourcePostgres {
		d, err := db.Open(cfg.DatabaseURL, cfg.LogSQL)
		if err != nil {
			return err
		}
		db.DB = d
	}

	src, err := server.NewSource(cfg, friches.NewOpener(cfg.FetchTimeout))
	if err != nil {
		return err
	}
	sites, report, err := src.LoadSites(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading sites from %s: %w", src.Name(), err)
	}

	out := cmd.OutOrStdout()
	if exportSQLite != "" {
		if err := snapshot.Write(cmd.Context(), exportSQLite, sites, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d sites to %s\n", len(sites), exportSQLite)
	}
	if exportGeoJSON != "" {
		data, err := json.Marshal(friches.PointCollection(sites))
		if err != nil {
			return fmt.Errorf("encoding geojson: %w", err)
		}
		if err := os.WriteFile(exportGeoJSON, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", exportGeoJSON, err)
		}
		fmt.Fprintf(out, "wrote %d features to %s\n", len(sites), exportGeoJSON)
	}
	return nil
}
