package main

import (
	"fmt"

	"github.com/EmpoweredVote/friches-map/internal/frichesimport"
	"github.com/spf13/cobra"
)

var (
	importCSV       string
	importNamespace string
	importWipe      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the CSV into Postgres (friches.sites)",
	Long: `Replaces the contents of friches.sites with the rows of the CSV in one
transaction. Primary keys are derived from --namespace, which must never
change between runs.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importCSV, "csv", "", "path or URL of the CSV (defaults to data_path)")
	importCmd.Flags().StringVar(&importNamespace, "namespace", "", "UUID namespace (required, stable forever)")
	importCmd.Flags().BoolVar(&importWipe, "wipe", false, "DANGER: truncates friches.sites before importing")
	_ = importCmd.MarkFlagRequired("namespace")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is not configured (set DATABASE_URL or FRICHES_DATABASE_URL)")
	}
	csvPath := importCSV
	if csvPath == "" {
		csvPath = cfg.DataPath
	}

	sum, err := frichesimport.Run(cmd.Context(), frichesimport.Config{
		CSVPath:     csvPath,
		DatabaseURL: cfg.DatabaseURL,
		Namespace:   importNamespace,
		Delimiter:   cfg.DelimiterRune(),
		Wipe:        importWipe,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d sites (%d rows read, %d without coordinates, %d duplicates)\n",
		sum.Inserted, sum.RowsRead, sum.DroppedNoCoords, sum.Duplicates)
	return nil
}
