package main

import (
	"fmt"

	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/EmpoweredVote/friches-map/internal/utils"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [csv]",
	Short: "Parse a friches table and print the load report",
	Long: `Parses the table at the given path or URL (or data_path from the config)
with the server's rules and prints how many rows were kept, dropped for
missing coordinates, duplicated or carrying an unknown status.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	location := cfg.DataPath
	if len(args) == 1 {
		location = args[0]
	}

	src := &friches.CSVSource{Location: location, Delimiter: cfg.DelimiterRune(), Opener: friches.NewOpener(cfg.FetchTimeout)}
	sites, report, err := src.LoadSites(cmd.Context())
	if err != nil {
		return fmt.Errorf("validating %s: %w", location, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", location)
	fmt.Fprintf(out, "  rows read:          %d\n", report.RowsRead)
	fmt.Fprintf(out, "  sites kept:         %d\n", len(sites))
	fmt.Fprintf(out, "  no coordinates:     %d\n", report.DroppedNoCoords)
	fmt.Fprintf(out, "  duplicate ids:      %d\n", report.Duplicates)
	fmt.Fprintf(out, "  unknown status:     %d\n", report.UnknownStatus)

	c := friches.NewCatalog(sites, nil, nil)
	for _, row := range c.Stats(friches.Filter{}).ByStatus {
		fmt.Fprintf(out, "  %-19s %d\n", row.Label+":", row.Total)
	}

	if report.UnknownStatus > 0 {
		raw := map[string]int{}
		for _, s := range sites {
			if s.Status == friches.StatusUnknown {
				raw[s.RawStatus]++
			}
		}
		values := make([]string, 0, len(raw))
		for v := range raw {
			values = append(values, v)
		}
		utils.SortFrench(values)
		fmt.Fprintln(out, "  unrecognized status values:")
		for _, v := range values {
			fmt.Fprintf(out, "    %q (%d)\n", v, raw[v])
		}
	}
	return nil
}
