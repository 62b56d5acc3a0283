package main

import (
	"github.com/EmpoweredVote/friches-map/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "friches",
	Short: "Maintenance tasks for the friches map dataset",
	Long: `friches checks, imports and exports the table of post-industrial sites
served by the map API. Settings come from the same YAML file and FRICHES_*
variables as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "friches.yml", "config file path")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
