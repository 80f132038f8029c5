package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "Point at a fixed target from a moving device",
	Long: `compass tracks the device location and attitude and reports the
distance and relative bearing to a configured target.

Examples:
  compass run --config compass.yaml
  compass run --accelerated --duration 2m --target 53.9531,27.6774
  compass bearing 53.95 27.672 53.953168 27.677397`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}
