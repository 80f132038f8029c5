package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/console"
	"github.com/signalsfoundry/target-compass/model"
)

var bearingCmd = &cobra.Command{
	Use:     "bearing <lat1> <lon1> <lat2> <lon2>",
	Aliases: []string{"b"},
	Short:   "Print the great-circle distance and initial bearing between two points",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var v [4]float64
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("argument %d (%q) is not a number", i+1, a)
			}
			v[i] = f
		}
		if err := model.ValidateCoordinates(v[0], v[1]); err != nil {
			return fmt.Errorf("from: %w", err)
		}
		if err := model.ValidateCoordinates(v[2], v[3]); err != nil {
			return fmt.Errorf("to: %w", err)
		}

		dist := core.DistanceDegrees(v[0], v[1], v[2], v[3])
		brg := core.BearingDegrees(v[0], v[1], v[2], v[3])
		fmt.Fprintf(cmd.OutOrStdout(), "distance %s  bearing %s\n",
			color.GreenString(console.FormatDistance(dist)),
			color.CyanString("%.1f°", brg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bearingCmd)
}
