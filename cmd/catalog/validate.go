package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a catalog file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			for _, e := range multierr.Errors(err) {
				color.Red("✗ %s", e)
			}
			return fmt.Errorf("catalog is invalid")
		}

		color.Green("✓ Catalog is valid")
		fmt.Fprintf(cmd.OutOrStdout(), "  %d capacities, %d achievements, %d missions\n",
			len(c.Capacities), len(c.Achievements), len(c.Missions))
		return nil
	},
}
