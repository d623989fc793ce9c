package main

import (
	"fmt"

	"github.com/2beens/wodcareer/internal/career"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	levelsFrom int
	levelsTo   int
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the XP level curve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if levelsFrom < 1 || levelsTo > career.LevelCount || levelsFrom > levelsTo {
			return fmt.Errorf("levels range must be within 1..%d", career.LevelCount)
		}

		out := cmd.OutOrStdout()
		bold := color.New(color.Bold)
		faint := color.New(color.Faint)
		fmt.Fprintln(out, bold.Sprintf("%-6s %-5s %10s %10s %8s", "LEVEL", "CODE", "MIN XP", "MAX XP", "SPAN"))
		for _, l := range career.Ladder()[levelsFrom-1 : levelsTo] {
			fmt.Fprintf(out, "%-6d %-5s %10d %10d %s\n",
				l.Number, l.Code, l.MinXP, l.MaxXP, faint.Sprintf("%8d", l.Span()))
		}
		return nil
	},
}

func init() {
	levelsCmd.Flags().IntVar(&levelsFrom, "from", 1, "first level to print")
	levelsCmd.Flags().IntVar(&levelsTo, "to", career.LevelCount, "last level to print")
}
