package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/circus/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Sum up a recording written by run --record.",
	Long: "`report --record visits` reads visits.sqlite3 and prints the " +
		"ticks and the waiting times drawn per generator.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		record := stringOption(cmd, "record", envRecord)
		if record == "" {
			return fmt.Errorf("--record or %s is required", envRecord)
		}

		filename := record + ".sqlite3"
		if _, err := os.Stat(filename); err != nil {
			return err
		}

		reader := datarecording.NewReader(filename)
		defer reader.Close()

		report, err := datarecording.Summarize(cmd.Context(), reader)
		if err != nil {
			return err
		}

		printReport(cmd, report)

		return nil
	},
}

func printReport(cmd *cobra.Command, report datarecording.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "ticks: %d", report.Ticks)
	if report.Ticks > 0 {
		fmt.Fprintf(out, " (%s to %s)",
			report.FirstTick.Format(time.RFC3339),
			report.LastTick.Format(time.RFC3339))
	}
	fmt.Fprintln(out)

	for _, g := range report.Generators {
		fmt.Fprintf(out, "%-16s %8d draws %6d actors  mean wait %.2f  max %d\n",
			g.Generator, g.Draws, g.Actors, g.MeanWait, g.MaxWait)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("record", "",
		"Recording name, without the .sqlite3 suffix ("+envRecord+")")
}
