package cmd

import (
	"fmt"
	"time"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Create and inspect activity profiles.",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create [file]",
	Short: "Write an activity profile file.",
	Long: "`profile create --weights 1,1,5,5 --step 6h --anchor 2020-01-01 " +
		"daily.csv` writes a profile with one weight per phase.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, _ := cmd.Flags().GetFloat64Slice("weights")
		step, _ := cmd.Flags().GetString("step")
		anchorStr, _ := cmd.Flags().GetString("anchor")

		anchor, err := activity.ParseTime(anchorStr)
		if err != nil {
			return err
		}

		profile, err := activity.NewProfile(weights, step, anchor)
		if err != nil {
			return err
		}

		err = profile.SaveTo(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Profile with %d phases written to %s\n",
			profile.NumPhases(), args[0])

		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the phases of an activity profile file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activity.LoadProfile(args[0])
		if err != nil {
			return err
		}

		printProfile(cmd, profile)

		return nil
	},
}

func printProfile(cmd *cobra.Command, profile activity.Profile) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "anchor: %s\n", profile.Anchor().Format(time.RFC3339))
	fmt.Fprintf(out, "step:   %s (%s)\n",
		profile.StepToken(), profile.PhaseStep())
	fmt.Fprintf(out, "cycle:  %s\n", profile.CycleDuration())

	total := 0.0
	for _, w := range profile.Weights() {
		total += w
	}

	for i, w := range profile.Weights() {
		share := 0.0
		if total > 0 {
			share = w / total
		}

		offset := time.Duration(i) * profile.PhaseStep()
		fmt.Fprintf(out, "%4d  +%-12s %10.4f  %6.2f%%\n",
			i, offset, w, 100*share)
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileShowCmd)

	profileCreateCmd.Flags().Float64Slice("weights", nil,
		"Weight of each phase, in order")
	profileCreateCmd.Flags().String("step", "1h",
		"Duration of one phase, such as 15min, 1h or 1D")
	profileCreateCmd.Flags().String("anchor", "2020-01-01T00:00:00",
		"Instant at which phase 0 starts")

	_ = profileCreateCmd.MarkFlagRequired("weights")
}
