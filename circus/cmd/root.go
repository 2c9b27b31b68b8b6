// Package cmd provides the command-line interface for circus.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide flag defaults. They can also be set in a
// .env file in the working directory.
const (
	envSeed   = "CIRCUS_SEED"
	envStep   = "CIRCUS_STEP"
	envStart  = "CIRCUS_START"
	envRecord = "CIRCUS_RECORD"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "circus",
	Short: "Circus draws synthetic activity of many actors that follow " +
		"daily and weekly patterns.",
	Long: `Circus draws synthetic activity of many actors that follow ` +
		`daily and weekly patterns. It can create and inspect activity ` +
		`profiles and run a clock that emits one event per actor action.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	loadEnv(".env")

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadEnv(filename string) {
	err := godotenv.Load(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot read %s: %s\n", filename, err)
	}
}

// stringOption returns the flag value, or the environment value when the flag
// is not given on the command line.
func stringOption(cmd *cobra.Command, flag, env string) string {
	value, _ := cmd.Flags().GetString(flag)

	if !cmd.Flags().Changed(flag) {
		if v, ok := os.LookupEnv(env); ok {
			return v
		}
	}

	return value
}

func uint64Option(cmd *cobra.Command, flag, env string) (uint64, error) {
	value, _ := cmd.Flags().GetUint64(flag)

	if !cmd.Flags().Changed(flag) {
		if v, ok := os.LookupEnv(env); ok {
			return strconv.ParseUint(v, 10, 64)
		}
	}

	return value, nil
}
