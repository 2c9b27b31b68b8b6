package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/circus/datarecording"
	"github.com/sarchlab/circus/monitoring"
	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/simulation"
	"github.com/sarchlab/circus/sim/timing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the clock and print one event per actor action.",
	Long: "`run --profile visits=daily.csv --actors 100 --ticks 168` runs " +
		"one week of hourly ticks and prints a CSV line for every action.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := readRunConfig(cmd)
		if err != nil {
			return err
		}

		return run(cmd, cfg)
	},
}

type profileArg struct {
	name string
	path string
}

type runConfig struct {
	profiles    []profileArg
	start       time.Time
	step        time.Duration
	ticks       int
	actors      int
	activity    float64
	seed        uint64
	record      string
	checkpoint  string
	resume      string
	verbose     bool
	monitor     bool
	port        int
	openBrowser bool
}

func parseProfileArg(s string) profileArg {
	name, path, found := strings.Cut(s, "=")
	if !found {
		path = s
		name = strings.TrimSuffix(filepath.Base(s), filepath.Ext(s))
	}

	return profileArg{name: name, path: path}
}

func readRunConfig(cmd *cobra.Command) (runConfig, error) {
	var (
		cfg runConfig
		err error
	)

	profiles, _ := cmd.Flags().GetStringArray("profile")
	for _, p := range profiles {
		cfg.profiles = append(cfg.profiles, parseProfileArg(p))
	}

	cfg.start, err = activity.ParseTime(stringOption(cmd, "start", envStart))
	if err != nil {
		return cfg, err
	}

	cfg.step, err = activity.ParseStep(stringOption(cmd, "step", envStep))
	if err != nil {
		return cfg, err
	}

	cfg.seed, err = uint64Option(cmd, "seed", envSeed)
	if err != nil {
		return cfg, fmt.Errorf("bad %s: %w", envSeed, err)
	}

	cfg.record = stringOption(cmd, "record", envRecord)

	cfg.ticks, _ = cmd.Flags().GetInt("ticks")
	cfg.actors, _ = cmd.Flags().GetInt("actors")
	cfg.activity, _ = cmd.Flags().GetFloat64("activity")
	cfg.checkpoint, _ = cmd.Flags().GetString("checkpoint")
	cfg.resume, _ = cmd.Flags().GetString("resume")
	cfg.verbose, _ = cmd.Flags().GetBool("verbose")
	cfg.monitor, _ = cmd.Flags().GetBool("monitor")
	cfg.port, _ = cmd.Flags().GetInt("monitor-port")
	cfg.openBrowser, _ = cmd.Flags().GetBool("open-browser")

	return cfg, nil
}

func buildSimulation(cfg runConfig) (*simulation.Simulation, error) {
	clock, err := timing.MakeBuilder().
		WithStart(cfg.start).
		WithStep(cfg.step).
		WithSeed(cfg.seed).
		Build("Clock")
	if err != nil {
		return nil, err
	}

	if cfg.verbose {
		clock.AcceptHook(timing.NewClockLogger(log.New(os.Stderr, "", 0)))
	}

	s := simulation.NewSimulation(clock)

	for i, p := range cfg.profiles {
		profile, err := activity.LoadProfile(p.path)
		if err != nil {
			return nil, err
		}

		_, err = s.AddGenerator(p.name, profile, cfg.seed+uint64(i)+1)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func run(cmd *cobra.Command, cfg runConfig) error {
	if len(cfg.profiles) == 0 {
		return fmt.Errorf("at least one --profile is required")
	}

	s, err := buildSimulation(cfg)
	if err != nil {
		return err
	}

	var recorder datarecording.DataRecorder
	if cfg.record != "" {
		recorder = datarecording.New(cfg.record)
		defer recorder.Close()
	}

	if recorder != nil && cfg.resume == "" {
		s.AttachRecorder(recorder)
	}

	populations, err := buildPopulations(s, cfg)
	if err != nil {
		return err
	}

	// The checkpoint replaces the first draws of the actors, so a resumed
	// run only records from the restored state on.
	if cfg.resume != "" {
		err = s.Load(cfg.resume)
		if err != nil {
			return err
		}

		if recorder != nil {
			s.AttachRecorder(recorder)
		}
	}

	var (
		monitor *monitoring.Monitor
		bar     *monitoring.ProgressBar
	)

	if cfg.monitor {
		monitor = monitoring.NewMonitor().WithBrowser(cfg.openBrowser)
		if cfg.port != 0 {
			monitor.WithPortNumber(cfg.port)
		}

		monitor.RegisterSimulation(s)
		monitor.StartServer()

		bar = monitor.CreateProgressBar("run", uint64(cfg.ticks))
		defer monitor.CompleteProgressBar(bar)
	}

	out := csv.NewWriter(cmd.OutOrStdout())
	column := timing.NewTimestampColumn(
		s.Clock(), "timestamp", timing.DefaultTimestampLayout)

	err = out.Write([]string{column.Name(), "generator", "actor"})
	if err != nil {
		return err
	}

	err = s.Run(cfg.ticks, func(time.Time) error {
		for _, p := range populations {
			due, err := p.Due()
			if err != nil {
				return err
			}

			col := column.Build(due)
			for i, actor := range col.Rows {
				err = out.Write([]string{
					col.Values[i],
					p.Generator().Name(),
					strconv.Itoa(actor),
				})
				if err != nil {
					return err
				}
			}
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}

		return nil
	})
	if err != nil {
		return err
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return err
	}

	if cfg.checkpoint != "" {
		return s.Save(cfg.checkpoint)
	}

	return nil
}

func buildPopulations(
	s *simulation.Simulation,
	cfg runConfig,
) ([]*simulation.Population, error) {
	levels := make([]float64, cfg.actors)
	for i := range levels {
		levels[i] = cfg.activity
	}

	for _, g := range s.Generators() {
		_, err := s.AddPopulation(g.Name(), levels)
		if err != nil {
			return nil, err
		}
	}

	return s.Populations(), nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArray("profile", nil,
		"Profile file, optionally named as name=path; can be repeated")
	runCmd.Flags().String("start", "2020-01-01T00:00:00",
		"Simulated start time ("+envStart+")")
	runCmd.Flags().String("step", "1h",
		"Clock step, in whole seconds ("+envStep+")")
	runCmd.Flags().Uint64("seed", 0, "Random seed ("+envSeed+")")
	runCmd.Flags().String("record", "",
		"Record ticks and draws into <record>.sqlite3 ("+envRecord+")")
	runCmd.Flags().Int("ticks", 24, "Number of clock ticks to run")
	runCmd.Flags().Int("actors", 10, "Number of actors per profile")
	runCmd.Flags().Float64("activity", 1,
		"Activity level of each actor; higher levels act sooner")
	runCmd.Flags().String("checkpoint", "",
		"Write a checkpoint to this file after the run")
	runCmd.Flags().String("resume", "",
		"Resume the clock, generators and actors from this checkpoint")
	runCmd.Flags().BoolP("verbose", "v", false, "Log every clock tick")
	runCmd.Flags().Bool("monitor", false, "Serve the monitoring API")
	runCmd.Flags().Int("monitor-port", 0, "Port of the monitoring API")
	runCmd.Flags().Bool("open-browser", false,
		"Open the monitoring API in a browser")
}
