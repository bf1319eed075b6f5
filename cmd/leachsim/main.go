// Command leachsim runs the LEACH discrete-event simulation from a
// YAML configuration file and reports end-of-run scalars and, when a
// series output path is given, a per-node energy trace.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/simonlingoogle/go-simplelogger"
	"github.com/spf13/cobra"

	"github.com/kprusa/leachsim/internal/config"
	"github.com/kprusa/leachsim/internal/network"
	"github.com/kprusa/leachsim/internal/observe"
)

// version is set by the release process; "dev" covers local builds.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		simplelogger.Errorf("%v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var scalarsPath string
	var seriesPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "leachsim",
		Short: "LEACH wireless sensor network simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				simplelogger.SetLevel(simplelogger.DebugLevel)
			} else {
				simplelogger.SetLevel(simplelogger.InfoLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and report end-of-run scalars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(configPath, scalarsPath, seriesPath)
		},
	}
	runCmd.Flags().StringVar(&scalarsPath, "scalars-out", "", "write run scalars as CSV to this path (default stdout)")
	runCmd.Flags().StringVar(&seriesPath, "series-out", "", "write per-node energy samples as CSV to this path")

	validateCmd := &cobra.Command{
		Use:   "validate-config",
		Short: "load and validate a configuration file without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d nodes, %d rounds/cycle\n", cfg.Nnodes, cfg.RoundsPerElectionCycle())
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the leachsim version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}

	cmd.AddCommand(runCmd, validateCmd, versionCmd)
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, fmt.Errorf("--config is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return config.Config{}, err
	}
	defer f.Close()
	return config.Load(f)
}

func runSimulation(configPath, scalarsPath, seriesPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(scalarsPath, seriesPath)
	if err != nil {
		return err
	}
	defer closeSink()

	net, err := network.New(cfg, sink)
	if err != nil {
		return err
	}

	result := net.Run()
	fmt.Printf("endTime=%s rounds=%d firstNodeDead=%d\n", result.EndTime, result.Rounds, result.FirstNodeDead)
	return nil
}

func openSink(scalarsPath, seriesPath string) (observe.Sink, func(), error) {
	scalarsW := os.Stdout
	var scalarsFile *os.File
	if scalarsPath != "" {
		f, err := os.Create(scalarsPath)
		if err != nil {
			return nil, nil, err
		}
		scalarsFile = f
		scalarsW = f
	}

	seriesW := io.Discard
	var seriesFile *os.File
	if seriesPath != "" {
		f, err := os.Create(seriesPath)
		if err != nil {
			if scalarsFile != nil {
				scalarsFile.Close()
			}
			return nil, nil, err
		}
		seriesFile = f
	}

	var sink observe.Sink
	if seriesFile != nil {
		sink = observe.NewCSV(scalarsW, seriesFile)
	} else {
		sink = observe.NewCSV(scalarsW, seriesW)
	}

	closer := func() {
		if scalarsFile != nil {
			scalarsFile.Close()
		}
		if seriesFile != nil {
			seriesFile.Close()
		}
	}
	return sink, closer, nil
}
