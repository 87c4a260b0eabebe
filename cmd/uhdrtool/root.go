package main

import (
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vearutop/jpegr"
	"github.com/vearutop/jpegr/internal/config"
)

var (
	cfgPath    string
	verbose    bool
	cpuProfile string

	cfg      = config.DefaultConfig()
	log      = logrus.New()
	profiler interface{ Stop() }
)

var rootCmd = &cobra.Command{
	Use:           "uhdrtool",
	Short:         "Encode, decode and inspect JPEG/R (UltraHDR) images",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}

		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c

		if cpuProfile != "" {
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(cpuProfile), profile.Quiet)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile into this directory")
}

func newJpegR(gainMapQuality int) *jpegr.JpegR {
	return jpegr.New(
		jpegr.WithLogger(log),
		jpegr.WithWorkers(cfg.Runtime.Workers),
		jpegr.WithGainMapQuality(gainMapQuality),
	)
}

var configCmd = &cobra.Command{
	Use:   "config <output.yaml>",
	Short: "Write the effective configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return config.Save(cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
