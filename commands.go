package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/soocke/framepace/app"
	"github.com/soocke/framepace/app/hud"
	"github.com/soocke/framepace/config"
)

// Version is set by release builds through -ldflags.
var Version = "0.1.0-dev"

func newSimulateCmd() *cobra.Command {
	var (
		realtime bool
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a headless session against a simulated display and head tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			_, err = app.RunSimulation(cmd.Context(), cfg, logger, app.SimulationOptions{Realtime: realtime, Seed: seed})
			return err
		},
	}
	def := config.DefaultConfig()
	cmd.Flags().Int("frames", def.SimFrames, "frames to run (0 runs until interrupted)")
	cmd.Flags().Float64("scanout-ms", def.SimScanoutMs, "simulated present to scan-out delay")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace frames on the wall clock")
	cmd.Flags().Int64Var(&seed, "seed", 1, "scan-out jitter seed")
	_ = v.BindPFlag("sim_frames", cmd.Flags().Lookup("frames"))
	_ = v.BindPFlag("sim_scanout_ms", cmd.Flags().Lookup("scanout-ms"))
	return cmd
}

func newHUDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hud",
		Short: "Paint the latency tag patch on screen and measure it with the readback tester",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return hud.Run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().Int("x", 0, "tag patch left edge in screen pixels")
	cmd.Flags().Int("y", 0, "tag patch top edge in screen pixels")
	_ = v.BindPFlag("readback_x", cmd.Flags().Lookup("x"))
	_ = v.BindPFlag("readback_y", cmd.Flags().Lookup("y"))
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("config")
			if err := cfg.Save(path); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}

func versionString() string {
	rev := "HEAD"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				rev = s.Value
			}
		}
	}
	return fmt.Sprintf("%s (%s; %s; %s/%s)", Version, rev, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
