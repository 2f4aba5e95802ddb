package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soocke/framepace/config"
)

const defaultConfigPath = "framepace.json"

// v holds defaults, the config file, FRAMEPACE_* environment overrides and
// changed flags, in increasing priority.
var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:           "framepace",
	Short:         "Frame pacing and latency measurement for head mounted displays",
	Version:       versionString(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "config file (JSON)")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging and runtime stats")
	rootCmd.PersistentFlags().String("device", config.DeviceCustom, "device preset: custom or dk2")
	rootCmd.PersistentFlags().Float64("refresh", config.DefaultConfig().RefreshHz, "display refresh rate in Hz")
	rootCmd.PersistentFlags().Bool("vsync", true, "wait for vertical sync")
	_ = v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	_ = v.BindPFlag("refresh_hz", rootCmd.PersistentFlags().Lookup("refresh"))
	_ = v.BindPFlag("vsync", rootCmd.PersistentFlags().Lookup("vsync"))

	rootCmd.AddCommand(newSimulateCmd(), newHUDCmd(), newConfigCmd(), newVersionCmd())
}

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	slog.SetDefault(logger)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "path", used)
	}
	return cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
