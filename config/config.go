package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soocke/framepace/domain/hmd"
)

// Device presets.
const (
	DeviceCustom = "custom"
	DeviceDK2    = "dk2"
)

// EnvPrefix prefixes environment overrides, e.g. FRAMEPACE_REFRESH_HZ.
const EnvPrefix = "FRAMEPACE"

// Config holds runtime configuration for the frame timing session and its
// tooling. Fields may be loaded from a JSON file and overridden by
// environment variables or command-line flags.
type Config struct {
	Debug bool `json:"debug" mapstructure:"debug"`

	// Display. Device "dk2" selects the built-in DK2 panel and ignores the
	// refresh rate, shutter and delay fields; "custom" uses them.
	Device    string  `json:"device" mapstructure:"device"`
	RefreshHz float64 `json:"refresh_hz" mapstructure:"refresh_hz"`
	Shutter   string  `json:"shutter" mapstructure:"shutter"`
	Vsync     bool    `json:"vsync" mapstructure:"vsync"`

	// Panel delays of a custom device. Zero delays fall back to the frame
	// time manager's estimates.
	VsyncToFirstScanlineMs        float64 `json:"vsync_to_first_scanline_ms" mapstructure:"vsync_to_first_scanline_ms"`
	FirstScanlineToLastScanlineMs float64 `json:"first_scanline_to_last_scanline_ms" mapstructure:"first_scanline_to_last_scanline_ms"`
	NoVsyncToScanoutMs            float64 `json:"no_vsync_to_scanout_ms" mapstructure:"no_vsync_to_scanout_ms"`
	PixelSettleMs                 float64 `json:"pixel_settle_ms" mapstructure:"pixel_settle_ms"`
	PixelPersistenceMs            float64 `json:"pixel_persistence_ms" mapstructure:"pixel_persistence_ms"`

	// Prediction
	DynamicPrediction bool    `json:"dynamic_prediction" mapstructure:"dynamic_prediction"`
	SDKRender         bool    `json:"sdk_render" mapstructure:"sdk_render"`
	TimewarpLeadMs    float64 `json:"timewarp_lead_ms" mapstructure:"timewarp_lead_ms"`

	// Latency tester
	LatencyTester bool `json:"latency_tester" mapstructure:"latency_tester"`
	ReadbackX     int  `json:"readback_x" mapstructure:"readback_x"`
	ReadbackY     int  `json:"readback_y" mapstructure:"readback_y"`
	ReadbackSize  int  `json:"readback_size" mapstructure:"readback_size"`
	PollMicros    int  `json:"poll_us" mapstructure:"poll_us"`

	// Simulation
	SimScanoutMs float64 `json:"sim_scanout_ms" mapstructure:"sim_scanout_ms"`
	SimJitterMs  float64 `json:"sim_jitter_ms" mapstructure:"sim_jitter_ms"`
	SimYawRate   float64 `json:"sim_yaw_rate" mapstructure:"sim_yaw_rate"`
	SimFrames    int     `json:"sim_frames" mapstructure:"sim_frames"`

	// Diagnostics
	LogIntervalMs int `json:"log_interval_ms" mapstructure:"log_interval_ms"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		Device:            DeviceCustom,
		RefreshHz:         90,
		Shutter:           hmd.ShutterRollingRightToLeft.String(),
		Vsync:             true,
		DynamicPrediction: true,
		SDKRender:         false,
		TimewarpLeadMs:    0,
		LatencyTester:     true,
		ReadbackX:         0,
		ReadbackY:         0,
		ReadbackSize:      16,
		PollMicros:        1000,
		SimScanoutMs:      20,
		SimJitterMs:       0.5,
		SimYawRate:        1.0,
		SimFrames:         900,
		LogIntervalMs:     1000,
	}
}

// Validate clamps/normalizes values to safe ranges. Only unknown shutter and
// device names are reported as errors.
func (c *Config) Validate() error {
	if c.RefreshHz <= 0 || c.RefreshHz > 1000 {
		c.RefreshHz = 90
	}
	if c.TimewarpLeadMs < 0 {
		c.TimewarpLeadMs = 0
	}
	if c.ReadbackSize <= 0 {
		c.ReadbackSize = 16
	}
	if c.ReadbackX < 0 {
		c.ReadbackX = 0
	}
	if c.ReadbackY < 0 {
		c.ReadbackY = 0
	}
	if c.PollMicros <= 0 {
		c.PollMicros = 1000
	}
	for _, ms := range []*float64{
		&c.VsyncToFirstScanlineMs,
		&c.FirstScanlineToLastScanlineMs,
		&c.NoVsyncToScanoutMs,
		&c.PixelSettleMs,
		&c.PixelPersistenceMs,
	} {
		if *ms < 0 {
			*ms = 0
		}
	}
	if c.SimScanoutMs < 0 {
		c.SimScanoutMs = 0
	}
	if c.SimJitterMs < 0 {
		c.SimJitterMs = 0
	}
	if c.SimFrames < 0 {
		c.SimFrames = 0
	}
	if c.LogIntervalMs <= 0 {
		c.LogIntervalMs = 1000
	}
	if c.Shutter == "" {
		c.Shutter = hmd.ShutterRollingRightToLeft.String()
	}
	if _, ok := hmd.ParseShutterType(c.Shutter); !ok {
		return fmt.Errorf("unknown shutter %q", c.Shutter)
	}
	switch c.Device {
	case "":
		c.Device = DeviceCustom
	case DeviceCustom, DeviceDK2:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	return nil
}

// RenderInfo returns the device characteristics described by c.
func (c *Config) RenderInfo() hmd.RenderInfo {
	if c.Device == DeviceDK2 {
		return hmd.DK2RenderInfo()
	}
	shutter, _ := hmd.ParseShutterType(c.Shutter)
	info := hmd.RenderInfoForRefresh(c.RefreshHz, shutter)
	info.Shutter.VsyncToFirstScanline = c.VsyncToFirstScanlineMs / 1000
	info.Shutter.FirstScanlineToLastScanline = c.FirstScanlineToLastScanlineMs / 1000
	info.Shutter.NoVsyncToScanout = c.NoVsyncToScanoutMs / 1000
	info.Shutter.PixelSettleTime = c.PixelSettleMs / 1000
	info.Shutter.PixelPersistence = c.PixelPersistenceMs / 1000
	return info
}

// ReadbackRect is the screen rectangle of the tag patch.
func (c *Config) ReadbackRect() image.Rectangle {
	return image.Rect(c.ReadbackX, c.ReadbackY, c.ReadbackX+c.ReadbackSize, c.ReadbackY+c.ReadbackSize)
}

// PollInterval is the readback poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMicros) * time.Microsecond
}

// LogInterval is the period of the timing logger.
func (c *Config) LogInterval() time.Duration {
	return time.Duration(c.LogIntervalMs) * time.Millisecond
}

// TimewarpLead is the application time-warp lead in seconds.
func (c *Config) TimewarpLead() float64 { return c.TimewarpLeadMs / 1000 }

// NewViper returns a viper instance seeded with the defaults and reading
// FRAMEPACE_* environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("debug", def.Debug)
	v.SetDefault("device", def.Device)
	v.SetDefault("refresh_hz", def.RefreshHz)
	v.SetDefault("shutter", def.Shutter)
	v.SetDefault("vsync", def.Vsync)
	v.SetDefault("vsync_to_first_scanline_ms", def.VsyncToFirstScanlineMs)
	v.SetDefault("first_scanline_to_last_scanline_ms", def.FirstScanlineToLastScanlineMs)
	v.SetDefault("no_vsync_to_scanout_ms", def.NoVsyncToScanoutMs)
	v.SetDefault("pixel_settle_ms", def.PixelSettleMs)
	v.SetDefault("pixel_persistence_ms", def.PixelPersistenceMs)
	v.SetDefault("dynamic_prediction", def.DynamicPrediction)
	v.SetDefault("sdk_render", def.SDKRender)
	v.SetDefault("timewarp_lead_ms", def.TimewarpLeadMs)
	v.SetDefault("latency_tester", def.LatencyTester)
	v.SetDefault("readback_x", def.ReadbackX)
	v.SetDefault("readback_y", def.ReadbackY)
	v.SetDefault("readback_size", def.ReadbackSize)
	v.SetDefault("poll_us", def.PollMicros)
	v.SetDefault("sim_scanout_ms", def.SimScanoutMs)
	v.SetDefault("sim_jitter_ms", def.SimJitterMs)
	v.SetDefault("sim_yaw_rate", def.SimYawRate)
	v.SetDefault("sim_frames", def.SimFrames)
	v.SetDefault("log_interval_ms", def.LogIntervalMs)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the JSON file at path into v and decodes
// the result. A missing file leaves the defaults (and any environment or
// flag overrides bound to v) in effect.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return DefaultConfig(), fmt.Errorf("config read '%s': %w", path, err)
			}
		}
	}
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
