// Package config resolves mudra's runtime configuration from flags, MUDRA_*
// environment variables, an optional .env file and the settings table.
//
// Precedence, highest first: command line flag, environment (including the
// .env file), settings table (tuning values only), built-in default.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/plugin"
)

const (
	envPrefix      = "MUDRA_"
	defaultEnvFile = ".env"
	dbFile         = "mudra.db"
)

// Settings table keys that override the confirmer tuning defaults.
const (
	SettingRequiredStreak = "required_streak"
	SettingMinConfidence  = "min_confidence"
	SettingCooldownFrames = "cooldown_frames"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr      string
	DataDir   string
	PluginDir string
	StaticDir string
	EnvFile   string

	PluginTimeout   time.Duration
	CameraID        int
	CameraWidth     int
	CameraHeight    int
	Mirror          bool
	MotionThreshold float64

	RequiredStreak int
	MinConfidence  float64
	CooldownFrames int

	LogLevel  string
	LogFormat string
	NoTray    bool
	Disabled  bool

	// explicit holds the flags set on the command line or by environment.
	explicit map[string]bool
}

// SettingsReader reads typed values from the settings table.
type SettingsReader interface {
	Int(key string, def int) (int, error)
	Float(key string, def float64) (float64, error)
}

// Parse resolves the configuration for args (without the program name).
func Parse(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("mudra", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", "127.0.0.1:8080", "HTTP listen address")
	fs.StringVar(&cfg.DataDir, "data-dir", "", "data directory (default ~/.mudra)")
	fs.StringVar(&cfg.PluginDir, "plugin-dir", "", "plugin directory (default <data-dir>/plugins)")
	fs.StringVar(&cfg.StaticDir, "static-dir", "", "web UI directory")
	fs.StringVar(&cfg.EnvFile, "env-file", defaultEnvFile, "dotenv file with MUDRA_* variables")

	fs.DurationVar(&cfg.PluginTimeout, "plugin-timeout", plugin.DefaultTimeout, "plugin execution timeout")
	fs.IntVar(&cfg.CameraID, "camera", 0, "camera device index")
	fs.IntVar(&cfg.CameraWidth, "camera-width", capture.DefaultWidth, "capture width")
	fs.IntVar(&cfg.CameraHeight, "camera-height", capture.DefaultHeight, "capture height")
	fs.BoolVar(&cfg.Mirror, "mirror", true, "mirror camera frames")
	fs.Float64Var(&cfg.MotionThreshold, "motion-threshold", capture.DefaultMotionThreshold, "percent of changed pixels that counts as motion")

	fs.IntVar(&cfg.RequiredStreak, "streak", confirm.DefaultRequiredStreak, "consecutive frames needed to confirm a sign")
	fs.Float64Var(&cfg.MinConfidence, "min-confidence", confirm.DefaultMinConfidence, "minimum classifier confidence in [0,1]")
	fs.IntVar(&cfg.CooldownFrames, "cooldown", confirm.DefaultCooldownFrames, "frames ignored after a confirmation")

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&cfg.NoTray, "no-tray", false, "run without the menu bar icon")
	fs.BoolVar(&cfg.Disabled, "disabled", false, "start with recognition turned off")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.explicit[f.Name] = true })

	if err := loadEnvFile(cfg.EnvFile, cfg.explicit["env-file"]); err != nil {
		return Config{}, err
	}

	var envErr error
	fs.VisitAll(func(f *flag.Flag) {
		if envErr != nil || cfg.explicit[f.Name] {
			return
		}
		v, ok := os.LookupEnv(EnvName(f.Name))
		if !ok || v == "" {
			return
		}
		if err := fs.Set(f.Name, v); err != nil {
			envErr = fmt.Errorf("invalid %s: %w", EnvName(f.Name), err)
			return
		}
		cfg.explicit[f.Name] = true
	})
	if envErr != nil {
		return Config{}, envErr
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".mudra")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is only an error when it was named
// explicitly.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.PluginTimeout <= 0 {
		return errors.New("plugin-timeout must be positive")
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return errors.New("camera size must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// DBPath is the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFile)
}

// ApplySettings overrides tuning values that were not set by flag or
// environment with values stored in the settings table.
func (c *Config) ApplySettings(s SettingsReader) error {
	if !c.explicit["streak"] {
		v, err := s.Int(SettingRequiredStreak, c.RequiredStreak)
		if err != nil {
			return err
		}
		c.RequiredStreak = v
	}
	if !c.explicit["min-confidence"] {
		v, err := s.Float(SettingMinConfidence, c.MinConfidence)
		if err != nil {
			return err
		}
		c.MinConfidence = v
	}
	if !c.explicit["cooldown"] {
		v, err := s.Int(SettingCooldownFrames, c.CooldownFrames)
		if err != nil {
			return err
		}
		c.CooldownFrames = v
	}
	return nil
}

// Confirm builds and validates the confirmer configuration for a class
// table. An invalid combination returns a *confirm.ConfigurationError.
func (c Config) Confirm(classes []confirm.ClassSpec, reserved string) (confirm.Config, error) {
	cc := confirm.Config{
		RequiredStreak: c.RequiredStreak,
		MinConfidence:  c.MinConfidence,
		CooldownFrames: c.CooldownFrames,
		Classes:        classes,
		ReservedClass:  reserved,
	}
	if _, err := cc.Validate(); err != nil {
		return confirm.Config{}, err
	}
	return cc, nil
}

// Camera returns the capture settings.
func (c Config) Camera() capture.CameraConfig {
	cam := capture.DefaultCameraConfig()
	cam.DeviceID = c.CameraID
	cam.Width = c.CameraWidth
	cam.Height = c.CameraHeight
	cam.Mirror = c.Mirror
	return cam
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
