package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CAMROLL"

type StreamConfig struct {
	Resolution string `mapstructure:"resolution" json:"resolution"`
	FPS        int    `mapstructure:"fps" json:"fps"`
}

// Size parses Resolution ("640x480").
func (s StreamConfig) Size() (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s.Resolution, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q", s.Resolution)
	}
	return w, h, nil
}

type CameraConfig struct {
	Backend      string       `mapstructure:"backend" json:"backend"`
	DeviceID     string       `mapstructure:"device_id" json:"device_id"`
	StreamConfig StreamConfig `mapstructure:"stream" json:"stream"`
}

type CaptureConfig struct {
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" json:"capture_timeout"`
	RecordTimeout  time.Duration `mapstructure:"record_timeout" json:"record_timeout"`
	PersistWorkers int64         `mapstructure:"persist_workers" json:"persist_workers"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout" json:"persist_timeout"`
}

// PermissionConfig holds the host answers used by the simulated backends.
// An empty value means probe the real resource.
type PermissionConfig struct {
	Camera       string        `mapstructure:"camera" json:"camera"`
	MediaLibrary string        `mapstructure:"media_library" json:"media_library"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Port    string `mapstructure:"port" json:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

type AppConfig struct {
	DataDir     string           `mapstructure:"data_dir" json:"data_dir"`
	LibraryDir  string           `mapstructure:"library_dir" json:"library_dir"`
	CaptureDir  string           `mapstructure:"capture_dir" json:"capture_dir"`
	Log         LogConfig        `mapstructure:"log" json:"log"`
	Camera      CameraConfig     `mapstructure:"camera" json:"camera"`
	Capture     CaptureConfig    `mapstructure:"capture" json:"capture"`
	Permissions PermissionConfig `mapstructure:"permissions" json:"permissions"`
	Server      ServerConfig     `mapstructure:"server" json:"server"`
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("library_dir", "")
	v.SetDefault("capture_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "camroll.log")

	v.SetDefault("camera.backend", "sim")
	v.SetDefault("camera.device_id", "0")
	v.SetDefault("camera.stream.resolution", "640x480")
	v.SetDefault("camera.stream.fps", 30)

	v.SetDefault("capture.capture_timeout", "10s")
	v.SetDefault("capture.record_timeout", "5m")
	v.SetDefault("capture.persist_workers", 2)
	v.SetDefault("capture.persist_timeout", "30s")

	v.SetDefault("permissions.camera", "")
	v.SetDefault("permissions.media_library", "")
	v.SetDefault("permissions.timeout", "5s")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", "8080")
}

// DefaultPath is ~/.config/camroll/config.json.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "camroll", "config.json"), nil
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".camroll")
	}
	return ".camroll"
}

// Load reads path (DefaultPath when empty) over the defaults. A missing
// file is not an error. CAMROLL_* environment variables win over both.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, defaultDataDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) fillDerived() {
	if c.LibraryDir == "" {
		c.LibraryDir = filepath.Join(c.DataDir, "library")
	}
	if c.CaptureDir == "" {
		c.CaptureDir = filepath.Join(c.DataDir, "captures")
	}
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(c.DataDir, c.Log.File)
	}
}

func (c *AppConfig) Validate() error {
	if _, _, err := c.Camera.StreamConfig.Size(); err != nil {
		return err
	}
	if c.Camera.StreamConfig.FPS <= 0 {
		return fmt.Errorf("camera fps must be positive, got %d", c.Camera.StreamConfig.FPS)
	}
	switch c.Camera.Backend {
	case "sim", "gocv":
	default:
		return fmt.Errorf("unknown camera backend %q", c.Camera.Backend)
	}
	for name, answer := range map[string]string{"camera": c.Permissions.Camera, "media_library": c.Permissions.MediaLibrary} {
		switch answer {
		case "", "granted", "denied", "unreachable":
		default:
			return fmt.Errorf("invalid permission answer %q for %s", answer, name)
		}
	}
	return nil
}

// Save writes the config as JSON to path (DefaultPath when empty).
func Save(config *AppConfig, path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configBytes, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, configBytes, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error renaming config file: %w", err)
	}
	return nil
}
