package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeInvalid means the settings file could not be read or parsed, or a
	// field is out of range.
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultDecoder       = "ffmpeg"
	DefaultJPEGQuality   = 95
	DefaultPreviewWidth  = 1280
	DefaultPreviewHeight = 720
	DefaultLogLevel      = "info"

	// AppName names the per-user config directory.
	AppName = "framepick"
)

// Config holds application settings. Values come from Default, then the
// optional YAML settings file, then FRAMEPICK_* environment variables, then
// command-line flags applied by the caller.
type Config struct {
	Decoder     string `yaml:"decoder" env:"FRAMEPICK_DECODER"`
	FFmpegPath  string `yaml:"ffmpeg_path" env:"FRAMEPICK_FFMPEG"`
	FFprobePath string `yaml:"ffprobe_path" env:"FRAMEPICK_FFPROBE"`

	JPEGQuality   int `yaml:"jpeg_quality" env:"FRAMEPICK_JPEG_QUALITY"`
	PreviewWidth  int `yaml:"preview_width" env:"FRAMEPICK_PREVIEW_WIDTH"`
	PreviewHeight int `yaml:"preview_height" env:"FRAMEPICK_PREVIEW_HEIGHT"`

	// StateFile is where last_video/save_dir/next_image are kept.
	StateFile string `yaml:"state_file" env:"FRAMEPICK_STATE_FILE"`

	WatchSaveDir bool   `yaml:"watch_save_dir" env:"FRAMEPICK_WATCH_SAVE_DIR"`
	ShowStats    bool   `yaml:"show_stats" env:"FRAMEPICK_SHOW_STATS"`
	LogLevel     string `yaml:"log_level" env:"FRAMEPICK_LOG_LEVEL"`
}

type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: settings %q: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code from err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Default() Config {
	return Config{
		Decoder:       DefaultDecoder,
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		JPEGQuality:   DefaultJPEGQuality,
		PreviewWidth:  DefaultPreviewWidth,
		PreviewHeight: DefaultPreviewHeight,
		StateFile:     DefaultStateFile(),
		WatchSaveDir:  true,
		LogLevel:      DefaultLogLevel,
	}
}

// Dir is the per-user directory for framepick files.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, AppName)
}

func DefaultStateFile() string {
	return filepath.Join(Dir(), "config.txt")
}

func DefaultSettingsFile() string {
	return filepath.Join(Dir(), "settings.yaml")
}

// Load builds the effective settings from path (optional; a missing file is
// fine) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	if err := cfg.Normalize(); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return cfg, nil
}

// Normalize expands "~" in paths, fills empty fields with defaults and
// validates ranges. Call it again after applying flags.
func (c *Config) Normalize() error {
	def := Default()

	c.Decoder = strings.ToLower(strings.TrimSpace(c.Decoder))
	if c.Decoder == "" {
		c.Decoder = def.Decoder
	}
	switch c.Decoder {
	case "ffmpeg", "opencv":
	default:
		return fmt.Errorf("decoder must be ffmpeg or opencv, got %q", c.Decoder)
	}

	if c.FFmpegPath == "" {
		c.FFmpegPath = def.FFmpegPath
	}
	if c.FFprobePath == "" {
		c.FFprobePath = def.FFprobePath
	}

	if c.JPEGQuality == 0 {
		c.JPEGQuality = def.JPEGQuality
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be in [1, 100], got %d", c.JPEGQuality)
	}

	if c.PreviewWidth < 0 || c.PreviewHeight < 0 {
		return fmt.Errorf("preview size must not be negative, got %dx%d", c.PreviewWidth, c.PreviewHeight)
	}

	if c.StateFile == "" {
		c.StateFile = def.StateFile
	}
	var err error
	if c.StateFile, err = homedir.Expand(c.StateFile); err != nil {
		return fmt.Errorf("state_file: %w", err)
	}
	if c.FFmpegPath, err = homedir.Expand(c.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg_path: %w", err)
	}
	if c.FFprobePath, err = homedir.Expand(c.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe_path: %w", err)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return nil
}

// ExpandPath expands a leading "~" in p. Paths that cannot be expanded are
// returned unchanged.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if x, err := homedir.Expand(p); err == nil {
		return x
	}
	return p
}
