// Package config holds the runtime configuration for reelmerge.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// REELMERGE_* environment variables. Validate must pass before the config is
// handed to any component.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MergeMode names the default merge strategy for requests that do not pick one.
const (
	ModeOverlay    = "overlay"
	ModeTransition = "transition"
)

// Overlay failure policies.
const (
	OverlayFailFast     = "fail"
	OverlayFallbackCopy = "concat"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Download  DownloadConfig  `yaml:"download"`
	Binaries  BinaryConfig    `yaml:"binaries"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	PublicBaseURL   string        `yaml:"public_base_url"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type StorageConfig struct {
	ProcessingDir string `yaml:"processing_dir"`
	OutputDir     string `yaml:"output_dir"`
}

type CanvasConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frame_rate"`
}

type PipelineConfig struct {
	Workers          int     `yaml:"workers"`
	MaxClips         int     `yaml:"max_clips"`
	DefaultMode      string  `yaml:"default_mode"`
	CrossfadeSeconds float64 `yaml:"crossfade_seconds"`
}

type TimeoutConfig struct {
	Download  time.Duration `yaml:"download"`
	Normalize time.Duration `yaml:"normalize"`
	Combine   time.Duration `yaml:"combine"`
	Probe     time.Duration `yaml:"probe"`
}

type OverlayConfig struct {
	FailurePolicy string `yaml:"failure_policy"`
	FontFile      string `yaml:"font_file"`
}

type DownloadConfig struct {
	Retries     int      `yaml:"retries"`
	NoiseParams []string `yaml:"noise_params"`
}

type BinaryConfig struct {
	YtDlp   string `yaml:"ytdlp"`
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

type RetentionConfig struct {
	Expiry        time.Duration `yaml:"expiry"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8000",
			RateLimit:       30,
			RateWindow:      time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			ProcessingDir: "/tmp/video_processing",
			OutputDir:     "/tmp/video_output",
		},
		Canvas: CanvasConfig{Width: 1080, Height: 1920, FrameRate: 30},
		Pipeline: PipelineConfig{
			Workers:          3,
			MaxClips:         15,
			DefaultMode:      ModeOverlay,
			CrossfadeSeconds: 0.5,
		},
		Timeouts: TimeoutConfig{
			Download:  5 * time.Minute,
			Normalize: 10 * time.Minute,
			Combine:   15 * time.Minute,
			Probe:     30 * time.Second,
		},
		Overlay: OverlayConfig{
			FailurePolicy: OverlayFailFast,
			FontFile:      "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		},
		Download: DownloadConfig{
			Retries:     10,
			NoiseParams: []string{"a", "s", "sig", "signature", "expires", "fbclid", "gclid", "utm_*"},
		},
		Binaries: BinaryConfig{YtDlp: "yt-dlp", FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		Retention: RetentionConfig{
			Expiry:        48 * time.Hour,
			SweepInterval: time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and means "no overrides".
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting joined into one error.
func (c Config) Validate() error {
	var errs []error
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height))
	}
	if c.Canvas.Width%2 != 0 || c.Canvas.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("canvas dimensions must be even for yuv420p, got %dx%d", c.Canvas.Width, c.Canvas.Height))
	}
	if c.Canvas.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.MaxClips < 1 {
		errs = append(errs, fmt.Errorf("max_clips must be >= 1, got %d", c.Pipeline.MaxClips))
	}
	switch c.Pipeline.DefaultMode {
	case ModeOverlay, ModeTransition:
	default:
		errs = append(errs, fmt.Errorf("default_mode must be %q or %q, got %q", ModeOverlay, ModeTransition, c.Pipeline.DefaultMode))
	}
	if c.Pipeline.CrossfadeSeconds <= 0 {
		errs = append(errs, fmt.Errorf("crossfade_seconds must be positive"))
	}
	switch c.Overlay.FailurePolicy {
	case OverlayFailFast, OverlayFallbackCopy:
	default:
		errs = append(errs, fmt.Errorf("overlay failure_policy must be %q or %q, got %q", OverlayFailFast, OverlayFallbackCopy, c.Overlay.FailurePolicy))
	}
	for name, d := range map[string]time.Duration{
		"timeouts.download":        c.Timeouts.Download,
		"timeouts.normalize":       c.Timeouts.Normalize,
		"timeouts.combine":         c.Timeouts.Combine,
		"timeouts.probe":           c.Timeouts.Probe,
		"retention.expiry":         c.Retention.Expiry,
		"retention.sweep_interval": c.Retention.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Storage.ProcessingDir == "" || c.Storage.OutputDir == "" {
		errs = append(errs, fmt.Errorf("processing_dir and output_dir are required"))
	}
	if c.Storage.ProcessingDir != "" && c.Storage.ProcessingDir == c.Storage.OutputDir {
		errs = append(errs, fmt.Errorf("processing_dir and output_dir must differ"))
	}
	if c.Server.PublicBaseURL != "" {
		if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("public_base_url %q is not an absolute URL", c.Server.PublicBaseURL))
		}
	}
	return errors.Join(errs...)
}
