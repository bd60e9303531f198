package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	rlog "reelmerge/internal/log"

	"github.com/rs/zerolog"
)

// EnvPrefix is prepended to every recognised environment variable.
const EnvPrefix = "REELMERGE_"

func applyEnv(cfg *Config) {
	l := rlog.WithComponent("config")

	cfg.Server.ListenAddr = parseString(l, "LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.PublicBaseURL = parseString(l, "PUBLIC_BASE_URL", cfg.Server.PublicBaseURL)
	cfg.Server.RateLimit = parseInt(l, "RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateWindow = parseDuration(l, "RATE_WINDOW", cfg.Server.RateWindow)
	cfg.Server.ShutdownTimeout = parseDuration(l, "SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.TrustProxyHeaders = parseBool(l, "TRUST_PROXY_HEADERS", cfg.Server.TrustProxyHeaders)

	cfg.Storage.ProcessingDir = parseString(l, "PROCESSING_DIR", cfg.Storage.ProcessingDir)
	cfg.Storage.OutputDir = parseString(l, "OUTPUT_DIR", cfg.Storage.OutputDir)

	cfg.Canvas.Width = parseInt(l, "CANVAS_WIDTH", cfg.Canvas.Width)
	cfg.Canvas.Height = parseInt(l, "CANVAS_HEIGHT", cfg.Canvas.Height)
	cfg.Canvas.FrameRate = parseInt(l, "FRAME_RATE", cfg.Canvas.FrameRate)

	cfg.Pipeline.Workers = parseInt(l, "WORKERS", cfg.Pipeline.Workers)
	cfg.Pipeline.MaxClips = parseInt(l, "MAX_CLIPS", cfg.Pipeline.MaxClips)
	cfg.Pipeline.DefaultMode = parseString(l, "DEFAULT_MODE", cfg.Pipeline.DefaultMode)
	cfg.Pipeline.CrossfadeSeconds = parseFloat(l, "CROSSFADE_SECONDS", cfg.Pipeline.CrossfadeSeconds)

	cfg.Timeouts.Download = parseDuration(l, "DOWNLOAD_TIMEOUT", cfg.Timeouts.Download)
	cfg.Timeouts.Normalize = parseDuration(l, "NORMALIZE_TIMEOUT", cfg.Timeouts.Normalize)
	cfg.Timeouts.Combine = parseDuration(l, "COMBINE_TIMEOUT", cfg.Timeouts.Combine)
	cfg.Timeouts.Probe = parseDuration(l, "PROBE_TIMEOUT", cfg.Timeouts.Probe)

	cfg.Overlay.FailurePolicy = parseString(l, "OVERLAY_FAILURE_POLICY", cfg.Overlay.FailurePolicy)
	cfg.Overlay.FontFile = parseString(l, "FONT_FILE", cfg.Overlay.FontFile)

	cfg.Download.Retries = parseInt(l, "DOWNLOAD_RETRIES", cfg.Download.Retries)
	cfg.Download.NoiseParams = parseList(l, "NOISE_PARAMS", cfg.Download.NoiseParams)

	cfg.Binaries.YtDlp = parseString(l, "YTDLP_BIN", cfg.Binaries.YtDlp)
	cfg.Binaries.FFmpeg = parseString(l, "FFMPEG_BIN", cfg.Binaries.FFmpeg)
	cfg.Binaries.FFprobe = parseString(l, "FFPROBE_BIN", cfg.Binaries.FFprobe)

	cfg.Retention.Expiry = parseDuration(l, "RETENTION", cfg.Retention.Expiry)
	cfg.Retention.SweepInterval = parseDuration(l, "SWEEP_INTERVAL", cfg.Retention.SweepInterval)

	cfg.Log.Level = parseString(l, "LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = parseBool(l, "LOG_PRETTY", cfg.Log.Pretty)
}

// lookup returns the trimmed value of EnvPrefix+key; empty values count as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseString(l zerolog.Logger, key, def string) string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	l.Debug().Str("key", EnvPrefix+key).Str("value", v).Str("source", "environment").Msg("using environment variable")
	return v
}

func parseInt(l zerolog.Logger, key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		l.Warn().Str("key", EnvPrefix+key).Str("value", v).Int("default", def).Msg("invalid integer, using default")
		return def
	}
	l.Debug().Str("key", EnvPrefix+key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

func parseFloat(l zerolog.Logger, key string, def float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.Warn().Str("key", EnvPrefix+key).Str("value", v).Float64("default", def).Msg("invalid float, using default")
		return def
	}
	return f
}

func parseBool(l zerolog.Logger, key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.Warn().Str("key", EnvPrefix+key).Str("value", v).Bool("default", def).Msg("invalid bool, using default")
		return def
	}
	return b
}

func parseDuration(l zerolog.Logger, key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.Warn().Str("key", EnvPrefix+key).Str("value", v).Dur("default", def).Msg("invalid duration, using default")
		return def
	}
	l.Debug().Str("key", EnvPrefix+key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// parseList reads a comma separated list.
func parseList(l zerolog.Logger, key string, def []string) []string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	l.Debug().Str("key", EnvPrefix+key).Strs("value", out).Str("source", "environment").Msg("using environment variable")
	return out
}
