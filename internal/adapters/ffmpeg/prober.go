package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelmerge/internal/core/ports"
	rlog "reelmerge/internal/log"
)

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)

// Prober reads container durations with ffprobe.
type Prober struct {
	binary  string
	timeout time.Duration
	runner  ports.Runner
	logger  zerolog.Logger
}

func NewProber(runner ports.Runner, binary string, timeout time.Duration, logger zerolog.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, timeout: timeout, runner: runner, logger: logger}
}

// Duration returns the container duration of path in seconds, or 0 when it
// cannot be determined. Callers must treat 0 as unknown.
func (p *Prober) Duration(ctx context.Context, path string) float64 {
	res, err := p.runner.Run(ctx, ports.Operation{
		Name:    "probe",
		Binary:  p.binary,
		Args:    []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path},
		Timeout: p.timeout,
	})
	if err != nil {
		p.logger.Error().Err(err).Str(rlog.FieldPath, path).Msg("error getting duration")
		return 0
	}
	d, err := ParseDuration(res.Stdout)
	if err != nil {
		p.logger.Error().Err(err).Str(rlog.FieldPath, path).Msg("error getting duration")
		return 0
	}
	return d
}

// ParseDuration parses ffprobe's bare duration output.
func ParseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("parse duration %q: out of range", s)
	}
	return d, nil
}
