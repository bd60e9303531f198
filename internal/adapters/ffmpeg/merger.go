package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelmerge/internal/core/domain"
	"reelmerge/internal/core/ports"
	"reelmerge/internal/filtergraph"
	rlog "reelmerge/internal/log"
	"reelmerge/internal/metrics"
)

// Ensure Merger implements ports.Merger
var _ ports.Merger = (*Merger)(nil)

// MergerOptions configures the combining stage.
type MergerOptions struct {
	Binary          string
	Timeout         time.Duration // per ffmpeg invocation
	Fade            float64       // crossfade length in seconds
	FontFile        string
	OverlayFallback bool // keep the plain concat when the overlay pass fails
}

// Merger combines normalized clips. Transition mode crossfades and falls back
// to a stream-copy concat; overlay mode concatenates and then burns in a
// counter and title per clip.
type Merger struct {
	opts   MergerOptions
	runner ports.Runner
	prober ports.Prober
	logger zerolog.Logger
}

func NewMerger(runner ports.Runner, prober ports.Prober, opts MergerOptions, logger zerolog.Logger) *Merger {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	return &Merger{opts: opts, runner: runner, prober: prober, logger: logger}
}

// Merge writes the combined clips to output. workDir receives the
// intermediates, which are removed before Merge returns.
func (m *Merger) Merge(ctx context.Context, mode domain.MergeMode, workDir string, clips []domain.NormalizedClip, output string) (*domain.MergeResult, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: no clips to merge", domain.ErrMerge)
	}

	var (
		strategy string
		err      error
	)
	switch mode {
	case domain.ModeTransition:
		strategy, err = m.mergeTransition(ctx, workDir, clips, output)
	case domain.ModeOverlay:
		strategy, err = m.mergeOverlay(ctx, workDir, clips, output)
	default:
		err = fmt.Errorf("%w: unknown merge mode %q", domain.ErrMerge, mode)
	}
	if err != nil {
		_ = os.Remove(output)
		return nil, err
	}

	metrics.MergeStrategyTotal.WithLabelValues(strategy).Inc()
	m.logger.Info().Str(rlog.FieldStrategy, strategy).Str(rlog.FieldPath, output).Int("clips", len(clips)).Msg("successfully merged videos")
	return &domain.MergeResult{
		OutputPath:    output,
		IncludedCount: len(clips),
		Strategy:      strategy,
	}, nil
}

func (m *Merger) mergeTransition(ctx context.Context, workDir string, clips []domain.NormalizedClip, output string) (string, error) {
	if len(clips) == 1 {
		if err := os.Rename(clips[0].Path, output); err == nil {
			return domain.StrategyPassthrough, nil
		}
	}

	primary := m.crossfade(ctx, clips, output)
	if primary == nil {
		return domain.StrategyTransition, nil
	}
	m.logger.Warn().Err(primary).Str(rlog.FieldEvent, "merge.fallback").Msg("crossfade failed, falling back to concat")
	_ = os.Remove(output)

	if err := m.concat(ctx, workDir, clips, output); err != nil {
		return "", fmt.Errorf("%w: crossfade: %v; concat fallback: %v", domain.ErrMerge, primary, err)
	}
	return domain.StrategyConcat, nil
}

func (m *Merger) crossfade(ctx context.Context, clips []domain.NormalizedClip, output string) error {
	graph, err := filtergraph.Transition(m.probe(ctx, clips), m.opts.Fade)
	if err != nil {
		return err
	}
	if graph == nil {
		return errors.New("crossfade needs at least two clips")
	}

	args := preamble()
	for _, c := range clips {
		args = append(args, "-i", c.Path)
	}
	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "["+filtergraph.VideoOut(len(clips))+"]",
		"-map", "["+filtergraph.AudioOut+"]",
	)
	args = append(args, videoEncodeArgs("medium")...)
	args = append(args, audioEncodeArgs()...)
	args = append(args, faststart()...)
	args = append(args, output)

	_, err = m.runner.Run(ctx, ports.Operation{
		Name:    "crossfade",
		Binary:  m.opts.Binary,
		Args:    args,
		Timeout: m.opts.Timeout,
		Output:  output,
	})
	return err
}

func (m *Merger) mergeOverlay(ctx context.Context, workDir string, clips []domain.NormalizedClip, output string) (string, error) {
	tmp, err := os.CreateTemp(workDir, "temp_concat_*.mp4")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMerge, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := m.concat(ctx, workDir, clips, tmpPath); err != nil {
		return "", fmt.Errorf("%w: concat: %v", domain.ErrMerge, err)
	}

	graph, windows := filtergraph.Overlay(m.probe(ctx, clips), filtergraph.OverlayStyle{FontFile: m.opts.FontFile})
	if graph == nil {
		m.logger.Warn().Msg("no clip durations known, skipping overlays")
		if err := os.Rename(tmpPath, output); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrMerge, err)
		}
		return domain.StrategyConcatNoOverlay, nil
	}
	if len(windows) < len(clips) {
		m.logger.Warn().Int("clips", len(clips)).Int("overlays", len(windows)).Msg("overlays stop at the first clip with unknown duration")
	}

	args := preamble()
	args = append(args, "-i", tmpPath, "-vf", graph.String())
	args = append(args, videoEncodeArgs("medium")...)
	args = append(args, "-c:a", "copy")
	args = append(args, faststart()...)
	args = append(args, output)

	_, err = m.runner.Run(ctx, ports.Operation{
		Name:    "overlay",
		Binary:  m.opts.Binary,
		Args:    args,
		Timeout: m.opts.Timeout,
		Output:  output,
	})
	if err == nil {
		return domain.StrategyOverlay, nil
	}
	if !m.opts.OverlayFallback {
		return "", fmt.Errorf("%w: overlay: %v", domain.ErrMerge, err)
	}

	m.logger.Warn().Err(err).Str(rlog.FieldEvent, "merge.fallback").Msg("overlay pass failed, keeping plain concat")
	_ = os.Remove(output)
	if err := os.Rename(tmpPath, output); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMerge, err)
	}
	return domain.StrategyConcatNoOverlay, nil
}

// concat joins clips without re-encoding through the concat demuxer.
func (m *Merger) concat(ctx context.Context, workDir string, clips []domain.NormalizedClip, output string) error {
	list, err := writeConcatList(workDir, clips)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := preamble()
	args = append(args, "-f", "concat", "-safe", "0", "-i", list, "-c", "copy")
	args = append(args, faststart()...)
	args = append(args, output)

	_, err = m.runner.Run(ctx, ports.Operation{
		Name:    "concat",
		Binary:  m.opts.Binary,
		Args:    args,
		Timeout: m.opts.Timeout,
		Output:  output,
	})
	return err
}

// writeConcatList writes the concat demuxer descriptor. Paths are absolute
// because the demuxer resolves relative entries against the list's directory.
func writeConcatList(workDir string, clips []domain.NormalizedClip) (string, error) {
	var b strings.Builder
	for _, c := range clips {
		p, err := filepath.Abs(c.Path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", c.Path, err)
		}
		b.WriteString("file '" + strings.ReplaceAll(p, "'", `'\''`) + "'\n")
	}

	f, err := os.CreateTemp(workDir, "concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	return f.Name(), nil
}

// probe resolves clip durations, asking the prober only for unknown ones.
func (m *Merger) probe(ctx context.Context, clips []domain.NormalizedClip) []filtergraph.Clip {
	out := make([]filtergraph.Clip, len(clips))
	for i, c := range clips {
		d := c.Duration
		if d <= 0 {
			d = m.prober.Duration(ctx, c.Path)
		}
		out[i] = filtergraph.Clip{Duration: d, Label: c.Source.Title}
	}
	return out
}
