package service

import (
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reelmerge/internal/core/domain"
	"reelmerge/internal/core/ports"
	rlog "reelmerge/internal/log"
	"reelmerge/internal/metrics"
)

// Options holds the orchestrator settings taken from configuration.
type Options struct {
	Width           int
	Height          int
	MaxClips        int
	DownloadTimeout time.Duration
}

// Orchestrator coordinates the download, normalize and merge workflow.
type Orchestrator struct {
	downloader ports.Downloader
	normalizer ports.Normalizer
	merger     ports.Merger
	storage    ports.Storage
	scheduler  ports.Scheduler
	opts       Options
	logger     zerolog.Logger
	newID      func() string
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	downloader ports.Downloader,
	normalizer ports.Normalizer,
	merger ports.Merger,
	storage ports.Storage,
	scheduler ports.Scheduler,
	opts Options,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		downloader: downloader,
		normalizer: normalizer,
		merger:     merger,
		storage:    storage,
		scheduler:  scheduler,
		opts:       opts,
		logger:     logger,
		newID:      newJobID,
	}
}

// newJobID returns a uuid without separators so it is safe as a file name.
func newJobID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// RunJob merges sources into a single artifact. Per-clip failures exclude
// that clip and are reported in the result; only an invalid batch, a batch
// where every clip failed, or a failed merge fail the job.
func (o *Orchestrator) RunJob(ctx context.Context, mode domain.MergeMode, sources []domain.VideoSource) (result *domain.JobResult, err error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no videos provided", domain.ErrValidation)
	}
	if o.opts.MaxClips > 0 && len(sources) > o.opts.MaxClips {
		return nil, fmt.Errorf("%w: %d videos exceeds the limit of %d", domain.ErrValidation, len(sources), o.opts.MaxClips)
	}
	if _, perr := domain.ParseMergeMode(string(mode)); perr != nil {
		return nil, perr
	}

	job := domain.Job{
		ID:        o.newID(),
		Sources:   make([]domain.VideoSource, len(sources)),
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
	for i, src := range sources {
		src.Index = i
		job.Sources[i] = src
	}
	logger := rlog.WithJob(o.logger, job.ID).With().Str(rlog.FieldMode, string(mode)).Logger()
	logger.Info().Str(rlog.FieldEvent, "job.started").Int("clips", len(sources)).Msg("starting job")

	defer func() {
		metrics.JobsTotal.WithLabelValues(string(mode), metrics.Outcome(err)).Inc()
	}()

	ws, err := o.storage.Acquire(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to init job: %w", err)
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			logger.Warn().Err(rerr).Msg("failed to release workspace")
		}
	}()
	job.WorkspacePath = ws.Path()

	clips, exclusions := o.prepareClips(ctx, job, logger)
	result = &domain.JobResult{Job: job, Exclusions: exclusions}
	if len(clips) == 0 {
		logger.Error().Str(rlog.FieldEvent, "job.failed").Msg("no clip survived download and normalization")
		return result, domain.ErrEmptyBatch
	}

	merged := filepath.Join(ws.Path(), "merged.mp4")
	var mr *domain.MergeResult
	err = o.scheduler.Do(ctx, domain.StageMerge, func(ctx context.Context) error {
		var merr error
		mr, merr = o.merger.Merge(ctx, mode, ws.Path(), clips, merged)
		return merr
	})
	if err != nil {
		logger.Error().Err(err).Str(rlog.FieldEvent, "job.failed").Msg("merge failed")
		if !errors.Is(err, domain.ErrMerge) {
			err = fmt.Errorf("%w: %w", domain.ErrMerge, err)
		}
		return result, err
	}

	published, err := o.storage.Publish(ctx, job.ID, mr.OutputPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to publish artifact")
		return result, fmt.Errorf("failed to publish artifact: %w", err)
	}

	mr.OutputPath = published
	mr.IncludedCount = len(clips)
	mr.ExcludedCount = len(exclusions)
	result.Merge = *mr
	result.CompletedAt = time.Now().UTC()

	logger.Info().
		Str(rlog.FieldEvent, "job.completed").
		Str(rlog.FieldStrategy, mr.Strategy).
		Int("included", mr.IncludedCount).
		Int("excluded", mr.ExcludedCount).
		Str(rlog.FieldPath, published).
		Msg("job completed")
	return result, nil
}

// prepareClips downloads and normalizes every source concurrently, bounded by
// the scheduler. Clip goroutines never return errors, so one failing clip
// never cancels the others. Survivors are returned in request order.
func (o *Orchestrator) prepareClips(ctx context.Context, job domain.Job, logger zerolog.Logger) ([]domain.NormalizedClip, []domain.Exclusion) {
	slots := make([]*domain.NormalizedClip, len(job.Sources))
	var (
		mu         sync.Mutex
		exclusions []domain.Exclusion
	)

	var g errgroup.Group
	for i, src := range job.Sources {
		g.Go(func() error {
			clip, serr := o.prepareClip(ctx, job.WorkspacePath, src)
			clipLog := logger.With().Int(rlog.FieldClipIndex, src.Index).Str(rlog.FieldTitle, src.Title).Logger()
			if serr != nil {
				clipLog.Warn().Err(serr.Err).Str(rlog.FieldStage, string(serr.Stage)).Msg("excluding clip")
				metrics.ClipsTotal.WithLabelValues(string(serr.Stage), metrics.ResultFail).Inc()
				mu.Lock()
				exclusions = append(exclusions, domain.Exclusion{Source: src, Stage: serr.Stage, Reason: exclusionReason(serr)})
				mu.Unlock()
				return nil
			}
			clipLog.Debug().Str(rlog.FieldPath, clip.Path).Msg("clip ready")
			metrics.ClipsTotal.WithLabelValues(string(domain.StageNormalize), metrics.ResultOK).Inc()
			slots[i] = clip
			return nil
		})
	}
	_ = g.Wait()

	clips := make([]domain.NormalizedClip, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			clips = append(clips, *c)
		}
	}
	slices.SortFunc(exclusions, func(a, b domain.Exclusion) int {
		return cmp.Compare(a.Source.Index, b.Source.Index)
	})
	return clips, exclusions
}

// prepareClip runs one source through download and normalization. The
// downloaded file is removed once the normalized copy exists.
func (o *Orchestrator) prepareClip(ctx context.Context, dir string, src domain.VideoSource) (*domain.NormalizedClip, *domain.SourceError) {
	downloaded := filepath.Join(dir, fmt.Sprintf("video_%d.mp4", src.Index))
	normalized := filepath.Join(dir, fmt.Sprintf("normalized_%d.mp4", src.Index))

	err := o.scheduler.Do(ctx, domain.StageDownload, func(ctx context.Context) error {
		return o.downloader.Fetch(ctx, src.Locator, downloaded, o.opts.DownloadTimeout)
	})
	if err != nil {
		return nil, &domain.SourceError{Source: src, Stage: domain.StageDownload, Err: err}
	}
	metrics.ClipsTotal.WithLabelValues(string(domain.StageDownload), metrics.ResultOK).Inc()

	err = o.scheduler.Do(ctx, domain.StageNormalize, func(ctx context.Context) error {
		return o.normalizer.Normalize(ctx, downloaded, normalized, o.opts.Width, o.opts.Height)
	})
	_ = os.Remove(downloaded)
	if err != nil {
		return nil, &domain.SourceError{Source: src, Stage: domain.StageNormalize, Err: err}
	}
	return &domain.NormalizedClip{Source: src, Path: normalized}, nil
}

// exclusionReason summarises a clip failure for clients. The full error,
// including any tool stderr, is only logged.
func exclusionReason(e *domain.SourceError) string {
	var what string
	switch {
	case errors.Is(e.Err, ports.ErrTimeout):
		what = "timed out"
	case errors.Is(e.Err, ports.ErrMissingOutput):
		what = "produced no output"
	case errors.Is(e.Err, ports.ErrExit):
		what = "exited with an error"
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		what = "was cancelled"
	default:
		what = "failed"
	}
	return string(e.Stage) + " " + what
}
