package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelmerge/internal/adapters/localstorage"
	"reelmerge/internal/core/domain"
	"reelmerge/internal/core/ports"
	"reelmerge/internal/scheduler"
)

type fakeDownloader struct {
	fail  map[string]bool
	errs  map[string]error
	delay map[string]time.Duration
}

func (f *fakeDownloader) Fetch(ctx context.Context, locator, destination string, _ time.Duration) error {
	if d := f.delay[locator]; d > 0 {
		time.Sleep(d)
	}
	if err := f.errs[locator]; err != nil {
		return err
	}
	if f.fail[locator] {
		return errors.New("download failed: 403")
	}
	return os.WriteFile(destination, []byte(locator), 0o644)
}

type fakeNormalizer struct {
	fail map[string]bool
}

func (f *fakeNormalizer) Normalize(ctx context.Context, input, output string, width, height int) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if f.fail[string(data)] {
		return errors.New("normalize failed")
	}
	return os.WriteFile(output, append([]byte("norm:"), data...), 0o644)
}

type fakeMerger struct {
	mu        sync.Mutex
	err       error
	gotMode   domain.MergeMode
	gotDir    string
	order     []int
	downloads []string // video_*.mp4 files present when Merge was called
}

func (f *fakeMerger) Merge(ctx context.Context, mode domain.MergeMode, workDir string, clips []domain.NormalizedClip, output string) (*domain.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotMode = mode
	f.gotDir = workDir
	leftover, err := filepath.Glob(filepath.Join(workDir, "video_*.mp4"))
	if err != nil {
		return nil, err
	}
	f.downloads = leftover
	if f.err != nil {
		return nil, f.err
	}
	var parts []string
	for _, c := range clips {
		f.order = append(f.order, c.Source.Index)
		data, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(data))
	}
	if err := os.WriteFile(output, []byte(strings.Join(parts, "|")), 0o644); err != nil {
		return nil, err
	}
	return &domain.MergeResult{OutputPath: output, IncludedCount: len(clips), Strategy: domain.StrategyConcat}, nil
}

type harness struct {
	orch    *Orchestrator
	storage *localstorage.LocalStorage
	dl      *fakeDownloader
	norm    *fakeNormalizer
	merger  *fakeMerger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	storage, err := localstorage.NewLocalStorage(filepath.Join(root, "processing"), filepath.Join(root, "output"), zerolog.Nop())
	require.NoError(t, err)

	h := &harness{
		storage: storage,
		dl:      &fakeDownloader{fail: map[string]bool{}, errs: map[string]error{}, delay: map[string]time.Duration{}},
		norm:    &fakeNormalizer{fail: map[string]bool{}},
		merger:  &fakeMerger{},
	}
	h.orch = NewOrchestrator(h.dl, h.norm, h.merger, storage, scheduler.NewPool(3), Options{
		Width:           1080,
		Height:          1920,
		MaxClips:        15,
		DownloadTimeout: time.Minute,
	}, zerolog.Nop())
	return h
}

func sources(locators ...string) []domain.VideoSource {
	out := make([]domain.VideoSource, len(locators))
	for i, l := range locators {
		out[i] = domain.VideoSource{Title: "clip " + l, Locator: l}
	}
	return out
}

func workspaceEntries(t *testing.T, s *localstorage.LocalStorage) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.ProcessingDir)
	require.NoError(t, err)
	return entries
}

func TestRunJob_AllClipsSucceed(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, sources("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Merge.IncludedCount)
	assert.Equal(t, 0, res.Merge.ExcludedCount)
	assert.Empty(t, res.Exclusions)
	assert.Equal(t, domain.ModeOverlay, h.merger.gotMode)
	assert.Equal(t, h.storage.ArtifactPath(res.Job.ID), res.Merge.OutputPath)
	assert.True(t, localstorage.ValidJobID(res.Job.ID))

	data, err := os.ReadFile(res.Merge.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "norm:a|norm:b|norm:c", string(data))

	assert.Empty(t, workspaceEntries(t, h.storage), "workspace should be torn down")
	assert.NoDirExists(t, h.merger.gotDir)
}

func TestRunJob_PartialFailureCountsAddUp(t *testing.T) {
	h := newHarness(t)
	h.dl.fail["b"] = true
	h.norm.fail["d"] = true

	res, err := h.orch.RunJob(context.Background(), domain.ModeTransition, sources("a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Merge.IncludedCount)
	assert.Equal(t, 2, res.Merge.ExcludedCount)
	assert.Equal(t, 4, res.Merge.IncludedCount+res.Merge.ExcludedCount)
	require.Len(t, res.Exclusions, 2)
	assert.Equal(t, 1, res.Exclusions[0].Source.Index)
	assert.Equal(t, domain.StageDownload, res.Exclusions[0].Stage)
	assert.Equal(t, 3, res.Exclusions[1].Source.Index)
	assert.Equal(t, domain.StageNormalize, res.Exclusions[1].Stage)
	assert.Equal(t, []int{0, 2}, h.merger.order)
}

func TestRunJob_DownloadsRemovedAfterNormalize(t *testing.T) {
	h := newHarness(t)
	h.norm.fail["b"] = true

	res, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, sources("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merge.IncludedCount)
	require.NotNil(t, h.merger.order, "merge ran")
	assert.Empty(t, h.merger.downloads, "no downloaded clip may outlive its normalize attempt")
}

func TestRunJob_ExclusionReasonsHideToolOutput(t *testing.T) {
	h := newHarness(t)
	h.dl.errs["b"] = fmt.Errorf("yt-dlp failed: download: %w after 5m0s", ports.ErrTimeout)
	h.dl.errs["c"] = fmt.Errorf("yt-dlp failed: download: %w (code 1): ERROR: /tmp/video_processing/x/video_2.mp4: HTTP Error 403", ports.ErrExit)
	h.norm.fail["d"] = true

	res, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, sources("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, res.Exclusions, 3)

	assert.Equal(t, "download timed out", res.Exclusions[0].Reason)
	assert.Equal(t, "download exited with an error", res.Exclusions[1].Reason)
	assert.Equal(t, "normalize failed", res.Exclusions[2].Reason)
	for _, ex := range res.Exclusions {
		assert.NotContains(t, ex.Reason, "/tmp")
	}
}

func TestRunJob_PreservesRequestOrder(t *testing.T) {
	h := newHarness(t)
	// The first clip finishes last.
	h.dl.delay["a"] = 60 * time.Millisecond
	h.dl.delay["b"] = 30 * time.Millisecond

	res, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, sources("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, h.merger.order)

	data, err := os.ReadFile(res.Merge.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "norm:a|norm:b|norm:c", string(data))
}

func TestRunJob_ZeroSuccessesFailsWithoutArtifact(t *testing.T) {
	h := newHarness(t)
	h.dl.fail["a"] = true
	h.dl.fail["b"] = true

	res, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, sources("a", "b"))
	require.ErrorIs(t, err, domain.ErrEmptyBatch)
	require.NotNil(t, res)
	assert.Len(t, res.Exclusions, 2)
	assert.Nil(t, h.merger.order, "merge must not run")

	out, err := os.ReadDir(h.storage.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, workspaceEntries(t, h.storage))
}

func TestRunJob_MergeFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.merger.err = errors.New("ffmpeg exploded")

	_, err := h.orch.RunJob(context.Background(), domain.ModeTransition, sources("a"))
	require.ErrorIs(t, err, domain.ErrMerge)

	out, err := os.ReadDir(h.storage.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, workspaceEntries(t, h.storage))
}

func TestRunJob_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.RunJob(context.Background(), domain.ModeOverlay, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	many := make([]string, 16)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	_, err = h.orch.RunJob(context.Background(), domain.ModeOverlay, sources(many...))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.orch.RunJob(context.Background(), domain.MergeMode("sideways"), sources("a"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, workspaceEntries(t, h.storage), "no workspace for rejected batches")
}
