package localstorage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reelmerge/internal/core/domain"
	"reelmerge/internal/core/ports"
	rlog "reelmerge/internal/log"
)

// ErrNotFound is returned by Open for unknown, malformed or expired job ids.
var ErrNotFound = errors.New("file not found")

// ArtifactExt is the extension of published artifacts.
const ArtifactExt = ".mp4"

// Ensure LocalStorage implements ports.Storage
var _ ports.Storage = (*LocalStorage)(nil)

// LocalStorage keeps job workspaces under ProcessingDir and published
// artifacts under OutputDir. Artifacts older than Expiry are no longer
// served, even before the retention sweep removes them; zero disables the
// check.
type LocalStorage struct {
	ProcessingDir string
	OutputDir     string
	Expiry        time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewLocalStorage creates both directories if needed.
func NewLocalStorage(processingDir, outputDir string, logger zerolog.Logger) (*LocalStorage, error) {
	for _, dir := range []string{processingDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &LocalStorage{ProcessingDir: processingDir, OutputDir: outputDir, logger: logger, now: time.Now}, nil
}

// Acquire creates the workspace for jobID. It fails if the directory
// already exists so two jobs can never share one.
func (s *LocalStorage) Acquire(ctx context.Context, jobID string) (ports.Workspace, error) {
	if !ValidJobID(jobID) {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	path := s.GetJobPath(jobID)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job directory %s: %w", path, err)
	}
	return &Workspace{path: path, logger: rlog.WithJob(s.logger, jobID)}, nil
}

// Publish relocates src to the job's artifact path. A rename is tried first;
// across filesystems the file is copied durably and src removed.
func (s *LocalStorage) Publish(ctx context.Context, jobID, src string) (string, error) {
	if !ValidJobID(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	dst := s.ArtifactPath(jobID)
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	} else if _, statErr := os.Stat(src); statErr != nil {
		return "", fmt.Errorf("publish %s: %w", src, err)
	}

	if err := copyDurable(src, dst); err != nil {
		return "", fmt.Errorf("publish %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		s.logger.Debug().Err(err).Str(rlog.FieldPath, src).Msg("remove published source")
	}
	return dst, nil
}

// Open returns the published artifact for jobID.
func (s *LocalStorage) Open(jobID string) (*os.File, os.FileInfo, error) {
	if !ValidJobID(jobID) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(s.ArtifactPath(jobID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() || s.expired(f.Name(), info) {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

func (s *LocalStorage) expired(path string, info os.FileInfo) bool {
	if s.Expiry <= 0 {
		return false
	}
	entry := domain.RetentionEntry{Path: path, LastModified: info.ModTime(), ExpiryWindow: s.Expiry}
	return entry.Expired(s.now())
}

// PurgeWorkspaces removes workspaces left behind by a previous process.
// Jobs are not resumable, so anything found at startup is garbage.
func (s *LocalStorage) PurgeWorkspaces() (int, error) {
	entries, err := os.ReadDir(s.ProcessingDir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.ProcessingDir, err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !ValidJobID(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.ProcessingDir, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str(rlog.FieldJobID, e.Name()).Msg("failed to purge stale workspace")
			continue
		}
		removed++
	}
	return removed, nil
}

// GetJobPath returns the workspace path for a job.
func (s *LocalStorage) GetJobPath(jobID string) string {
	return filepath.Join(s.ProcessingDir, jobID)
}

// ArtifactPath returns where the published artifact for jobID lives.
func (s *LocalStorage) ArtifactPath(jobID string) string {
	return filepath.Join(s.OutputDir, jobID+ArtifactExt)
}

// partialPath names the in-progress copy of dst. It is hidden so the
// retention sweep never considers a leftover one an artifact.
func partialPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial")
}

// ValidJobID reports whether id has the shape of a job id (32 lowercase hex
// characters). It keeps ids safe to use as path elements.
func ValidJobID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Workspace is a job-exclusive directory removed by Release.
type Workspace struct {
	path   string
	logger zerolog.Logger
	once   sync.Once
	err    error
}

func (w *Workspace) Path() string { return w.path }

// Release removes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.path)
		if w.err != nil {
			w.logger.Error().Err(w.err).Str(rlog.FieldPath, w.path).Msg("error cleaning up files")
			return
		}
		w.logger.Info().Str(rlog.FieldPath, w.path).Msg("cleaned up files for job")
	})
	return w.err
}
