package ports

import (
	"context"
	"errors"
	"os"
	"time"

	"reelmerge/internal/core/domain"
)

// Failure classes reported by Runner implementations.
var (
	ErrTimeout       = errors.New("timed out")
	ErrExit          = errors.New("exited with error")
	ErrMissingOutput = errors.New("output missing")
)

// Operation is one invocation of an external tool.
type Operation struct {
	Name    string        // short label for logs and metrics, e.g. "normalize"
	Binary  string        // executable name or path
	Args    []string      // arguments, without the binary
	Timeout time.Duration // hard wall-clock bound; zero means none
	Output  string        // file that must exist and be non-empty on success; optional
}

// Result captures what an external invocation produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner executes external operations. An operation succeeds only when the
// process exits zero within its timeout and its Output file exists.
type Runner interface {
	Run(ctx context.Context, op Operation) (*Result, error)
}

// Downloader retrieves a remote stream into a local file.
type Downloader interface {
	// Fetch downloads locator to destination. Failures are returned, never
	// panicked, and mean "exclude this source".
	Fetch(ctx context.Context, locator, destination string, timeout time.Duration) error
}

// Normalizer re-encodes a clip onto the canonical canvas.
type Normalizer interface {
	Normalize(ctx context.Context, input, output string, width, height int) error
}

// Prober reports media durations. It returns 0 when the duration is unknown.
type Prober interface {
	Duration(ctx context.Context, path string) float64
}

// Merger combines normalized clips into output.
type Merger interface {
	Merge(ctx context.Context, mode domain.MergeMode, workDir string, clips []domain.NormalizedClip, output string) (*domain.MergeResult, error)
}

// Workspace is a job-exclusive scratch directory.
type Workspace interface {
	Path() string
	Release() error
}

// Storage owns the processing and output directories.
type Storage interface {
	// Acquire creates the workspace for jobID.
	Acquire(ctx context.Context, jobID string) (Workspace, error)

	// Publish moves the finished artifact at src out of the workspace and
	// returns its final path.
	Publish(ctx context.Context, jobID, src string) (string, error)

	// Open returns the published artifact for jobID.
	Open(jobID string) (*os.File, os.FileInfo, error)
}

// Scheduler bounds concurrent external invocations.
type Scheduler interface {
	Do(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error
}
