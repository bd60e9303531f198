package domain

import (
	"fmt"
	"time"
)

// MergeMode selects how normalized clips are combined.
type MergeMode string

const (
	// ModeOverlay concatenates the clips and burns a counter and title over each one.
	ModeOverlay MergeMode = "overlay"
	// ModeTransition chains crossfades between clips, falling back to a plain concat.
	ModeTransition MergeMode = "transition"
)

// ParseMergeMode converts a user supplied mode name.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case ModeOverlay, ModeTransition:
		return MergeMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown merge mode %q", ErrValidation, s)
	}
}

// Stage names a per-clip pipeline step.
type Stage string

const (
	StageDownload  Stage = "download"
	StageNormalize Stage = "normalize"
	StageMerge     Stage = "merge"
)

// VideoSource is one requested clip. Index is its position in the request
// and fixes both overlay numbering and merge order.
type VideoSource struct {
	Title   string `json:"title"`
	Locator string `json:"remote_locator"`
	Index   int    `json:"sequence_index"`
}

// Job represents a single merge request.
type Job struct {
	ID            string        `json:"job_id"`
	WorkspacePath string        `json:"-"`
	Sources       []VideoSource `json:"sources"`
	Mode          MergeMode     `json:"mode"`
	CreatedAt     time.Time     `json:"created_at"`
}

// DownloadedClip is a source fetched into the job workspace.
type DownloadedClip struct {
	Source VideoSource
	Path   string
}

// NormalizedClip is a clip re-encoded to the canonical canvas and codecs.
// Duration is 0 when it could not be probed.
type NormalizedClip struct {
	Source   VideoSource
	Path     string
	Duration float64
}

// Merge strategies recorded on MergeResult.
const (
	StrategyPassthrough     = "passthrough"
	StrategyTransition      = "transition"
	StrategyConcat          = "concat"
	StrategyOverlay         = "overlay"
	StrategyConcatNoOverlay = "concat-no-overlay"
)

// MergeResult is produced once per job by the merger.
type MergeResult struct {
	OutputPath    string `json:"output_path"`
	IncludedCount int    `json:"included_count"`
	ExcludedCount int    `json:"excluded_count"`
	Strategy      string `json:"strategy"`
}

// Exclusion records why a source was left out of the merge.
type Exclusion struct {
	Source VideoSource `json:"source"`
	Stage  Stage       `json:"stage"`
	Reason string      `json:"reason"`
}

// JobResult holds the outcome of a completed job.
type JobResult struct {
	Job         Job
	Merge       MergeResult
	Exclusions  []Exclusion
	CompletedAt time.Time
}

// RetentionEntry describes one artifact considered by the retention sweep.
type RetentionEntry struct {
	Path         string
	LastModified time.Time
	ExpiryWindow time.Duration
}

// Expired reports whether the entry's age at now exceeds its window.
func (e RetentionEntry) Expired(now time.Time) bool {
	return now.Sub(e.LastModified) > e.ExpiryWindow
}
