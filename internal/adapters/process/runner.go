// Package process runs external tools under the uniform operation contract:
// a hard timeout, a process-group kill on expiry, and success defined as a
// zero exit status plus an existing, non-empty output file.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelmerge/internal/core/ports"
	rlog "reelmerge/internal/log"
)

var (
	ErrTimeout       = ports.ErrTimeout
	ErrExit          = ports.ErrExit
	ErrMissingOutput = ports.ErrMissingOutput
)

const (
	maxStderrBytes = 4096
	maxStdoutBytes = 1 << 20
)

// Ensure Runner implements ports.Runner
var _ ports.Runner = (*Runner)(nil)

// Runner executes operations as child processes.
type Runner struct {
	logger    zerolog.Logger
	waitDelay time.Duration
}

// NewRunner creates a Runner. waitDelay bounds how long Run waits for output
// pipes to drain after the process group was killed.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger, waitDelay: 5 * time.Second}
}

// Run executes op and applies the success predicate.
func (r *Runner) Run(ctx context.Context, op ports.Operation) (*ports.Result, error) {
	if op.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, op.Timeout)
		defer cancel()
	}

	// #nosec G204 - binaries come from config, arguments are built by the adapters
	cmd := exec.CommandContext(ctx, op.Binary, op.Args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = r.waitDelay

	stdout := &tailBuffer{max: maxStdoutBytes}
	stderr := &tailBuffer{max: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &ports.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	err := classify(ctx, op, runErr, res)
	evt := r.logger.Debug()
	if err != nil {
		evt = r.logger.Warn().Err(err).Str(rlog.FieldStderr, lastLine(res.Stderr))
	}
	evt.Str(rlog.FieldEvent, "process.finished").
		Str(rlog.FieldStage, op.Name).
		Str(rlog.FieldBinary, op.Binary).
		Int(rlog.FieldExitCode, res.ExitCode).
		Dur(rlog.FieldElapsed, res.Elapsed).
		Msg("external operation finished")
	return res, err
}

func classify(ctx context.Context, op ports.Operation, runErr error, res *ports.Result) error {
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w after %s", op.Name, ErrTimeout, res.Elapsed.Round(time.Millisecond))
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op.Name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Errorf("%s: %w (code %d): %s", op.Name, ErrExit, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return fmt.Errorf("%s: %w", op.Name, runErr)
	}
	if op.Output != "" {
		info, err := os.Stat(op.Output)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			return fmt.Errorf("%s: %w: %s", op.Name, ErrMissingOutput, op.Output)
		}
	}
	return nil
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= b.max {
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + len(p) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string { return string(b.buf) }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
