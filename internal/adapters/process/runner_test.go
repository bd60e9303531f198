package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelmerge/internal/core/ports"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestRun_SuccessWithOutput(t *testing.T) {
	sh := requireShell(t)
	out := filepath.Join(t.TempDir(), "out.bin")

	res, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:    "write",
		Binary:  sh,
		Args:    []string{"-c", `printf data > "$1"; echo done`, "sh", out},
		Timeout: 5 * time.Second,
		Output:  out,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "done\n", res.Stdout)
}

func TestRun_NonZeroExit(t *testing.T) {
	sh := requireShell(t)

	res, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:   "fail",
		Binary: sh,
		Args:   []string{"-c", "echo boom >&2; exit 3"},
	})
	require.ErrorIs(t, err, ErrExit)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_MissingOutput(t *testing.T) {
	sh := requireShell(t)
	out := filepath.Join(t.TempDir(), "never.mp4")

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:   "noop",
		Binary: sh,
		Args:   []string{"-c", "exit 0"},
		Output: out,
	})
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestRun_EmptyOutputCountsAsMissing(t *testing.T) {
	sh := requireShell(t)
	out := filepath.Join(t.TempDir(), "empty.mp4")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:   "noop",
		Binary: sh,
		Args:   []string{"-c", "exit 0"},
		Output: out,
	})
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	sh := requireShell(t)

	start := time.Now()
	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:    "slow",
		Binary:  sh,
		Args:    []string{"-c", "sleep 30 & wait"},
		Timeout: 200 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_BinaryNotFound(t *testing.T) {
	_, err := NewRunner(zerolog.Nop()).Run(context.Background(), ports.Operation{
		Name:   "ghost",
		Binary: "reelmerge-definitely-not-installed",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExit)
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 8}
	_, _ = b.Write([]byte("abcd"))
	_, _ = b.Write([]byte("efgh"))
	_, _ = b.Write([]byte("ij"))
	assert.Equal(t, "cdefghij", b.String())

	_, _ = b.Write([]byte(strings.Repeat("z", 20)))
	assert.Equal(t, "zzzzzzzz", b.String())
}
