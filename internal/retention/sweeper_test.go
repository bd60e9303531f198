package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeAged(t *testing.T, dir, name string, age time.Duration, now time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	young := writeAged(t, dir, "young.mp4", time.Hour, now)
	old := writeAged(t, dir, "old.mp4", 49*time.Hour, now)

	s := New(dir, 48*time.Hour, time.Hour, zerolog.Nop())
	removed, err := s.Sweep(now)
	require.NoError(t, err)

	assert.Equal(t, []string{old}, removed)
	assert.FileExists(t, young)
	assert.NoFileExists(t, old)
}

func TestSweep_BoundaryIsNotExpired(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)
	edge := writeAged(t, dir, "edge.mp4", 48*time.Hour, now)

	removed, err := New(dir, 48*time.Hour, time.Hour, zerolog.Nop()).Sweep(now)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.FileExists(t, edge)
}

func TestSweep_SkipsHiddenAndDirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	hidden := writeAged(t, dir, ".merged.tmp", 100*time.Hour, now)
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.Chtimes(sub, now.Add(-100*time.Hour), now.Add(-100*time.Hour)))

	removed, err := New(dir, time.Hour, time.Hour, zerolog.Nop()).Sweep(now)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.FileExists(t, hidden)
	assert.DirExists(t, sub)
}

func TestRun_SweepsAtStartupAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	now := time.Now()
	old := writeAged(t, dir, "old.mp4", 72*time.Hour, now)

	s := New(dir, 48*time.Hour, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(old)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
