// Package retention ages published artifacts out of the output directory.
//
// The sweep is independent of jobs: it looks only at modification times, so
// an artifact being written right now is never old enough to be touched.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"reelmerge/internal/core/domain"
	rlog "reelmerge/internal/log"
	"reelmerge/internal/metrics"
)

// LockFile is created in the swept directory to serialise sweeps between
// processes sharing it.
const LockFile = ".sweep.lock"

// Sweeper deletes files older than the expiry window.
type Sweeper struct {
	dir      string
	expiry   time.Duration
	interval time.Duration
	lock     *flock.Flock
	logger   zerolog.Logger
	now      func() time.Time
}

func New(dir string, expiry, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		dir:      dir,
		expiry:   expiry,
		interval: interval,
		lock:     flock.New(filepath.Join(dir, LockFile)),
		logger:   logger,
		now:      time.Now,
	}
}

// Scan lists the candidate files in the directory. Hidden files, including
// the lock and in-flight atomic writes, are skipped.
func (s *Sweeper) Scan() ([]domain.RetentionEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}
	out := make([]domain.RetentionEntry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		out = append(out, domain.RetentionEntry{
			Path:         filepath.Join(s.dir, e.Name()),
			LastModified: info.ModTime(),
			ExpiryWindow: s.expiry,
		})
	}
	return out, nil
}

// Sweep removes every file whose age at now exceeds the expiry window and
// returns the removed paths. When another process holds the sweep lock the
// round is skipped.
func (s *Sweeper) Sweep(now time.Time) ([]string, error) {
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.logger.Debug().Msg("sweep already running elsewhere, skipping")
		return nil, nil
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	entries, err := s.Scan()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if !e.Expired(now) {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str(rlog.FieldPath, e.Path).Msg("failed to remove expired artifact")
			continue
		}
		removed = append(removed, e.Path)
		metrics.RetentionRemovedTotal.Inc()
	}
	if len(removed) > 0 {
		s.logger.Info().Str(rlog.FieldEvent, "retention.swept").Int("removed", len(removed)).Dur("expiry", s.expiry).Msg("removed expired artifacts")
	}
	return removed, nil
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweepLogged()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepLogged()
		}
	}
}

func (s *Sweeper) sweepLogged() {
	if _, err := s.Sweep(s.now()); err != nil {
		s.logger.Error().Err(err).Msg("retention sweep failed")
	}
}
