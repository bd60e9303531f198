//go:build !windows

package localstorage

import (
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// copyDurable copies src to dst with fsync and an atomic rename so readers
// never see a partially written artifact.
func copyDurable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending artifact: %w", err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace artifact: %w", err)
	}
	return nil
}
