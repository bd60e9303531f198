package ytdlp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelmerge/internal/core/ports"
	rlog "reelmerge/internal/log"
)

// Ensure YtDlpDownloader implements ports.Downloader
var _ ports.Downloader = (*YtDlpDownloader)(nil)

// Options configures the yt-dlp invocation.
type Options struct {
	BinaryPath  string   // defaults to "yt-dlp" on PATH
	Retries     int      // request and fragment retries performed inside yt-dlp
	NoiseParams []string // query keys stripped before download; "utm_*" matches a prefix
}

// YtDlpDownloader fetches remote streams with the yt-dlp binary.
type YtDlpDownloader struct {
	binaryPath string
	retries    int
	noise      []string
	runner     ports.Runner
	logger     zerolog.Logger
}

// NewYtDlpDownloader creates a new downloader.
func NewYtDlpDownloader(runner ports.Runner, opts Options, logger zerolog.Logger) *YtDlpDownloader {
	bin := opts.BinaryPath
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlpDownloader{
		binaryPath: bin,
		retries:    opts.Retries,
		noise:      opts.NoiseParams,
		runner:     runner,
		logger:     logger,
	}
}

// Fetch downloads locator into destination with a single yt-dlp run.
// Retries happen inside yt-dlp at the request and fragment level; Fetch never
// re-invokes it.
func (d *YtDlpDownloader) Fetch(ctx context.Context, locator, destination string, timeout time.Duration) error {
	clean, err := StripNoise(locator, d.noise)
	if err != nil {
		return err
	}
	if clean != locator {
		d.logger.Debug().Str(rlog.FieldLocator, clean).Msg("stripped query noise from locator")
	}

	_, err = d.runner.Run(ctx, ports.Operation{
		Name:    "download",
		Binary:  d.binaryPath,
		Args:    d.args(clean, destination),
		Timeout: timeout,
		Output:  destination,
	})
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	return nil
}

func (d *YtDlpDownloader) args(locator, destination string) []string {
	retries := strconv.Itoa(d.retries)
	return []string{
		// Adaptive best video+audio, best muxed stream as fallback.
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-part",
		"--no-warnings",
		"--no-check-certificate",
		"--retries", retries,
		"--fragment-retries", retries,
		"--retry-sleep", "fragment:exp=1:20",
		"-o", destination,
		locator,
	}
}

// StripNoise removes signing and tracking query parameters from locator so
// repeated requests for the same stream hit the same cache key. Remaining
// parameters are re-encoded in sorted order and the fragment is dropped.
func StripNoise(locator string, noise []string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid locator: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid locator %q: scheme must be http or https", locator)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid locator %q: missing host", locator)
	}
	u.Fragment = ""
	if u.RawQuery == "" {
		return u.String(), nil
	}

	q := u.Query()
	for key := range q {
		if isNoise(key, noise) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isNoise(key string, noise []string) bool {
	key = strings.ToLower(key)
	for _, n := range noise {
		n = strings.ToLower(n)
		if prefix, ok := strings.CutSuffix(n, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
			continue
		}
		if key == n {
			return true
		}
	}
	return false
}
