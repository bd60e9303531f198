package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"reelmerge/internal/core/ports"
	"reelmerge/internal/filtergraph"
)

// Ensure Normalizer implements ports.Normalizer
var _ ports.Normalizer = (*Normalizer)(nil)

// Normalizer re-encodes clips onto a fixed canvas with a fixed codec profile,
// which is what makes stream-copy concatenation of the results safe.
type Normalizer struct {
	binary    string
	frameRate int
	timeout   time.Duration
	runner    ports.Runner
}

func NewNormalizer(runner ports.Runner, binary string, frameRate int, timeout time.Duration) *Normalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Normalizer{binary: binary, frameRate: frameRate, timeout: timeout, runner: runner}
}

// Normalize scales input to fit width x height, pads the rest black and
// re-encodes to H.264/AAC.
func (n *Normalizer) Normalize(ctx context.Context, input, output string, width, height int) error {
	_, err := n.runner.Run(ctx, ports.Operation{
		Name:    "normalize",
		Binary:  n.binary,
		Args:    n.args(input, output, width, height),
		Timeout: n.timeout,
		Output:  output,
	})
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	return nil
}

func (n *Normalizer) args(input, output string, width, height int) []string {
	args := preamble()
	args = append(args, "-i", input, "-vf", filtergraph.Canvas(width, height, n.frameRate).String())
	args = append(args, videoEncodeArgs("fast")...)
	args = append(args, audioEncodeArgs()...)
	args = append(args, faststart()...)
	return append(args, output)
}
