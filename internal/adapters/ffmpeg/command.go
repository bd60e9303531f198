// Package ffmpeg implements probing, normalization and merging on top of the
// ffmpeg and ffprobe binaries.
package ffmpeg

import "strconv"

// preamble is shared by every ffmpeg invocation.
func preamble() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

// Encoding profile shared by every re-encode so all outputs stay concat-compatible.
const (
	videoCodec   = "libx264"
	videoCRF     = 23
	pixelFormat  = "yuv420p"
	audioCodec   = "aac"
	audioBitrate = "128k"
	audioRate    = "44100"
	audioLayout  = "2"
)

func videoEncodeArgs(preset string) []string {
	return []string{
		"-c:v", videoCodec,
		"-preset", preset,
		"-crf", strconv.Itoa(videoCRF),
		"-pix_fmt", pixelFormat,
	}
}

func audioEncodeArgs() []string {
	return []string{
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-ar", audioRate,
		"-ac", audioLayout,
	}
}

func faststart() []string {
	return []string{"-movflags", "+faststart"}
}
