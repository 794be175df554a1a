package video

import (
	"context"
	"fmt"
	"os/exec"
)

// StillParams shapes a static-image segment.
type StillParams struct {
	Width    int
	Height   int
	FPS      int
	Duration float64 // Exact segment length in seconds
}

// Encoder abstracts the external encoding tool so the engine can be
// exercised without ffmpeg on PATH.
type Encoder interface {
	EncodeStill(ctx context.Context, imagePath, videoPath string, params StillParams) error
	Normalize(ctx context.Context, srcPath, dstPath string, params StillParams) error
}

// FFmpegEncoder shells out to ffmpeg. A non-zero exit code is an encoding
// failure for that segment.
type FFmpegEncoder struct {
	EncoderName string // libx264, h264_nvenc, h264_videotoolbox
	Quality     int
}

// EncodeStill turns a screenshot into a video segment of exactly
// params.Duration, preserving the timeline's duration contract when a
// beat degraded to a still. A slow push-in keeps the segment from
// reading as a stall in the final cut.
func (e *FFmpegEncoder) EncodeStill(ctx context.Context, imagePath, videoPath string, params StillParams) error {
	args := []string{
		"-y",
		"-loop", "1",
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", imagePath,
		"-vf", motionFilter(params),
		"-t", fmt.Sprintf("%f", params.Duration),
		"-r", fmt.Sprintf("%d", params.FPS),
		"-pix_fmt", "yuv420p",
		"-an",
		"-c:v", e.EncoderName,
	}
	args = append(args, e.qualityArgs()...)
	args = append(args, videoPath)

	return runFFmpeg(ctx, args)
}

// Normalize re-encodes a captured segment (WebM from the recording
// backend) to the common codec, resolution and framerate so every concat
// input matches. With capture resolution fixed this is a transcode, not a
// rescale.
func (e *FFmpegEncoder) Normalize(ctx context.Context, srcPath, dstPath string, params StillParams) error {
	args := []string{
		"-y",
		"-i", srcPath,
		"-vf", fitFilter(params.Width, params.Height),
		"-r", fmt.Sprintf("%d", params.FPS),
		"-pix_fmt", "yuv420p",
		"-an",
		"-c:v", e.EncoderName,
	}
	args = append(args, e.qualityArgs()...)
	args = append(args, dstPath)

	return runFFmpeg(ctx, args)
}

// qualityArgs maps the quality knob to encoder-specific flags.
func (e *FFmpegEncoder) qualityArgs() []string {
	switch e.EncoderName {
	case "h264_videotoolbox":
		// VideoToolbox has no CRF equivalent on all versions; use bitrate.
		bitrate := e.Quality * 100
		return []string{"-b:v", fmt.Sprintf("%dk", bitrate)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", e.Quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", e.Quality), "-preset", "medium"}
	}
}

// fitFilter letterboxes arbitrary input into the target frame.
func fitFilter(w, h int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		w, h, w, h,
	)
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg error: %v, output: %s", err, string(out))
	}
	return nil
}
