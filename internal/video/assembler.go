package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Segment is one beat's contribution to the final timeline: a normalized
// video-only clip, an optional narration track, and any overlay cards.
// Segments are assembled strictly in slice order; the timeline list is the
// single source of truth for ordering.
type Segment struct {
	BeatID    string
	Path      string  // Normalized video segment, no audio track
	Duration  float64 // Seconds
	AudioPath string  // Narration file; empty means silence
	Overlays  []OverlayClip
}

// OverlayClip places one rendered card over the assembled timeline.
// Start/End are seconds relative to the segment start; BuildArgs shifts
// them onto final-timeline time.
type OverlayClip struct {
	ImagePath string
	X, Y      int
	Width     int
	Height    int
	Start     float64
	End       float64 // Zero means "until the segment ends"
	Animation string  // fade_in, fade_out, slide_in, slide_out, scale_in, scale_out
	AnimSecs  float64
}

// slideDistance is how far a sliding card travels during its entrance.
const slideDistance = 80

// Assembler merges per-beat segments, narration and overlays into the
// final encode with a short crossfade at segment boundaries.
type Assembler struct {
	Width        int
	Height       int
	FPS          int
	EncoderName  string
	Quality      int
	FadeDuration float64
}

// Assemble runs the merge. A non-zero ffmpeg exit is a whole-run assembly
// failure: a broken final encode has no safe partial substitute.
func (a *Assembler) Assemble(ctx context.Context, segments []Segment, outPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to assemble")
	}

	args := a.BuildArgs(segments, outPath)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg assembly error: %v, output: %s", err, string(out))
	}
	return nil
}

// SegmentStarts returns each segment's start time on the final timeline,
// accounting for the crossfade overlap at every boundary.
func SegmentStarts(segments []Segment, fade float64) []float64 {
	starts := make([]float64, len(segments))
	for i := 1; i < len(segments); i++ {
		starts[i] = starts[i-1] + segments[i-1].Duration - fade
		if starts[i] < 0 {
			starts[i] = 0
		}
	}
	return starts
}

// TotalDuration is the expected length of the assembled output.
func TotalDuration(segments []Segment, fade float64) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.Duration
	}
	if n := len(segments); n > 1 {
		total -= float64(n-1) * fade
	}
	return total
}

// BuildArgs constructs the complete ffmpeg invocation. Split out from
// Assemble so the filter graph is testable without running ffmpeg.
//
// Input layout: segment videos first, then narration audio files, then
// looped overlay stills. The filter graph crossfades video (xfade),
// overlays the cards with their per-clip enable windows, and crossfades
// audio (acrossfade) with silence substituted for missing narration.
func (a *Assembler) BuildArgs(segments []Segment, outPath string) []string {
	n := len(segments)
	fade := a.FadeDuration
	if n == 1 {
		fade = 0
	}
	starts := SegmentStarts(segments, fade)
	totalDur := TotalDuration(segments, fade)

	args := []string{"-y"}
	inputs := 0

	for _, s := range segments {
		args = append(args, "-i", s.Path)
		inputs++
	}

	audioIdx := make([]int, n)
	for i, s := range segments {
		audioIdx[i] = -1
		if s.AudioPath != "" {
			args = append(args, "-i", s.AudioPath)
			audioIdx[i] = inputs
			inputs++
		}
	}

	type placedOverlay struct {
		inputIdx int
		clip     OverlayClip
		start    float64
		end      float64
	}
	var overlays []placedOverlay
	for i, s := range segments {
		for _, c := range s.Overlays {
			end := c.End
			if end <= 0 {
				end = s.Duration
			}
			args = append(args,
				"-loop", "1",
				"-t", fmt.Sprintf("%f", totalDur),
				"-i", c.ImagePath,
			)
			overlays = append(overlays, placedOverlay{
				inputIdx: inputs,
				clip:     c,
				start:    starts[i] + c.Start,
				end:      starts[i] + end,
			})
			inputs++
		}
	}

	var graph strings.Builder

	// 1. Video: crossfade the segment chain.
	lastOut := "[0:v]"
	if n > 1 {
		offset := 0.0
		for i := 1; i < n; i++ {
			offset += segments[i-1].Duration - fade
			out := fmt.Sprintf("[vx%d]", i)
			fmt.Fprintf(&graph, "%s[%d:v]xfade=transition=fade:duration=%f:offset=%f%s;",
				lastOut, i, fade, offset, out)
			lastOut = out
		}
	}

	// 2. Overlays: scale each card down from its 2x render, animate its
	// alpha, and composite inside the clip's enable window.
	for k, ov := range overlays {
		prep := fmt.Sprintf("[%d:v]scale=%d:%d,format=rgba", ov.inputIdx, ov.clip.Width, ov.clip.Height)
		prep += "," + alphaFade(ov.clip.Animation, ov.start, ov.end, ov.clip.AnimSecs)
		label := fmt.Sprintf("[card%d]", k)
		fmt.Fprintf(&graph, "%s%s;", prep, label)

		out := fmt.Sprintf("[vo%d]", k)
		fmt.Fprintf(&graph, "%s%soverlay=x=%s:y=%d:enable='between(t,%f,%f)'%s;",
			lastOut, label,
			overlayX(ov.clip, ov.start),
			ov.clip.Y, ov.start, ov.end, out)
		lastOut = out
	}

	// A single overlay-free segment never went through a filter, but the
	// graph always exists for audio and ffmpeg rejects a bracketed -map
	// label the graph does not output. Route it through null to give it
	// a graph output label.
	if lastOut == "[0:v]" {
		fmt.Fprintf(&graph, "[0:v]null[vout];")
		lastOut = "[vout]"
	}

	// 3. Audio: fixed-length track per segment, silence when narration is
	// missing, crossfaded at the same boundaries as the video.
	for i, s := range segments {
		if audioIdx[i] >= 0 {
			fmt.Fprintf(&graph, "[%d:a]atrim=0:%f,apad=whole_dur=%f[aseg%d];",
				audioIdx[i], s.Duration, s.Duration, i)
		} else {
			fmt.Fprintf(&graph, "anullsrc=channel_layout=stereo:sample_rate=44100:duration=%f[aseg%d];",
				s.Duration, i)
		}
	}
	audioOut := "[aseg0]"
	for i := 1; i < n; i++ {
		out := fmt.Sprintf("[ax%d]", i)
		fmt.Fprintf(&graph, "%s[aseg%d]acrossfade=d=%f%s;", audioOut, i, fade, out)
		audioOut = out
	}

	filterGraph := strings.TrimSuffix(graph.String(), ";")
	if filterGraph != "" {
		args = append(args, "-filter_complex", filterGraph)
	}

	args = append(args, "-map", lastOut, "-map", audioOut)
	args = append(args, "-c:v", a.EncoderName, "-pix_fmt", "yuv420p", "-r", fmt.Sprintf("%d", a.FPS))
	args = append(args, a.qualityArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", "192k")
	args = append(args, "-movflags", "+faststart")
	args = append(args, outPath)

	return args
}

func (a *Assembler) qualityArgs() []string {
	enc := FFmpegEncoder{EncoderName: a.EncoderName, Quality: a.Quality}
	return enc.qualityArgs()
}

// alphaFade builds the alpha animation for one card. Scale animations are
// rendered as fades: per-frame rescaling inside overlay chains costs more
// than the visual difference is worth at 400ms.
func alphaFade(animation string, start, end, animSecs float64) string {
	if animSecs <= 0 {
		animSecs = 0.4
	}
	switch animation {
	case "fade_out", "slide_out", "scale_out":
		st := end - animSecs
		if st < start {
			st = start
		}
		return fmt.Sprintf("fade=t=out:st=%f:d=%f:alpha=1", st, animSecs)
	default:
		return fmt.Sprintf("fade=t=in:st=%f:d=%f:alpha=1", start, animSecs)
	}
}

// overlayX yields the x position expression. Sliding cards travel in from
// the right over the animation window; everything else is a constant.
func overlayX(c OverlayClip, start float64) string {
	if c.Animation == "slide_in" || c.Animation == "slide_out" {
		d := c.AnimSecs
		if d <= 0 {
			d = 0.4
		}
		return fmt.Sprintf("'if(lt(t,%f),%d+%d*(1-(t-%f)/%f),%d)'",
			start+d, c.X, slideDistance, start, d, c.X)
	}
	return fmt.Sprintf("%d", c.X)
}
