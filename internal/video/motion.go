package video

import "fmt"

// Gentle push-in for still segments: speed in zoom units per frame and a
// hard peak so long beats do not crop past readability.
const (
	stillZoomSpeed = 0.0008
	stillZoomPeak  = 1.15
)

// motionFilter builds the filter chain that keeps a screenshot-fallback
// segment from reading as a freeze frame: supersample, slow center zoom
// over the whole segment, then scale back to the target frame.
//
// The 2x supersample exists because zoompan works on integer pixel
// offsets; zooming a native-resolution input visibly jitters.
func motionFilter(p StillParams) string {
	frames := int(p.Duration * float64(p.FPS))
	if frames < 1 {
		frames = 1
	}

	peak := 1.0 + stillZoomSpeed*float64(frames)
	if peak > stillZoomPeak {
		peak = stillZoomPeak
	}

	supersample := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.Width*2, p.Height*2, p.Width*2, p.Height*2,
	)
	zoom := fmt.Sprintf(
		"zoompan=z='min(1.0+%f*on,%f)':d=%d:s=%dx%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':fps=%d",
		stillZoomSpeed, peak, frames, p.Width, p.Height, p.FPS,
	)

	return fmt.Sprintf("%s,%s,scale=%d:%d", supersample, zoom, p.Width, p.Height)
}
