package critic

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
)

// Near-uniform frames sit well under this; real dashboard screenshots
// measure an order of magnitude higher.
const blankStdDevThreshold = 4.0

// StillAnalysis summarizes the luminance distribution of one frame.
type StillAnalysis struct {
	MeanLuma float64
	StdDev   float64
}

// Blank reports whether the frame is effectively uniform: an all-black or
// all-white capture of a page that never painted.
func (s StillAnalysis) Blank() bool {
	return s.StdDev < blankStdDevThreshold
}

// AnalyzeStill measures a screenshot before it is promoted to a fallback
// segment. A capture that degraded to a still of nothing is worse than a
// dropped beat: it pads the video with dead air.
func AnalyzeStill(path string) (StillAnalysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return StillAnalysis{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return StillAnalysis{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return analyzeImage(img), nil
}

// analyzeImage samples every 4th pixel; luminance statistics are stable
// well below full resolution.
func analyzeImage(img image.Image) StillAnalysis {
	bounds := img.Bounds()

	var sum, sumSq float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 4 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 4 {
			luma := float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			sum += luma
			sumSq += luma * luma
			n++
		}
	}
	if n == 0 {
		return StillAnalysis{}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return StillAnalysis{
		MeanLuma: mean,
		StdDev:   math.Sqrt(variance),
	}
}
