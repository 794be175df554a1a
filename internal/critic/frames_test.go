package critic

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeStillFlagsUniformFrames(t *testing.T) {
	tests := []struct {
		name string
		fill color.RGBA
	}{
		{"black", color.RGBA{A: 255}},
		{"white", color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, 320, 180))
			for y := 0; y < 180; y++ {
				for x := 0; x < 320; x++ {
					img.Set(x, y, tt.fill)
				}
			}
			a, err := AnalyzeStill(writePNG(t, img))
			if err != nil {
				t.Fatalf("AnalyzeStill: %v", err)
			}
			if !a.Blank() {
				t.Errorf("uniform %s frame not flagged: %+v", tt.name, a)
			}
		})
	}
}

func TestAnalyzeStillAcceptsTexturedFrames(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			v := uint8(r.Intn(256))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	a, err := AnalyzeStill(writePNG(t, img))
	if err != nil {
		t.Fatalf("AnalyzeStill: %v", err)
	}
	if a.Blank() {
		t.Errorf("textured frame flagged blank: %+v", a)
	}
}

func TestAnalyzeStillMissingFile(t *testing.T) {
	if _, err := AnalyzeStill(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
