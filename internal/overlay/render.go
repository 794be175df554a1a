package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer rasterizes descriptors into PNG cards that the assembler feeds
// to FFmpeg's overlay filter. Cards are drawn at 2x and scaled down by the
// filter graph for cleaner text edges.
type Renderer struct {
	Scale int
}

func NewRenderer() *Renderer {
	return &Renderer{Scale: 2}
}

var (
	cardText   = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	cardBorder = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x59}
	qrQuiet    = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// RenderToFile draws the descriptor's card and writes it as a PNG.
func (r *Renderer) RenderToFile(d *Descriptor, path string) error {
	img, err := r.Render(d)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}

// Render draws the card image for one descriptor.
func (r *Renderer) Render(d *Descriptor) (*image.RGBA, error) {
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}

	w, h := d.Width*scale, d.Height*scale
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bg, ok := Palette[d.Role]
	if !ok {
		bg = Palette[RoleNeutral]
	}
	// Cards are slightly translucent so the dashboard stays readable
	// underneath.
	bg.A = 0xE6
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	drawBorder(img, scale)

	// QR badges: "qr:<url>" content renders a scannable code instead of text.
	if url, ok := strings.CutPrefix(d.Text, "qr:"); ok && (d.Kind == KindBadge || d.Kind == KindImage) {
		return img, drawQR(img, url, scale)
	}

	drawCardText(img, d.Text, scale)
	return img, nil
}

func drawBorder(img *image.RGBA, scale int) {
	b := img.Bounds()
	thickness := scale
	for y := 0; y < thickness; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, b.Min.Y+y, cardBorder)
			img.Set(x, b.Max.Y-1-y, cardBorder)
		}
	}
	for x := 0; x < thickness; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.Set(b.Min.X+x, y, cardBorder)
			img.Set(b.Max.X-1-x, y, cardBorder)
		}
	}
}

// drawCardText centers the text on the card, wrapping on spaces when a
// single line would overflow.
func drawCardText(img *image.RGBA, text string, scale int) {
	face := basicfont.Face7x13
	glyphW := face.Advance * scale
	lineH := face.Height * scale

	b := img.Bounds()
	maxCols := (b.Dx() - 40*scale/2) / glyphW
	if maxCols < 4 {
		maxCols = 4
	}

	lines := wrapText(text, maxCols)
	totalH := len(lines) * lineH
	y := b.Min.Y + (b.Dy()-totalH)/2 + face.Ascent*scale

	for _, line := range lines {
		lineW := len(line) * glyphW
		x := b.Min.X + (b.Dx()-lineW)/2
		drawScaledString(img, face, line, x, y, scale)
		y += lineH
	}
}

// drawScaledString renders a string at an integer scale factor by drawing
// to a small staging image and block-copying pixels. basicfont has one
// size, so scaling by replication is how we get readable glyphs at 1080p.
func drawScaledString(img *image.RGBA, face *basicfont.Face, s string, x, y, scale int) {
	if scale <= 1 {
		dr := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{cardText},
			Face: face,
			Dot:  fixed.P(x, y),
		}
		dr.DrawString(s)
		return
	}

	w := len(s)*face.Advance + 2
	h := face.Height + 2
	stage := image.NewRGBA(image.Rect(0, 0, w, h))
	dr := &font.Drawer{
		Dst:  stage,
		Src:  &image.Uniform{cardText},
		Face: face,
		Dot:  fixed.P(1, face.Ascent),
	}
	dr.DrawString(s)

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			c := stage.RGBAAt(sx, sy)
			if c.A == 0 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x+sx*scale+dx, y-face.Ascent*scale+sy*scale+dy, c)
				}
			}
		}
	}
}

func wrapText(text string, maxCols int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len(current)+1+len(w) > maxCols {
			lines = append(lines, current)
			current = w
			continue
		}
		current += " " + w
	}
	lines = append(lines, current)
	return lines
}

// drawQR renders a QR code centered on the card with a white quiet zone.
func drawQR(img *image.RGBA, url string, scale int) error {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	side -= 20 * scale

	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qr encode: %w", err)
	}
	code.BackgroundColor = qrQuiet

	qr := code.Image(side)
	offset := image.Point{
		X: b.Min.X + (b.Dx()-side)/2,
		Y: b.Min.Y + (b.Dy()-side)/2,
	}
	draw.Draw(img, image.Rect(offset.X, offset.Y, offset.X+side, offset.Y+side), qr, qr.Bounds().Min, draw.Over)
	return nil
}
