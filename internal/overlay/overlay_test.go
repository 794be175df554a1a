package overlay

import (
	"testing"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

func overlayAction(kind, text, dir string, offset int) timeline.Action {
	return timeline.Action{
		Op:               timeline.OpOverlay,
		OverlayKind:      kind,
		OverlayText:      text,
		OverlayDirection: dir,
		OverlayOffsetMs:  offset,
	}
}

func TestGenerateContainment(t *testing.T) {
	viewports := []struct{ w, h int }{
		{1920, 1080},
		{1280, 720},
		{3840, 2160},
		{720, 1280},
	}
	kinds := []string{
		"title", "subtitle", "callout", "badge", "chip", "status",
		"image", "lower_third", "panel", "label", "slide",
	}

	for _, vp := range viewports {
		margin := SafeMargin(vp.w, vp.h)
		for _, kind := range kinds {
			d, err := Generate(overlayAction(kind, "Live hazard zones updating in real time", "in", 0), vp.w, vp.h)
			if err != nil {
				t.Fatalf("Generate(%s, %dx%d) failed: %v", kind, vp.w, vp.h, err)
			}

			if d.X < margin || d.Y < margin ||
				d.X+d.Width > vp.w-margin || d.Y+d.Height > vp.h-margin {
				t.Errorf("%s at %dx%d escapes safe area: box (%d,%d,%dx%d), margin %d",
					kind, vp.w, vp.h, d.X, d.Y, d.Width, d.Height, margin)
			}
		}
	}
}

func TestGenerateFullHDPlacement(t *testing.T) {
	// overlay(title:Disaster Response Platform,in,0) at 1920x1080 must stay
	// within x [60,1860], y [60,1020].
	d, err := Generate(overlayAction("title", "Disaster Response Platform", "in", 0), 1920, 1080)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if d.X < 60 || d.X+d.Width > 1860 {
		t.Errorf("x range violated: [%d,%d]", d.X, d.X+d.Width)
	}
	if d.Y < 60 || d.Y+d.Height > 1020 {
		t.Errorf("y range violated: [%d,%d]", d.Y, d.Y+d.Height)
	}
}

func TestSafeMargin(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{1920, 1080, 60},  // 5% of 1080 = 54, floor wins
		{1280, 720, 60},
		{3840, 2160, 108}, // 5% of 2160
	}
	for _, tt := range tests {
		if got := SafeMargin(tt.w, tt.h); got != tt.want {
			t.Errorf("SafeMargin(%d,%d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestUnknownKindRejected(t *testing.T) {
	_, err := Generate(overlayAction("hologram", "nope", "in", 0), 1920, 1080)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRoleResolution(t *testing.T) {
	tests := []struct {
		kind string
		text string
		want Role
	}{
		{"status", "EVACUATION ALERT issued", RoleEmergency},
		{"status", "All units online", RoleSuccess},
		{"status", "Wind shifting northeast", RoleInfo},
		{"title", "Disaster Response Platform", RoleInfo},
		{"panel", "Resource overview", RoleNeutral},
		{"chip", "Route cleared", RoleSuccess},
	}

	for _, tt := range tests {
		d, err := Generate(overlayAction(tt.kind, tt.text, "in", 0), 1920, 1080)
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", tt.kind, err)
		}
		if d.Role != tt.want {
			t.Errorf("%s %q: role %s, want %s", tt.kind, tt.text, d.Role, tt.want)
		}
	}
}

func TestExitAnimations(t *testing.T) {
	d, err := Generate(overlayAction("callout", "Sector 7 contained", "out", 1000), 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if d.Animation.Type != SlideOut {
		t.Errorf("expected slide_out, got %s", d.Animation.Type)
	}
	if d.StartOffsetMs != 1000 {
		t.Errorf("expected offset 1000, got %d", d.StartOffsetMs)
	}

	d, err = Generate(overlayAction("title", "Closing", "out", 0), 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if d.Animation.Type != FadeOut {
		t.Errorf("expected fade_out, got %s", d.Animation.Type)
	}
}

func TestRenderProducesOpaqueCard(t *testing.T) {
	d, err := Generate(overlayAction("title", "Disaster Response Platform", "in", 0), 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}

	img, err := NewRenderer().Render(d)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != d.Width*2 || b.Dy() != d.Height*2 {
		t.Errorf("expected %dx%d at 2x, got %dx%d", d.Width*2, d.Height*2, b.Dx(), b.Dy())
	}

	center := img.RGBAAt(b.Dx()/2, b.Dy()/2)
	if center.A == 0 {
		t.Error("card center should not be transparent")
	}
}

func TestRenderQRBadge(t *testing.T) {
	d, err := Generate(overlayAction("badge", "qr:https://example.com/demo", "in", 0), 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}

	img, err := NewRenderer().Render(d)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// QR quiet zone is white; the bare card background is not.
	b := img.Bounds()
	sawWhite := false
	for x := b.Min.X; x < b.Max.X; x += 4 {
		c := img.RGBAAt(x, b.Dy()/2)
		if c.R == 0xFF && c.G == 0xFF && c.B == 0xFF {
			sawWhite = true
			break
		}
	}
	if !sawWhite {
		t.Error("expected QR quiet zone pixels on badge card")
	}
}
