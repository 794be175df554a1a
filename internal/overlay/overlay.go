package overlay

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

// Kind is the closed overlay vocabulary. Overlays are a compositing-time
// concern: they are rendered over the captured footage and never touch the
// recorded page's DOM.
type Kind string

const (
	KindTitle      Kind = "title"
	KindSubtitle   Kind = "subtitle"
	KindCallout    Kind = "callout"
	KindBadge      Kind = "badge"
	KindChip       Kind = "chip"
	KindStatus     Kind = "status"
	KindImage      Kind = "image"
	KindLowerThird Kind = "lower_third"
	KindPanel      Kind = "panel"
	KindLabel      Kind = "label"
	KindSlide      Kind = "slide"
)

// Anchor is a named viewport position resolved to pixel coordinates.
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// Role keys the brand palette. Colors are never free-form: every overlay
// picks its background through a role so dozens of beats stay consistent.
type Role string

const (
	RoleEmergency Role = "emergency"
	RoleInfo      Role = "info"
	RoleSuccess   Role = "success"
	RoleNeutral   Role = "neutral"
	RoleWarning   Role = "warning"
)

// Palette is the fixed brand palette.
var Palette = map[Role]color.RGBA{
	RoleEmergency: {R: 0xD3, G: 0x2F, B: 0x2F, A: 0xFF},
	RoleInfo:      {R: 0x19, G: 0x76, B: 0xD2, A: 0xFF},
	RoleSuccess:   {R: 0x2E, G: 0x7D, B: 0x32, A: 0xFF},
	RoleNeutral:   {R: 0x45, G: 0x4F, B: 0x5B, A: 0xFF},
	RoleWarning:   {R: 0xEF, G: 0x6C, B: 0x00, A: 0xFF},
}

// AnimationType is the closed set of entrance/exit animations.
type AnimationType string

const (
	FadeIn   AnimationType = "fade_in"
	FadeOut  AnimationType = "fade_out"
	SlideIn  AnimationType = "slide_in"
	SlideOut AnimationType = "slide_out"
	ScaleIn  AnimationType = "scale_in"
	ScaleOut AnimationType = "scale_out"
)

// Animation is the resolved animation spec for one descriptor.
type Animation struct {
	Type       AnimationType `json:"type"`
	DurationMs int           `json:"duration_ms"`
}

// Descriptor is the fully resolved rendering instruction for one overlay.
// It is derived once when the overlay action is interpreted and never
// mutated afterwards; the assembler consumes it as render metadata.
type Descriptor struct {
	Kind          Kind      `json:"kind"`
	Text          string    `json:"text"`
	Anchor        Anchor    `json:"anchor"`
	X             int       `json:"x"` // Top-left corner, absolute pixels
	Y             int       `json:"y"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Role          Role      `json:"role"`
	Animation     Animation `json:"animation"`
	StartOffsetMs int       `json:"start_offset_ms"`
}

// kindSpec carries per-kind layout and animation defaults.
type kindSpec struct {
	anchor  Anchor
	width   int
	height  int
	anim    AnimationType
	role    Role
	padText bool // width grows with text length
}

var kindSpecs = map[Kind]kindSpec{
	KindTitle:      {AnchorCenter, 720, 120, FadeIn, RoleInfo, true},
	KindSubtitle:   {AnchorCenter, 560, 80, FadeIn, RoleNeutral, true},
	KindCallout:    {AnchorTopRight, 380, 90, SlideIn, RoleInfo, true},
	KindBadge:      {AnchorBottomRight, 200, 200, ScaleIn, RoleNeutral, false},
	KindChip:       {AnchorTopLeft, 220, 56, ScaleIn, RoleSuccess, true},
	KindStatus:     {AnchorTopLeft, 320, 70, SlideIn, RoleInfo, true},
	KindImage:      {AnchorBottomLeft, 280, 280, FadeIn, RoleNeutral, false},
	KindLowerThird: {AnchorBottomLeft, 640, 96, SlideIn, RoleInfo, true},
	KindPanel:      {AnchorTopRight, 420, 260, SlideIn, RoleNeutral, false},
	KindLabel:      {AnchorBottomLeft, 260, 56, FadeIn, RoleNeutral, true},
	KindSlide:      {AnchorCenter, 960, 540, FadeIn, RoleNeutral, false},
}

const defaultAnimMs = 400

// ErrUnknownOverlayKind is returned for kinds outside the closed set. The
// interpreter logs it, skips the overlay, and the beat continues.
var ErrUnknownOverlayKind = fmt.Errorf("unknown overlay kind")

// SafeMargin returns the minimum distance every overlay edge must keep from
// the viewport boundary: 60px or 5% of the smaller viewport dimension,
// whichever is larger.
func SafeMargin(viewportW, viewportH int) int {
	min := viewportW
	if viewportH < min {
		min = viewportH
	}
	margin := min * 5 / 100
	if margin < 60 {
		margin = 60
	}
	return margin
}

// Generate resolves an overlay action into a complete descriptor for the
// given viewport. Position is computed by the kind's anchor and then
// clamped so the bounding box stays inside the safe margin on every edge.
func Generate(act timeline.Action, viewportW, viewportH int) (*Descriptor, error) {
	kind := Kind(act.OverlayKind)
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOverlayKind, act.OverlayKind)
	}

	d := &Descriptor{
		Kind:          kind,
		Text:          act.OverlayText,
		Anchor:        spec.anchor,
		Width:         spec.width,
		Height:        spec.height,
		Role:          resolveRole(kind, spec.role, act.OverlayText),
		StartOffsetMs: act.OverlayOffsetMs,
		Animation:     Animation{Type: spec.anim, DurationMs: defaultAnimMs},
	}

	if act.OverlayDirection == "out" {
		d.Animation.Type = exitAnimation(spec.anim)
	}

	if spec.padText {
		d.Width = textWidth(spec.width, act.OverlayText)
	}

	margin := SafeMargin(viewportW, viewportH)

	// Overlays can never be wider than the safe area itself.
	if maxW := viewportW - 2*margin; d.Width > maxW {
		d.Width = maxW
	}
	if maxH := viewportH - 2*margin; d.Height > maxH {
		d.Height = maxH
	}

	d.X, d.Y = anchorPosition(spec.anchor, d.Width, d.Height, viewportW, viewportH, margin)
	d.X = clamp(d.X, margin, viewportW-margin-d.Width)
	d.Y = clamp(d.Y, margin, viewportH-margin-d.Height)

	return d, nil
}

// anchorPosition places the box at its named anchor, already offset by the
// safe margin for the edge-hugging anchors.
func anchorPosition(a Anchor, w, h, vw, vh, margin int) (int, int) {
	switch a {
	case AnchorTopLeft:
		return margin, margin
	case AnchorTopRight:
		return vw - margin - w, margin
	case AnchorBottomLeft:
		return margin, vh - margin - h
	case AnchorBottomRight:
		return vw - margin - w, vh - margin - h
	default: // center
		return (vw - w) / 2, (vh - h) / 2
	}
}

// resolveRole maps a kind to its palette role. Status overlays with
// alert-like wording escalate to the emergency color; anything
// unrecognized stays neutral.
func resolveRole(kind Kind, fallback Role, text string) Role {
	if kind == KindStatus {
		lower := strings.ToLower(text)
		for _, w := range []string{"alert", "emergency", "critical", "evacuat", "danger"} {
			if strings.Contains(lower, w) {
				return RoleEmergency
			}
		}
		for _, w := range []string{"safe", "resolved", "clear", "online"} {
			if strings.Contains(lower, w) {
				return RoleSuccess
			}
		}
		return RoleInfo
	}
	if _, ok := Palette[fallback]; !ok {
		return RoleNeutral
	}
	return fallback
}

func exitAnimation(in AnimationType) AnimationType {
	switch in {
	case SlideIn:
		return SlideOut
	case ScaleIn:
		return ScaleOut
	default:
		return FadeOut
	}
}

// textWidth widens the base card for long text. The 7px-per-glyph figure
// matches the basicfont face used by the renderer, doubled for the 2x
// render scale and padded.
func textWidth(base int, text string) int {
	needed := len(text)*14 + 80
	if needed > base {
		return needed
	}
	return base
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
