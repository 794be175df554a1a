package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionOp identifies one primitive instruction variant. The set is closed:
// anything the parser does not recognize is a load-time error, never a
// runtime surprise.
type ActionOp string

const (
	OpNavigate ActionOp = "navigate"
	OpClick    ActionOp = "click"
	OpDrag     ActionOp = "drag"
	OpScroll   ActionOp = "scroll"
	OpWheel    ActionOp = "wheel"
	OpWait     ActionOp = "wait"
	OpOverlay  ActionOp = "overlay"
)

// Action is the parsed form of one scripted instruction, e.g.
// "click(#map-toggle)" or "overlay(title:Disaster Response,in,0)".
// Only the fields relevant to its Op are populated.
type Action struct {
	Op       ActionOp
	Raw      string // Original source string, kept for error context

	URL      string // navigate
	Selector string // click
	FromX    float64
	FromY    float64
	ToX      float64 // drag
	ToY      float64
	Direction string // scroll: up, down
	Delta    float64 // wheel: vertical delta in pixels
	WaitMs   int     // wait

	// overlay payload
	OverlayKind      string
	OverlayText      string
	OverlayDirection string // "in" or "out"
	OverlayOffsetMs  int
}

func (a Action) String() string { return a.Raw }

// ParseAction parses a single action source string into its tagged variant.
// Format is name(args) with comma-separated args, e.g. drag(200,300,600,300).
func ParseAction(raw string) (Action, error) {
	s := strings.TrimSpace(raw)
	open := strings.Index(s, "(")
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return Action{}, fmt.Errorf("malformed action %q: expected name(args)", raw)
	}

	name := strings.ToLower(strings.TrimSpace(s[:open]))
	payload := s[open+1 : len(s)-1]
	act := Action{Raw: s}

	switch ActionOp(name) {
	case OpNavigate:
		if payload == "" {
			return Action{}, fmt.Errorf("navigate: empty url in %q", raw)
		}
		act.Op = OpNavigate
		act.URL = strings.TrimSpace(payload)

	case OpClick:
		if payload == "" {
			return Action{}, fmt.Errorf("click: empty selector in %q", raw)
		}
		act.Op = OpClick
		act.Selector = strings.TrimSpace(payload)

	case OpDrag:
		coords, err := parseFloats(payload, 4)
		if err != nil {
			return Action{}, fmt.Errorf("drag: %v in %q", err, raw)
		}
		act.Op = OpDrag
		act.FromX, act.FromY, act.ToX, act.ToY = coords[0], coords[1], coords[2], coords[3]

	case OpScroll:
		dir := strings.ToLower(strings.TrimSpace(payload))
		if dir != "up" && dir != "down" {
			return Action{}, fmt.Errorf("scroll: direction must be up or down, got %q", payload)
		}
		act.Op = OpScroll
		act.Direction = dir

	case OpWheel:
		delta, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			return Action{}, fmt.Errorf("wheel: bad delta %q", payload)
		}
		act.Op = OpWheel
		act.Delta = delta

	case OpWait:
		ms, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil || ms < 0 {
			return Action{}, fmt.Errorf("wait: bad duration %q", payload)
		}
		act.Op = OpWait
		act.WaitMs = ms

	case OpOverlay:
		if err := parseOverlayPayload(payload, &act); err != nil {
			return Action{}, fmt.Errorf("overlay: %v in %q", err, raw)
		}
		act.Op = OpOverlay

	default:
		return Action{}, fmt.Errorf("unknown action %q", name)
	}

	return act, nil
}

// parseOverlayPayload handles "kind:Some Text,in,0". The text segment may
// itself contain commas only if the trailing direction/offset are present,
// so we split from the right.
func parseOverlayPayload(payload string, act *Action) error {
	colon := strings.Index(payload, ":")
	if colon <= 0 {
		return fmt.Errorf("expected kind:text payload")
	}
	act.OverlayKind = strings.ToLower(strings.TrimSpace(payload[:colon]))
	rest := payload[colon+1:]

	// Defaults when direction/offset are omitted.
	act.OverlayDirection = "in"
	act.OverlayOffsetMs = 0

	// Split the trailing ",offset" then ",direction" off the text.
	if idx := strings.LastIndex(rest, ","); idx >= 0 {
		if off, err := strconv.Atoi(strings.TrimSpace(rest[idx+1:])); err == nil {
			if off < 0 {
				return fmt.Errorf("negative start offset %d", off)
			}
			act.OverlayOffsetMs = off
			rest = rest[:idx]
			if idx2 := strings.LastIndex(rest, ","); idx2 >= 0 {
				dir := strings.ToLower(strings.TrimSpace(rest[idx2+1:]))
				if dir == "in" || dir == "out" {
					act.OverlayDirection = dir
					rest = rest[:idx2]
				}
			}
		} else {
			// No numeric tail: maybe just ",direction".
			dir := strings.ToLower(strings.TrimSpace(rest[idx+1:]))
			if dir == "in" || dir == "out" {
				act.OverlayDirection = dir
				rest = rest[:idx]
			}
		}
	}

	act.OverlayText = strings.TrimSpace(rest)
	if act.OverlayText == "" {
		return fmt.Errorf("empty overlay text")
	}
	return nil
}

func parseFloats(payload string, n int) ([]float64, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p)
		}
		out[i] = v
	}
	return out, nil
}
