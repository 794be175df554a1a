package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/overlay"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

// Action-level error taxonomy. These are recovered locally: logged, the
// action skipped, and the beat continues.
var (
	ErrNavigation      = errors.New("navigation failed")
	ErrElementNotFound = errors.New("element not found")
)

// Driver is the minimal browser surface the interpreter drives. The live
// implementation wraps a Playwright page; tests substitute a fake.
type Driver interface {
	Navigate(url string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	Drag(fromX, fromY, toX, toY float64) error
	Scroll(direction string) error
	Wheel(delta float64) error
}

// Interpreter executes one beat's action list in strict order against a
// live page. It owns no browser state itself; the session manager threads
// the driver in per beat.
type Interpreter struct {
	BaseURL     string // Navigation targets without a scheme resolve against this
	ViewportW   int
	ViewportH   int
	StepTimeout time.Duration
}

// BeatResult is what interpreting one beat produced besides the recording
// itself: the overlay render track and any contained action failures.
type BeatResult struct {
	Overlays     []*overlay.Descriptor
	ActionErrors []ActionError
}

// Run executes the beat's actions in sequence. A failing action is logged
// with the beat id and action index and recorded, then execution moves to
// the next action: later actions and the overall recording are never lost
// to one bad selector. Only context cancellation aborts the list.
func (it *Interpreter) Run(ctx context.Context, drv Driver, beat timeline.Beat) (BeatResult, error) {
	var res BeatResult

	for i, act := range beat.Actions {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		if err := it.execute(ctx, drv, act, &res); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			log.Printf("[capture] beat %s action %d (%s): %v", beat.ID, i, act.Raw, err)
			res.ActionErrors = append(res.ActionErrors, ActionError{
				Index:  i,
				Action: act.Raw,
				Error:  err.Error(),
			})
		}
	}

	return res, nil
}

func (it *Interpreter) execute(ctx context.Context, drv Driver, act timeline.Action, res *BeatResult) error {
	switch act.Op {
	case timeline.OpNavigate:
		target := it.resolveURL(act.URL)
		if err := drv.Navigate(target, it.StepTimeout); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNavigation, target, err)
		}
		return nil

	case timeline.OpClick:
		if err := drv.Click(act.Selector, it.StepTimeout); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrElementNotFound, act.Selector, err)
		}
		return nil

	case timeline.OpDrag:
		// Fire-and-forget: the page gives no success signal for
		// synthesized pointer events.
		return drv.Drag(act.FromX, act.FromY, act.ToX, act.ToY)

	case timeline.OpScroll:
		return drv.Scroll(act.Direction)

	case timeline.OpWheel:
		return drv.Wheel(act.Delta)

	case timeline.OpWait:
		// Explicit pacing: this is how a beat is stretched to its target
		// duration. Must remain cancellable by the beat ceiling.
		select {
		case <-time.After(time.Duration(act.WaitMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case timeline.OpOverlay:
		// Overlays are compositing-time only. They never touch the page
		// DOM, so the recorded application stays untouched.
		desc, err := overlay.Generate(act, it.ViewportW, it.ViewportH)
		if err != nil {
			return err
		}
		res.Overlays = append(res.Overlays, desc)
		return nil

	default:
		return fmt.Errorf("unhandled action op %q", act.Op)
	}
}

// resolveURL joins path-only navigation targets onto the configured base,
// so timelines can say navigate(/incidents) without hardcoding a host.
func (it *Interpreter) resolveURL(raw string) string {
	if it.BaseURL == "" || strings.Contains(raw, "://") {
		return raw
	}
	return strings.TrimRight(it.BaseURL, "/") + "/" + strings.TrimLeft(raw, "/")
}
