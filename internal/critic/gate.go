package critic

import (
	"context"
	"fmt"
	"log"
)

// AttemptFunc produces one complete render and the evidence to judge it.
// attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) (Evidence, error)

// RunGate drives the produce-review loop: run an attempt, score it, and
// retry until it passes or the attempt budget is spent. The last report
// is returned either way, along with the number of attempts consumed.
func RunGate(ctx context.Context, c *Critic, maxAttempts int, attempt AttemptFunc) (Report, int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last Report
	for i := 1; i <= maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return last, i - 1, err
		}

		ev, err := attempt(ctx, i)
		if err != nil {
			log.Printf("[!] attempt %d/%d failed: %v", i, maxAttempts, err)
			if i == maxAttempts {
				return last, i, fmt.Errorf("attempt %d: %w", i, err)
			}
			continue
		}

		last = c.Review(ev)
		if last.Passed {
			log.Printf("[+++] quality gate passed on attempt %d (score %.1f)", i, last.OverallScore)
			return last, i, nil
		}
		log.Printf("[!] quality gate rejected attempt %d/%d: score %.1f, %d blocking issue(s)",
			i, maxAttempts, last.OverallScore, len(last.BlockingIssues))
	}
	return last, maxAttempts, fmt.Errorf("quality gate not passed after %d attempts (last score %.1f)",
		maxAttempts, last.OverallScore)
}
