package pipeline

import "time"

// RetryPolicy is the explicit retry policy consulted by the Tracker.
// The backoff schedule is advisory; the event bus delay topics enforce
// the actual waits between redeliveries.
type RetryPolicy struct {
	MaxRetries map[Stage]int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the stock policy: 3 retries for extraction
// and summarization, 2 for embedding.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: map[Stage]int{
			StageExtract:   3,
			StageSummarize: 3,
			StageEmbed:     2,
		},
		BaseDelay: 10 * time.Second,
		MaxDelay:  10 * time.Minute,
	}
}

// MaxFor returns the retry ceiling for a stage.
func (p RetryPolicy) MaxFor(stage Stage) int {
	return p.MaxRetries[stage]
}

// Exhausted reports whether a stage with the given recorded retry count
// has no budget left for another attempt.
func (p RetryPolicy) Exhausted(stage Stage, retries int) bool {
	return retries >= p.MaxFor(stage)
}

// Backoff returns the delay before retry attempt n (1-based),
// doubling from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
