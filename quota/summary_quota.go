package quota

import (
	"context"
	"sync"
	"time"

	"ai-news-pipeline/config"
)

// SummaryQuotaLimiter enforces per-minute and per-day ceilings on
// summarization LLM calls. Counters live in memory and reset on restart;
// a single worker process per deployment is assumed.
type SummaryQuotaLimiter struct {
	mu sync.Mutex

	dailyLimit int
	usedToday  int
	dayKey     string

	interval time.Duration
	lastCall time.Time
}

// NewSummaryQuotaLimiterFromConfig builds a limiter from the
// summary_quota config section. A value of 0 or below disables that
// direction of the limit.
func NewSummaryQuotaLimiterFromConfig(cfg config.AppConfig) *SummaryQuotaLimiter {
	q := cfg.SummaryQuota

	requestsPerDay := q.RequestsPerDay
	if requestsPerDay < 0 {
		requestsPerDay = 0
	}

	requestsPerMinute := q.RequestsPerMinute
	if requestsPerMinute < 0 {
		requestsPerMinute = 0
	}

	var interval time.Duration
	if requestsPerMinute > 0 {
		interval = time.Minute / time.Duration(requestsPerMinute)
	}

	return &SummaryQuotaLimiter{
		dailyLimit: requestsPerDay,
		interval:   interval,
	}
}

// WaitAndReserve blocks until the per-minute spacing allows a call, then
// reserves one slot. It returns (false, nil) when the daily quota is
// spent, in which case the caller must skip the LLM call.
func (l *SummaryQuotaLimiter) WaitAndReserve(ctx context.Context) (bool, error) {
	for {
		l.mu.Lock()

		now := time.Now().UTC()
		todayKey := now.Format("2006-01-02")
		if l.dayKey != todayKey {
			l.dayKey = todayKey
			l.usedToday = 0
		}

		if l.dailyLimit > 0 && l.usedToday >= l.dailyLimit {
			l.mu.Unlock()
			return false, nil
		}

		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			nextAllowed := l.lastCall.Add(l.interval)
			delay = time.Until(nextAllowed)
		}

		if delay <= 0 {
			l.usedToday++
			l.lastCall = now
			l.mu.Unlock()
			return true, nil
		}

		l.mu.Unlock()
		select {
		case <-time.After(delay):
			// Re-evaluate under the lock.
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
