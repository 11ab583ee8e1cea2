package rules

import "time"

const (
	// QuotaWindow is the rolling period after which usage resets.
	QuotaWindow = 24 * time.Hour

	FreeDailyLimit = 3
	PaidDailyLimit = 200
)

// WindowElapsed reports whether the quota window anchored at anchor has rolled
// over by now.
func WindowElapsed(now, anchor time.Time, window time.Duration) bool {
	if window <= 0 {
		window = QuotaWindow
	}
	return now.Sub(anchor) >= window
}

// ResetIn returns the time remaining until the window anchored at anchor rolls
// over. Never negative.
func ResetIn(now, anchor time.Time, window time.Duration) time.Duration {
	if window <= 0 {
		window = QuotaWindow
	}
	left := window - now.Sub(anchor)
	if left < 0 {
		return 0
	}
	return left
}
