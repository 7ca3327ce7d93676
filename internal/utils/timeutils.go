package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// BucketStart truncates t to the start of its interval bucket.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	return t.Truncate(interval)
}

// ClampFuture pulls timestamps further than skew ahead of now back to now.
// Clock drift between reporters is tolerated up to the skew allowance.
func ClampFuture(t, now time.Time, skew time.Duration) time.Time {
	if skew < 0 {
		skew = 0
	}
	if t.After(now.Add(skew)) {
		return now
	}
	return t
}
