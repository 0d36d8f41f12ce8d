package extraction

import (
	"fmt"
	"strconv"
	"time"
)

// ParseGranularity parses a bucket size.
// Supports Go duration syntax (e.g., "10s", "1m", "1h") plus "Xd" for days and
// "Xw" for weeks.
func ParseGranularity(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("granularity must not be empty")
	}

	// "d" and "w" are not supported by time.ParseDuration.
	if len(s) > 1 && (s[len(s)-1] == 'd' || s[len(s)-1] == 'w') {
		unit := 24 * time.Hour
		if s[len(s)-1] == 'w' {
			unit *= 7
		}
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid granularity %q: %w", s, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("granularity must be positive, got %q", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid granularity %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("granularity must be positive, got %q", s)
	}
	return d, nil
}

// BucketFor truncates a timestamp to the start of its bucket, in UTC.
// Example: BucketFor(10:35:42, time.Minute) → 10:35:00
func BucketFor(t time.Time, granularity time.Duration) time.Time {
	return t.UTC().Truncate(granularity)
}
