package util

import "time"

// NowUTC exposes time.Now for deterministic testing, truncated to
// millisecond precision to match the external timestamp contract.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
