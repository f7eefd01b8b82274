package pricing

import "time"

// msThreshold separates unix seconds from unix milliseconds.
const msThreshold = 1_000_000_000_000

// NormalizeTimestamp converts a millisecond timestamp to seconds and leaves
// second timestamps alone.
func NormalizeTimestamp(ts int64) int64 {
	if ts > msThreshold {
		return ts / 1000
	}
	return ts
}

// ROI is the percentage change from one price to another, or nil when
// either price is unknown or the base is zero.
func ROI(from, to *float64) *float64 {
	if from == nil || to == nil || *from == 0 {
		return nil
	}
	v := (*to - *from) / *from * 100
	return &v
}

// Drawdown is how far current sits below the ATH, in percent of the ATH.
func Drawdown(ath, current *float64) *float64 {
	if ath == nil || current == nil || *ath == 0 {
		return nil
	}
	v := (*ath - *current) / *ath * 100
	return &v
}

func isoDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
