package models

import "time"

type Freshness string

const (
	FreshnessUnknown Freshness = "unknown"
	FreshnessFresh   Freshness = "fresh"
	FreshnessYellow  Freshness = "yellow"
	FreshnessOrange  Freshness = "orange"
	FreshnessRed     Freshness = "red"
)

// PriceFreshness classifies how old a stored price is.
func PriceFreshness(updatedAt *time.Time, now time.Time) Freshness {
	if updatedAt == nil {
		return FreshnessUnknown
	}
	age := now.Sub(*updatedAt)
	switch {
	case age < 30*time.Minute:
		return FreshnessFresh
	case age < 60*time.Minute:
		return FreshnessYellow
	case age < 120*time.Minute:
		return FreshnessOrange
	default:
		return FreshnessRed
	}
}

const (
	youngTokenAge    = 24 * time.Hour
	youngTokenWindow = 5 * time.Minute
	matureWindow     = 60 * time.Minute
)

// PriceCacheWindow is how long a refreshed price stays valid: new tokens move
// fast, so anything under a day old is refreshed more aggressively.
func PriceCacheWindow(createdAt, now time.Time) time.Duration {
	if now.Sub(createdAt) < youngTokenAge {
		return youngTokenWindow
	}
	return matureWindow
}

// PriceStale reports whether a price last updated at updatedAt needs refreshing.
func PriceStale(updatedAt *time.Time, createdAt, now time.Time) bool {
	if updatedAt == nil {
		return true
	}
	return now.Sub(*updatedAt) > PriceCacheWindow(createdAt, now)
}

// ROIClass maps an ROI percentage to the dashboard colour bucket.
func ROIClass(roi *float64) string {
	if roi == nil {
		return "roi-none"
	}
	switch r := *roi; {
	case r > 100:
		return "roi-moon"
	case r > 0:
		return "roi-up"
	case r > -50:
		return "roi-down"
	default:
		return "roi-rekt"
	}
}
