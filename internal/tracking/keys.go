// Package tracking records clicks, pixel events and conversions in the
// key-value store and aggregates them for the admin dashboard.
package tracking

import (
	"strconv"
	"strings"
	"time"
)

// Key prefixes.
const (
	clickPrefix        = "click:"
	dailyClicksPrefix  = "clicks:daily:"
	dailyMetricsPrefix = "metrics:daily:"
	conversionPrefix   = "conversion:"
	eventPrefix        = "event:"
	rateLimitPrefix    = "rate_limit:clicks:"
)

// Record lifetimes.
const (
	ClickTTL        = 90 * 24 * time.Hour
	DailyCounterTTL = 30 * 24 * time.Hour
	ConversionTTL   = 30 * 24 * time.Hour
	EventTTL        = 7 * 24 * time.Hour
)

// Daily metrics hash fields.
const (
	FieldPageViews   = "page_views"
	FieldConversions = "conversions"
)

// DateKey formats t as the UTC date used in daily key families.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ClickKey is the key of a stored click record.
func ClickKey(clickID string) string {
	return clickPrefix + clickID
}

// DailyClicksKey is the per-partner click counter for a date.
func DailyClicksKey(date, partnerID string) string {
	return dailyClicksPrefix + date + ":" + partnerID
}

// DailyMetricsKey is the per-partner page view and conversion hash for a date.
func DailyMetricsKey(date, partnerID string) string {
	return dailyMetricsPrefix + date + ":" + partnerID
}

// ConversionKey is the key of a conversion attributed to a click.
func ConversionKey(partnerID, clickID string) string {
	return conversionPrefix + partnerID + ":" + clickID
}

// EventKey is the key of a pixel tracking event.
func EventKey(partnerID string, epochMs int64, suffix string) string {
	return eventPrefix + partnerID + ":" + strconv.FormatInt(epochMs, 10) + ":" + suffix
}

// RateLimitKey is the per-IP click window counter.
func RateLimitKey(clientIP string) string {
	return rateLimitPrefix + clientIP
}

// partnerFromDailyKey extracts the partner id from a daily counter key.
func partnerFromDailyKey(prefix, date, key string) string {
	return strings.TrimPrefix(key, prefix+date+":")
}
