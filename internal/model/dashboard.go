package model

// DashboardMetrics is the admin dashboard payload.
type DashboardMetrics struct {
	Realtime RealtimeMetrics `json:"realtime"`
	Partners []PartnerStats  `json:"partners"`
	Recent   RecentActivity  `json:"recent"`
}

// RealtimeMetrics are today's (UTC) totals.
type RealtimeMetrics struct {
	TodayClicks      int64    `json:"todayClicks"`
	TodayConversions int64    `json:"todayConversions"`
	TodayPageViews   int64    `json:"todayPageViews"`
	ActivePartners   []string `json:"activePartners"`
}

// PartnerStats is the per-partner rollup over the sampled records.
type PartnerStats struct {
	PartnerID      string  `json:"partnerId"`
	Clicks         int64   `json:"clicks"`
	Conversions    int64   `json:"conversions"`
	Revenue        float64 `json:"revenue"`
	LastConversion *int64  `json:"lastConversion"` // epoch ms
	ConversionRate float64 `json:"conversionRate"` // percent
}

// RecentActivity lists the newest records, newest first.
type RecentActivity struct {
	Clicks      []ClickEvent       `json:"clicks"`
	Conversions []ConversionRecord `json:"conversions"`
}
