// Package model defines domain entities for the application.
package model

import (
	"github.com/goccy/go-json"
)

// ClickIDPrefix marks IDs generated by the comparison site's click links.
const ClickIDPrefix = "dep_"

// SourcePixelTracking is the source recorded for clicks seen by the pixel.
var SourcePixelTracking = json.RawMessage(`"pixel_tracking"`)

// ClickData is the body accepted by the click tracking endpoint.
type ClickData struct {
	ClickID   string          `json:"click_id" validate:"required,startswith=dep_"`
	PartnerID string          `json:"partner_id" validate:"required"`
	Timestamp *int64          `json:"timestamp,omitempty"`  // epoch ms, server time when absent
	Source    json.RawMessage `json:"source,omitempty"`     // {page, component, variant}
	Metadata  *ClickMetadata  `json:"metadata,omitempty"`
	PageURL   string          `json:"page_url,omitempty"`
}

// ClickMetadata carries optional calculator context.
type ClickMetadata struct {
	Consumption *float64 `json:"consumption,omitempty"` // kWh/year
	Region      string   `json:"region,omitempty"`      // DK1 or DK2
}

// ClickEvent is the record stored under click:<click_id>.
type ClickEvent struct {
	ClickID   string          `json:"click_id"`
	PartnerID string          `json:"partner_id"`
	Timestamp int64           `json:"timestamp"` // epoch ms
	Source    json.RawMessage `json:"source,omitempty"`
	Metadata  *ClickMetadata  `json:"metadata,omitempty"`
	PageURL   string          `json:"page_url,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
}

// ClickEventFromData builds the stored record, defaulting the timestamp to nowMs.
func ClickEventFromData(d ClickData, nowMs int64) ClickEvent {
	ts := nowMs
	if d.Timestamp != nil {
		ts = *d.Timestamp
	}
	return ClickEvent{
		ClickID:   d.ClickID,
		PartnerID: d.PartnerID,
		Timestamp: ts,
		Source:    d.Source,
		Metadata:  d.Metadata,
		PageURL:   d.PageURL,
	}
}

// ConversionRecord is stored under conversion:<partner_id>:<click_id>.
type ConversionRecord struct {
	PartnerID      string   `json:"partner_id"`
	ClickID        string   `json:"click_id"`
	SessionID      string   `json:"session_id,omitempty"`
	EventType      string   `json:"event_type"`
	PageURL        string   `json:"page_url,omitempty"`
	Referrer       string   `json:"referrer,omitempty"`
	Timestamp      int64    `json:"timestamp,omitempty"`
	Value          *float64 `json:"value,omitempty"`
	ContractValue  *float64 `json:"contract_value,omitempty"`
	ConversionTime int64    `json:"conversion_time"` // epoch ms
}

// Revenue returns the conversion value, falling back to the contract value.
func (c ConversionRecord) Revenue() float64 {
	switch {
	case c.Value != nil:
		return *c.Value
	case c.ContractValue != nil:
		return *c.ContractValue
	default:
		return 0
	}
}

// TrackingEventType is the envelope type of pixel-recorded events.
const TrackingEventType = "pixel_event"

// TrackingEvent is the generic envelope stored for every pixel hit with a partner.
type TrackingEvent struct {
	Type          string            `json:"type"`
	PartnerID     string            `json:"partner_id"`
	PartnerDomain string            `json:"partner_domain"`
	Data          TrackingEventData `json:"data"`
	ClientInfo    ClientInfo        `json:"client_info"`
}

// TrackingEventData holds the event fields reported by the page.
type TrackingEventData struct {
	ClickID   string `json:"click_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
	Timestamp int64  `json:"timestamp"`
	EventType string `json:"event_type"`
}

// ClientInfo holds request metadata observed by the server.
type ClientInfo struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
