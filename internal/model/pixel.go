package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// Pixel event types with dedicated handling.
const (
	EventPageView   = "page_view"
	EventConversion = "conversion"
	EventLanding    = "landing"
)

// PixelEvent is the canonical pixel input after query parsing.
type PixelEvent struct {
	PartnerID     string
	EventType     string
	ClickID       string
	SessionID     string
	PageURL       string
	Referrer      string
	Timestamp     int64 // epoch ms, zero when not reported
	Value         *float64
	ContractValue *float64
}

// ErrPixelPayload reports a data parameter that is not a valid pixel payload.
var ErrPixelPayload = errors.New("undecodable pixel data payload")

// PixelQuery is either a JSON payload or discrete query parameters.
type PixelQuery interface {
	Event() PixelEvent
	pixelQuery()
}

// PixelPayload is the JSON document carried in the data parameter.
type PixelPayload struct {
	PartnerID     string   `json:"partner_id"`
	EventType     string   `json:"event_type"`
	ClickID       string   `json:"click_id"`
	SessionID     string   `json:"session_id"`
	PageURL       string   `json:"page_url"`
	URL           string   `json:"url"`
	Referrer      string   `json:"referrer"`
	Timestamp     *int64   `json:"timestamp"`
	Value         *float64 `json:"value"`
	ContractValue *float64 `json:"contract_value"`
}

func (PixelPayload) pixelQuery() {}

// Event resolves the payload. url is accepted as an alias of page_url.
func (p PixelPayload) Event() PixelEvent {
	ev := PixelEvent{
		PartnerID:     p.PartnerID,
		EventType:     p.EventType,
		ClickID:       p.ClickID,
		SessionID:     p.SessionID,
		PageURL:       p.PageURL,
		Referrer:      p.Referrer,
		Value:         p.Value,
		ContractValue: p.ContractValue,
	}
	if ev.PageURL == "" {
		ev.PageURL = p.URL
	}
	if p.Timestamp != nil {
		ev.Timestamp = *p.Timestamp
	}
	if ev.EventType == "" {
		ev.EventType = EventPageView
	}
	return ev
}

// PixelParams are the fallback discrete parameters.
type PixelParams struct {
	PartnerID string
	EventType string
	ClickID   string
	URL       string
	Ref       string
}

func (PixelParams) pixelQuery() {}

func (p PixelParams) Event() PixelEvent {
	ev := PixelEvent{
		PartnerID: p.PartnerID,
		EventType: p.EventType,
		ClickID:   p.ClickID,
		PageURL:   p.URL,
		Referrer:  p.Ref,
	}
	if ev.EventType == "" {
		ev.EventType = EventPageView
	}
	return ev
}

// ParsePixelQuery prefers a JSON object in data and falls back to the
// discrete parameters when data is absent or does not decode. The returned
// query is always usable; a non-nil error wraps ErrPixelPayload and means a
// data payload was present but ignored.
func ParsePixelQuery(q url.Values) (PixelQuery, error) {
	var decodeErr error
	if raw := strings.TrimSpace(q.Get("data")); raw != "" {
		var p PixelPayload
		err := json.Unmarshal([]byte(raw), &p)
		if err == nil {
			return p, nil
		}
		decodeErr = fmt.Errorf("%w: %v", ErrPixelPayload, err)
	}
	return PixelParams{
		PartnerID: q.Get("partner_id"),
		EventType: q.Get("event_type"),
		ClickID:   q.Get("click_id"),
		URL:       q.Get("url"),
		Ref:       q.Get("ref"),
	}, decodeErr
}

// ConversionRecord builds the record stored for a conversion event.
func (e PixelEvent) ConversionRecord(nowMs int64) ConversionRecord {
	return ConversionRecord{
		PartnerID:      e.PartnerID,
		ClickID:        e.ClickID,
		SessionID:      e.SessionID,
		EventType:      e.EventType,
		PageURL:        e.PageURL,
		Referrer:       e.Referrer,
		Timestamp:      e.Timestamp,
		Value:          e.Value,
		ContractValue:  e.ContractValue,
		ConversionTime: nowMs,
	}
}
