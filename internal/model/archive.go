package model

import "time"

// ArchivedClick is a click row in the Postgres archive.
type ArchivedClick struct {
	ID          string    // ULID
	StreamID    string    // Redis stream entry ID, idempotency key
	ClickID     string
	PartnerID   string
	ClickedAt   time.Time
	Source      []byte // raw JSON, may be nil
	Consumption *float64
	Region      string
	PageURL     string
}

// PartnerTotal is the archived click count for a partner.
type PartnerTotal struct {
	PartnerID string    `json:"partner_id"`
	Clicks    int64     `json:"clicks"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
