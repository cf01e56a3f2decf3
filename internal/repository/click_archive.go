package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

// ErrInvalidRange is returned when from is not before to.
var ErrInvalidRange = errors.New("repository: from must be before to")

const insertArchivedClick = `
	INSERT INTO click_archive (
		id, stream_id, click_id, partner_id, clicked_at,
		source, consumption_kwh, region, page_url, archived_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (stream_id) DO NOTHING
`

// ClickArchive provides access to the click_archive table.
type ClickArchive struct {
	repo *Repository
}

// NewClickArchive creates a new ClickArchive.
func NewClickArchive(repo *Repository) *ClickArchive {
	return &ClickArchive{repo: repo}
}

// InsertBatch inserts clicks in one round trip and returns how many rows
// were new. Stream IDs already archived are skipped.
func (a *ClickArchive) InsertBatch(ctx context.Context, clicks []*model.ArchivedClick) (int64, error) {
	if len(clicks) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range clicks {
		batch.Queue(insertArchivedClick,
			c.ID,
			c.StreamID,
			c.ClickID,
			c.PartnerID,
			c.ClickedAt,
			nullableJSON(c.Source),
			c.Consumption,
			nullableString(c.Region),
			nullableString(c.PageURL),
		)
	}

	results := a.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for i := range clicks {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert click %d (%s): %w", i, clicks[i].StreamID, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// PartnerTotals returns per-partner click counts in [from, to), busiest first.
func (a *ClickArchive) PartnerTotals(ctx context.Context, from, to time.Time) ([]model.PartnerTotal, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	rows, err := a.repo.pool.Query(ctx, `
		SELECT partner_id, COUNT(*), MIN(clicked_at), MAX(clicked_at)
		FROM click_archive
		WHERE clicked_at >= $1 AND clicked_at < $2
		GROUP BY partner_id
		ORDER BY COUNT(*) DESC, partner_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query partner totals: %w", err)
	}

	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PartnerTotal, error) {
		var t model.PartnerTotal
		err := row.Scan(&t.PartnerID, &t.Clicks, &t.FirstSeen, &t.LastSeen)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan partner totals: %w", err)
	}
	return totals, nil
}

// Count returns the number of archived clicks.
func (a *ClickArchive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM click_archive`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archived clicks: %w", err)
	}
	return n, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
