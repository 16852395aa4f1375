package repository

import (
	"context"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// ClickRepository appends and reads click events. It never updates or
// deletes them.
type ClickRepository struct {
	db *pgxpool.Pool
}

func NewClickRepository(db *pgxpool.Pool) *ClickRepository {
	return &ClickRepository{db: db}
}

// Create appends one click event
func (r *ClickRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	ctx, span := startSpan(ctx, "INSERT", "click_events", attribute.String("link_id", event.LinkID.String()))
	defer span.End()

	query := `
		INSERT INTO click_events (link_id, occurred_at, ip_address, user_agent, device, browser, os)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		event.LinkID,
		event.Timestamp,
		event.IPAddress,
		event.UserAgent,
		event.Device,
		event.Browser,
		event.OS,
	).Scan(&event.ID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListByLink returns every event recorded for a link, newest first
func (r *ClickRepository) ListByLink(ctx context.Context, linkID uuid.UUID) ([]model.ClickEvent, error) {
	ctx, span := startSpan(ctx, "SELECT", "click_events", attribute.String("link_id", linkID.String()))
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT id, link_id, occurred_at, ip_address, user_agent, device, browser, os
		FROM click_events
		WHERE link_id = $1
		ORDER BY occurred_at DESC, id DESC
	`, linkID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	events := []model.ClickEvent{}
	for rows.Next() {
		var e model.ClickEvent
		if err := rows.Scan(&e.ID, &e.LinkID, &e.Timestamp, &e.IPAddress, &e.UserAgent, &e.Device, &e.Browser, &e.OS); err != nil {
			span.RecordError(err)
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return events, nil
}
