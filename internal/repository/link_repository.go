package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// LinkStore is the persistence contract the link service depends on.
type LinkStore interface {
	Create(ctx context.Context, link *model.Link) error
	ExistsByCode(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	GetByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, q model.ListQuery) ([]model.Link, int64, error)
	IncrementClicks(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteForOwner(ctx context.Context, id, ownerID uuid.UUID) (string, error)
}

const linkColumns = `id, original_url, short_code, owner_id, clicks, expires_at, created_at`

// LinkRepository handles database operations for links
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

func scanLink(row pgx.Row) (*model.Link, error) {
	var l model.Link
	err := row.Scan(&l.ID, &l.OriginalURL, &l.ShortCode, &l.OwnerID, &l.Clicks, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Create inserts a new link. The unique constraint on short_code is the
// source of truth for code ownership: a violation is returned as
// ErrCodeConflict so the caller can retry or report the alias as taken.
func (r *LinkRepository) Create(ctx context.Context, link *model.Link) error {
	ctx, span := startSpan(ctx, "INSERT", "links", attribute.String("short_code", link.ShortCode))
	defer span.End()

	query := `
		INSERT INTO links (original_url, short_code, owner_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, clicks, created_at
	`
	err := r.db.QueryRow(ctx, query,
		link.OriginalURL,
		link.ShortCode,
		link.OwnerID,
		link.ExpiresAt,
	).Scan(&link.ID, &link.Clicks, &link.CreatedAt)
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

// ExistsByCode reports whether a link already holds code
func (r *LinkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	ctx, span := startSpan(ctx, "SELECT", "links", attribute.String("short_code", code))
	defer span.End()

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`, code).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return exists, nil
}

// GetByCode retrieves a link by its short code
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	ctx, span := startSpan(ctx, "SELECT", "links", attribute.String("short_code", code))
	defer span.End()

	link, err := scanLink(r.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
	}
	return link, err
}

// GetByIDForOwner retrieves a link only when ownerID created it
func (r *LinkRepository) GetByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Link, error) {
	ctx, span := startSpan(ctx, "SELECT", "links", attribute.String("link_id", id.String()))
	defer span.End()

	link, err := scanLink(r.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
	}
	return link, err
}

// ListByOwner returns one page of the owner's links, newest first, and
// the number of links matching the filter across all pages.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, q model.ListQuery) ([]model.Link, int64, error) {
	ctx, span := startSpan(ctx, "SELECT", "links",
		attribute.String("owner_id", ownerID.String()),
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
	)
	defer span.End()

	where := `owner_id = $1`
	args := []any{ownerID}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		where += ` AND (original_url ILIKE $2 OR short_code ILIKE $2)`
	}

	var (
		links []model.Link
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
		query := fmt.Sprintf(`SELECT %s FROM links WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
			linkColumns, where, len(args)+1, len(args)+2)

		rows, err := r.db.Query(gctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			link, err := scanLink(rows)
			if err != nil {
				return err
			}
			links = append(links, *link)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx, `SELECT COUNT(*) FROM links WHERE `+where, args...).Scan(&total)
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	return links, total, nil
}

// IncrementClicks atomically adds one click and returns the new count
func (r *LinkRepository) IncrementClicks(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, span := startSpan(ctx, "UPDATE", "links", attribute.String("link_id", id.String()))
	defer span.End()

	var clicks int64
	err := r.db.QueryRow(ctx,
		`UPDATE links SET clicks = clicks + 1 WHERE id = $1 RETURNING clicks`, id).Scan(&clicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		span.RecordError(err)
		return 0, err
	}
	return clicks, nil
}

// DeleteForOwner removes a link owned by ownerID and returns its short
// code so caches can be invalidated. Click events cascade.
func (r *LinkRepository) DeleteForOwner(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	ctx, span := startSpan(ctx, "DELETE", "links", attribute.String("link_id", id.String()))
	defer span.End()

	var code string
	err := r.db.QueryRow(ctx,
		`DELETE FROM links WHERE id = $1 AND owner_id = $2 RETURNING short_code`, id, ownerID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		span.RecordError(err)
		return "", err
	}
	return code, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ LinkStore = (*LinkRepository)(nil)
