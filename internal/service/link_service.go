package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/analytics"
	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/observability"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidAlias        = errors.New("invalid custom alias")
	ErrAliasConflict       = errors.New("custom alias already in use")
	ErrAllocationExhausted = errors.New("failed to allocate a short code")
	ErrLinkNotFound        = errors.New("URL not found")
	ErrLinkExpired         = errors.New("URL has expired")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// ClickReader loads the recorded events of one link
type ClickReader interface {
	ListByLink(ctx context.Context, linkID uuid.UUID) ([]model.ClickEvent, error)
}

// ClickRecorder accepts click events without blocking the caller
type ClickRecorder interface {
	Record(event model.ClickEvent) bool
}

// LinkServiceInterface defines the contract for link operations
type LinkServiceInterface interface {
	CreateLink(ctx context.Context, ownerID uuid.UUID, req *model.CreateLinkRequest) (*model.LinkResponse, error)
	Redirect(ctx context.Context, code string, visit model.Visit) (string, error)
	ListLinks(ctx context.Context, ownerID uuid.UUID, q model.ListQuery) (*model.LinkPage, error)
	GetLink(ctx context.Context, ownerID, id uuid.UUID) (*model.LinkResponse, error)
	GetAnalytics(ctx context.Context, ownerID, id uuid.UUID) (*model.AnalyticsResponse, error)
	DeleteLink(ctx context.Context, ownerID, id uuid.UUID) error
}

// LinkOptions carries the tunables of LinkService
type LinkOptions struct {
	BaseURL          string
	ShortCodeRetries int
	MinAliasLen      int
	MaxAliasLen      int
	DefaultPageSize  int
	MaxPageSize      int
}

// LinkService handles business logic for links
type LinkService struct {
	links     repository.LinkStore
	clicks    ClickReader
	recorder  ClickRecorder
	generator CodeGenerator
	opts      LinkOptions
	logger    *slog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewLinkService(
	links repository.LinkStore,
	clicks ClickReader,
	recorder ClickRecorder,
	generator CodeGenerator,
	opts LinkOptions,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *LinkService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ShortCodeRetries < 1 {
		opts.ShortCodeRetries = 1
	}
	return &LinkService{
		links:     links,
		clicks:    clicks,
		recorder:  recorder,
		generator: generator,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateLink validates the request and stores a link under a custom alias
// or a freshly generated code. The store's unique constraint decides who
// owns a code; the alias pre-check only saves a round trip.
func (s *LinkService) CreateLink(ctx context.Context, ownerID uuid.UUID, req *model.CreateLinkRequest) (*model.LinkResponse, error) {
	target := strings.TrimSpace(req.OriginalURL)
	if err := ValidateURL(target); err != nil {
		return nil, err
	}

	link := &model.Link{
		OriginalURL: target,
		OwnerID:     ownerID,
		ExpiresAt:   req.ExpiresAt,
	}

	alias := strings.TrimSpace(req.CustomAlias)
	if req.CustomAlias != "" && alias == "" {
		return nil, fmt.Errorf("%w: alias must not be blank", ErrInvalidAlias)
	}
	if alias != "" {
		if err := s.createWithAlias(ctx, link, alias); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedCode(ctx, link); err != nil {
		return nil, err
	}

	s.metrics.LinkCreated(ctx, alias != "")
	s.logger.InfoContext(ctx, "link created", "link_id", link.ID, "short_code", link.ShortCode, "custom", alias != "")

	resp := s.toResponse(link)
	return &resp, nil
}

func (s *LinkService) createWithAlias(ctx context.Context, link *model.Link, alias string) error {
	if err := ValidateAlias(alias, s.opts.MinAliasLen, s.opts.MaxAliasLen); err != nil {
		return err
	}

	exists, err := s.links.ExistsByCode(ctx, alias)
	if err != nil {
		return storeError(err)
	}
	if exists {
		return ErrAliasConflict
	}

	link.ShortCode = alias
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeConflict) {
			return ErrAliasConflict
		}
		return storeError(err)
	}
	return nil
}

func (s *LinkService) createWithGeneratedCode(ctx context.Context, link *model.Link) error {
	for attempt := 1; attempt <= s.opts.ShortCodeRetries; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return err
		}

		link.ShortCode = code
		err = s.links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeConflict) {
			return storeError(err)
		}
		s.logger.WarnContext(ctx, "short code collision", "short_code", code, "attempt", attempt)
	}
	return ErrAllocationExhausted
}

// Redirect resolves code to its destination. An active link has its
// click counter incremented before returning and a click event queued
// without waiting on it. Expired links are not counted.
func (s *LinkService) Redirect(ctx context.Context, code string, visit model.Visit) (string, error) {
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Redirect(ctx, observability.OutcomeNotFound)
			return "", ErrLinkNotFound
		}
		s.metrics.Redirect(ctx, observability.OutcomeError)
		return "", storeError(err)
	}

	now := s.now()
	if link.IsExpired(now) {
		s.metrics.Redirect(ctx, observability.OutcomeExpired)
		return "", ErrLinkExpired
	}

	if _, err := s.links.IncrementClicks(ctx, link.ID); err != nil {
		// A cached link may have been deleted since it was cached
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Redirect(ctx, observability.OutcomeNotFound)
			return "", ErrLinkNotFound
		}
		s.metrics.Redirect(ctx, observability.OutcomeError)
		return "", storeError(err)
	}

	if s.recorder != nil {
		s.recorder.Record(model.ClickEvent{
			LinkID:    link.ID,
			Timestamp: now.UTC(),
			IPAddress: visit.IPAddress,
			UserAgent: visit.UserAgent,
		})
	}

	s.metrics.Redirect(ctx, observability.OutcomeResolved)
	return link.OriginalURL, nil
}

// ListLinks returns one page of the owner's links, newest first
func (s *LinkService) ListLinks(ctx context.Context, ownerID uuid.UUID, q model.ListQuery) (*model.LinkPage, error) {
	q = s.normalize(q)

	links, total, err := s.links.ListByOwner(ctx, ownerID, q)
	if err != nil {
		return nil, storeError(err)
	}

	page := &model.LinkPage{
		URLs:        make([]model.LinkResponse, 0, len(links)),
		Total:       total,
		CurrentPage: q.Page,
		TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
	}
	for i := range links {
		page.URLs = append(page.URLs, s.toResponse(&links[i]))
	}
	return page, nil
}

// GetLink returns a link owned by ownerID. Expired links stay visible.
func (s *LinkService) GetLink(ctx context.Context, ownerID, id uuid.UUID) (*model.LinkResponse, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(link)
	return &resp, nil
}

// GetAnalytics aggregates the click events of a link owned by ownerID
func (s *LinkService) GetAnalytics(ctx context.Context, ownerID, id uuid.UUID) (*model.AnalyticsResponse, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	events, err := s.clicks.ListByLink(ctx, link.ID)
	if err != nil {
		return nil, storeError(err)
	}

	return &model.AnalyticsResponse{
		URL:         s.toResponse(link),
		TotalClicks: link.Clicks,
		Stats:       analytics.Aggregate(events),
	}, nil
}

// DeleteLink removes a link owned by ownerID together with its events
func (s *LinkService) DeleteLink(ctx context.Context, ownerID, id uuid.UUID) error {
	code, err := s.links.DeleteForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return storeError(err)
	}
	s.logger.InfoContext(ctx, "link deleted", "link_id", id, "short_code", code)
	return nil
}

// ShortURL joins the public base URL and a code
func (s *LinkService) ShortURL(code string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + "/" + code
}

func (s *LinkService) ownedLink(ctx context.Context, ownerID, id uuid.UUID) (*model.Link, error) {
	link, err := s.links.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, storeError(err)
	}
	return link, nil
}

func (s *LinkService) normalize(q model.ListQuery) model.ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = s.opts.DefaultPageSize
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if s.opts.MaxPageSize > 0 && q.Limit > s.opts.MaxPageSize {
		q.Limit = s.opts.MaxPageSize
	}
	// keep (Page-1)*Limit a valid OFFSET
	if maxPage := math.MaxInt32/q.Limit + 1; q.Page > maxPage {
		q.Page = maxPage
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (s *LinkService) toResponse(link *model.Link) model.LinkResponse {
	resp := model.LinkResponse{
		ID:          link.ID.String(),
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		ShortURL:    s.ShortURL(link.ShortCode),
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt.UTC().Format(time.RFC3339),
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Ensure LinkService implements LinkServiceInterface at compile time
var _ LinkServiceInterface = (*LinkService)(nil)
