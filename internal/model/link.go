package model

import (
	"time"

	"github.com/google/uuid"
)

// Link represents a shortened URL owned by a user
type Link struct {
	ID          uuid.UUID  `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	Clicks      int64      `json:"clicks"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsExpired reports whether the link's expiry is at or before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// CreateLinkRequest represents the request body for creating a short URL
type CreateLinkRequest struct {
	OriginalURL string     `json:"originalUrl" binding:"required"`
	CustomAlias string     `json:"customAlias,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// LinkResponse is the API view of a link
type LinkResponse struct {
	ID          string `json:"id"`
	OriginalURL string `json:"originalUrl"`
	ShortCode   string `json:"shortCode"`
	ShortURL    string `json:"shortUrl"`
	Clicks      int64  `json:"clicks"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// ListQuery selects one page of an owner's links
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// Offset returns the number of rows skipped before the page starts.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// LinkPage is the response for the ownership-scoped listing
type LinkPage struct {
	URLs        []LinkResponse `json:"urls"`
	Total       int64          `json:"total"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
