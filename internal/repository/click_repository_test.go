package repository

import (
	"context"
	"testing"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickRepository_CreateAndList(t *testing.T) {
	links := NewLinkRepository(testDB.Pool)
	repo := NewClickRepository(testDB.Pool)
	ctx := context.Background()

	owner := seedOwner(t, ctx, "clicks@example.com")
	link := newLink(owner, "clk1234", "https://example.com")
	require.NoError(t, links.Create(ctx, link))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, device := range []string{"desktop", "mobile", "tablet"} {
		event := &model.ClickEvent{
			LinkID:    link.ID,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			IPAddress: "10.0.0.1",
			UserAgent: "test-agent",
			Device:    device,
			Browser:   "Chrome",
			OS:        "Linux",
		}
		require.NoError(t, repo.Create(ctx, event))
		assert.NotZero(t, event.ID)
	}

	events, err := repo.ListByLink(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "tablet", events[0].Device, "newest first")
	assert.Equal(t, "desktop", events[2].Device)
	assert.True(t, base.Equal(events[2].Timestamp))
	assert.Equal(t, "10.0.0.1", events[0].IPAddress)

	events, err = repo.ListByLink(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestClickRepository_Create_UnknownLink(t *testing.T) {
	repo := NewClickRepository(testDB.Pool)
	ctx := context.Background()
	testDB.Cleanup(ctx)

	err := repo.Create(ctx, &model.ClickEvent{LinkID: uuid.New(), Timestamp: time.Now(), Device: model.Unknown, Browser: model.Unknown, OS: model.Unknown})
	assert.Error(t, err, "foreign key rejects events for missing links")
}
