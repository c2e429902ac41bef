package bundles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

func TestMemoryRepoStatusIsMonotonic(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, Bundle{ID: "b1", UserID: "u", Status: mockpdf.StatusPending}))

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "b1", StatusUpdate{Status: mockpdf.StatusCompleted}), ErrInvalidTransition)
	require.NoError(t, repo.UpdateStatus(ctx, "b1", StatusUpdate{Status: mockpdf.StatusProcessing}))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "b1", StatusUpdate{Status: mockpdf.StatusPending}), ErrInvalidTransition)

	key := "k"
	require.NoError(t, repo.UpdateStatus(ctx, "b1", StatusUpdate{Status: mockpdf.StatusCompleted, DownloadKey: &key}))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "b1", StatusUpdate{Status: mockpdf.StatusFailed}), ErrInvalidTransition)

	got, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, mockpdf.StatusCompleted, got.Status)
	assert.Equal(t, "k", got.DownloadKey)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "nope", StatusUpdate{Status: mockpdf.StatusProcessing}), ErrNotFound)
}

func TestMemoryRepoMarkPaidOnce(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, Bundle{ID: "b1", UserID: "u", Status: mockpdf.StatusPending}))

	changed, err := repo.MarkPaid(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkPaid(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, Bundle{ID: "old", UserID: "u", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, Bundle{ID: "new", UserID: "u", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, Bundle{ID: "other", UserID: "v", CreatedAt: now}))

	list, err := repo.ListByUser(ctx, "u", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	list, err = repo.ListByUser(ctx, "u", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
