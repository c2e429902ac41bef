package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoSearchOrdersNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo(
		Design{ID: "b", Title: "Bold Tiger", CreatedAt: now},
		Design{ID: "a", Title: "Amber Tiger", CreatedAt: now},
		Design{ID: "c", Title: "Calm Lake", CreatedAt: now.Add(time.Hour)},
	)

	page, err := repo.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, idsOf(page.Items))
	assert.False(t, page.HasMore)
	assert.Equal(t, 1, page.Page)
}

func TestMemoryRepoSearchFiltersAndPages(t *testing.T) {
	repo := NewMemoryRepo(DemoDesigns(10)...)

	first, err := repo.Search(context.Background(), Query{CategoryID: "posters", PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"dsg-0002", "dsg-0006"}, idsOf(first.Items))
	assert.True(t, first.HasMore)

	second, err := repo.Search(context.Background(), Query{CategoryID: "posters", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"dsg-0010"}, idsOf(second.Items))
	assert.False(t, second.HasMore)

	past, err := repo.Search(context.Background(), Query{CategoryID: "posters", Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.False(t, past.HasMore)
}

func TestMemoryRepoSearchMatchesTitleCaseInsensitively(t *testing.T) {
	repo := NewMemoryRepo(
		Design{ID: "1", Title: "Retro Sunset"},
		Design{ID: "2", Title: "Ocean"},
	)
	page, err := repo.Search(context.Background(), Query{Text: "  SUNSET "})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, idsOf(page.Items))
}

func TestMemoryRepoGetManySkipsUnknown(t *testing.T) {
	repo := NewMemoryRepo(DemoDesigns(3)...)
	got, err := repo.GetMany(context.Background(), []string{"dsg-0001", "missing", "dsg-0003"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "dsg-0001")
	assert.Contains(t, got, "dsg-0003")
}

func TestMemoryRepoHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.Search(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryNormalizedClampsPageSize(t *testing.T) {
	q := Query{Page: -1, PageSize: 1000}.normalized()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
}

func idsOf(items []Design) []string {
	out := make([]string, 0, len(items))
	for _, d := range items {
		out = append(out, d.ID)
	}
	return out
}
