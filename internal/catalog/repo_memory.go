package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-process catalog used in dev and tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	designs map[string]Design
}

// NewMemoryRepo returns a catalog holding designs.
func NewMemoryRepo(designs ...Design) *MemoryRepo {
	r := &MemoryRepo{designs: make(map[string]Design, len(designs))}
	r.Add(designs...)
	return r
}

// Add inserts or replaces designs.
func (r *MemoryRepo) Add(designs ...Design) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range designs {
		r.designs[d.ID] = d
	}
}

// Search filters, orders and pages the catalog.
func (r *MemoryRepo) Search(ctx context.Context, q Query) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	q = q.normalized()
	text := strings.ToLower(strings.TrimSpace(q.Text))
	category := strings.TrimSpace(q.CategoryID)

	r.mu.RLock()
	matches := make([]Design, 0, len(r.designs))
	for _, d := range r.designs {
		if category != "" && d.CategoryID != category {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(d.Title), text) {
			continue
		}
		matches = append(matches, d)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	start := q.offset()
	if start > len(matches) {
		start = len(matches)
	}
	end := start + q.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return Page{Items: matches[start:end], Page: q.Page, HasMore: end < len(matches)}, nil
}

// GetMany returns the designs that exist among ids.
func (r *MemoryRepo) GetMany(ctx context.Context, ids []string) (map[string]Design, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Design, len(ids))
	for _, id := range ids {
		if d, ok := r.designs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

var demoCategories = []string{"tshirts", "posters", "mugs", "stickers"}

// DemoDesigns generates n designs spread across a few categories, newest first by index.
func DemoDesigns(n int) []Design {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Design, n)
	for i := 0; i < n; i++ {
		category := demoCategories[i%len(demoCategories)]
		out[i] = Design{
			ID:         fmt.Sprintf("dsg-%04d", i+1),
			Title:      fmt.Sprintf("%s design %d", strings.TrimSuffix(category, "s"), i+1),
			CategoryID: category,
			Price:      int64(19900 + (i%5)*5000),
			MediaURL:   fmt.Sprintf("https://cdn.example.com/designs/dsg-%04d.png", i+1),
			CreatedAt:  base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}
