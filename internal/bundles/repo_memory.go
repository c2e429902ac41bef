package bundles

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps bundles in process.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Bundle
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Bundle)}
}

func (r *MemoryRepo) Create(ctx context.Context, b Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ProductIDs = append([]string(nil), b.ProductIDs...)
	r.data[b.ID] = b
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.data[id]
	if !ok {
		return Bundle{}, ErrNotFound
	}
	b.ProductIDs = append([]string(nil), b.ProductIDs...)
	return b, nil
}

func (r *MemoryRepo) GetForUser(ctx context.Context, userID, id string) (Bundle, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return Bundle{}, err
	}
	if b.UserID != userID {
		return Bundle{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var list []Bundle
	for _, b := range r.data {
		if b.UserID == userID {
			list = append(list, b)
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	if offset > len(list) {
		return []Bundle{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if !b.Status.CanAdvanceTo(upd.Status) {
		return ErrInvalidTransition
	}
	b.Status = upd.Status
	if upd.DownloadKey != nil {
		b.DownloadKey = *upd.DownloadKey
	}
	if upd.PageCount != nil {
		b.PageCount = *upd.PageCount
	}
	if upd.ErrorCode != nil {
		b.ErrorCode = *upd.ErrorCode
	}
	if upd.ErrorMessage != nil {
		b.ErrorMessage = *upd.ErrorMessage
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		b.CompletedAt = &t
	}
	b.UpdatedAt = time.Now().UTC()
	r.data[id] = b
	return nil
}

func (r *MemoryRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.data[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Paid {
		return false, nil
	}
	b.Paid = true
	b.UpdatedAt = time.Now().UTC()
	r.data[id] = b
	return true, nil
}
