package catalog

import "context"

// Repo reads the design catalog.
type Repo interface {
	Search(ctx context.Context, q Query) (Page, error)
	// GetMany returns the designs that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]Design, error)
}
