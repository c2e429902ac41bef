package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Search pages active designs. One extra row is read to compute HasMore.
func (r *PGRepo) Search(ctx context.Context, q Query) (Page, error) {
	q = q.normalized()
	const query = `
SELECT id, title, category_id, preview_url, created_at
FROM catalog_designs
WHERE active
  AND ($1 = '' OR title ILIKE '%' || $1 || '%')
  AND ($2 = '' OR category_id = $2)
ORDER BY created_at DESC, id ASC
LIMIT $3 OFFSET $4`
	rows, err := r.DB.QueryContext(ctx, query, escapeLike(strings.TrimSpace(q.Text)), strings.TrimSpace(q.CategoryID), q.PageSize+1, q.offset())
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	items := make([]Design, 0, q.PageSize)
	for rows.Next() {
		var d Design
		if err := rows.Scan(&d.ID, &d.Title, &d.CategoryID, &d.MediaURL, &d.CreatedAt); err != nil {
			return Page{}, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	hasMore := len(items) > q.PageSize
	if hasMore {
		items = items[:q.PageSize]
	}
	return Page{Items: items, Page: q.Page, HasMore: hasMore}, nil
}

// GetMany loads the designs among ids that exist and are active.
func (r *PGRepo) GetMany(ctx context.Context, ids []string) (map[string]Design, error) {
	out := make(map[string]Design, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	const query = `
SELECT id, title, category_id, preview_url, created_at
FROM catalog_designs
WHERE active AND id IN (SELECT jsonb_array_elements_text($1::jsonb))`
	rows, err := r.DB.QueryContext(ctx, query, string(payload))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d Design
		if err := rows.Scan(&d.ID, &d.Title, &d.CategoryID, &d.MediaURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
