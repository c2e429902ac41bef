package mockpdf

import (
	"context"
	"fmt"
	"sync"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// DefaultPageSize is the catalog page size used when none is configured.
const DefaultPageSize = 24

// SelectionOptions configures a new SelectionEngine.
type SelectionOptions struct {
	Mode          Strategy
	RequiredCount int
	Filter        Filter
	PageSize      int
}

type pageFetch struct {
	done chan struct{}
	err  error
}

// SelectionEngine holds the candidate pool and chosen designs for one bundle.
//
// The pool is append-only for a given (filter, requiredCount) tuple. Every reset of the
// tuple bumps a generation counter; pages fetched under an older generation are dropped
// when they arrive. In Specific mode the chosen set is a subset of the pool, except
// after a filter change whose first page has not arrived yet; until then chosen ids
// missing from the pool are kept but do not count toward the bundle.
type SelectionEngine struct {
	catalog  Catalog
	pageSize int

	mu       sync.Mutex
	mode     Strategy
	required int
	filter   Filter
	gen      uint64
	pool     []Design
	index    map[string]int
	chosen   map[string]struct{}
	nextPage int
	hasMore  bool
	loading  *pageFetch
	// prune is set by SetFilter and cleared by the first page that arrives.
	prune bool
}

// NewSelectionEngine creates an engine with an empty pool. Call LoadMore or
// FillToRequired to fetch the first page.
func NewSelectionEngine(catalog Catalog, opts SelectionOptions) (*SelectionEngine, error) {
	if !opts.Mode.Valid() {
		return nil, &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", opts.Mode)}
	}
	if opts.RequiredCount <= 0 {
		return nil, &ValidationError{Field: "requiredCount", Reason: "must be positive"}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	e := &SelectionEngine{
		catalog:  catalog,
		pageSize: opts.PageSize,
		mode:     opts.Mode,
		required: opts.RequiredCount,
		filter:   opts.Filter.Normalize(),
		chosen:   map[string]struct{}{},
	}
	e.resetPoolLocked()
	return e, nil
}

func (e *SelectionEngine) resetPoolLocked() {
	e.gen++
	e.pool = nil
	e.index = map[string]int{}
	e.nextPage = 1
	e.hasMore = true
	e.loading = nil
}

// Mode returns the active strategy.
func (e *SelectionEngine) Mode() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// RequiredCount returns the exact number of designs the bundle needs.
func (e *SelectionEngine) RequiredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.required
}

// Filter returns the active filter.
func (e *SelectionEngine) Filter() Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// Pool returns a copy of the candidate pool in fetch order.
func (e *SelectionEngine) Pool() []Design {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Design(nil), e.pool...)
}

// HasMore reports whether further pages may exist for the current filter.
func (e *SelectionEngine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

// SetMode switches strategy. It always clears the chosen set.
func (e *SelectionEngine) SetMode(mode Strategy) error {
	if !mode.Valid() {
		return &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", mode)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	clear(e.chosen)
	return nil
}

// SetRequiredCount changes the bundle size. It clears the chosen set and resets the pool,
// so the next LoadMore starts again from page 1.
func (e *SelectionEngine) SetRequiredCount(n int) error {
	if n <= 0 {
		return &ValidationError{Field: "requiredCount", Reason: "must be positive"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.required = n
	clear(e.chosen)
	e.resetPoolLocked()
	e.prune = false
	return nil
}

// SetFilter replaces the filter and refetches page 1. Chosen designs missing
// from that page are dropped when it arrives. If the fetch fails the chosen set
// is left alone and pruning waits for the next successful LoadMore.
func (e *SelectionEngine) SetFilter(ctx context.Context, f Filter) error {
	e.mu.Lock()
	e.filter = f.Normalize()
	e.resetPoolLocked()
	e.prune = true
	e.mu.Unlock()

	return e.LoadMore(ctx)
}

// LoadMore fetches the next page, typically when the end of the rendered list becomes
// visible. Concurrent calls share one in-flight fetch. A page that arrives after the
// filter or count changed is discarded.
func (e *SelectionEngine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if f := e.loading; f != nil {
		e.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !e.hasMore {
		e.mu.Unlock()
		return nil
	}
	f := &pageFetch{done: make(chan struct{})}
	e.loading = f
	gen := e.gen
	q := CatalogQuery{Filter: e.filter, Page: e.nextPage, PageSize: e.pageSize}
	e.mu.Unlock()

	page, err := e.catalog.Search(ctx, q)

	e.mu.Lock()
	if e.loading == f {
		e.loading = nil
	}
	switch {
	case gen != e.gen:
		telemetry.Debug("mockpdf.stale_page_dropped", map[string]any{"page": q.Page, "query": q.Query, "category": q.CategoryID})
		err = nil
	case err != nil:
		err = fmt.Errorf("load catalog page %d: %w", q.Page, err)
	default:
		e.appendLocked(page)
	}
	e.mu.Unlock()

	f.err = err
	close(f.done)
	return err
}

func (e *SelectionEngine) appendLocked(page CatalogPage) {
	for _, d := range page.Items {
		if d.ID == "" {
			continue
		}
		if _, dup := e.index[d.ID]; dup {
			continue
		}
		e.index[d.ID] = len(e.pool)
		e.pool = append(e.pool, d)
	}
	if e.prune {
		e.prune = false
		for id := range e.chosen {
			if _, ok := e.index[id]; !ok {
				delete(e.chosen, id)
			}
		}
	}
	e.nextPage++
	e.hasMore = page.HasMore && len(page.Items) > 0
}

// FillToRequired loads pages until the pool holds RequiredCount designs or the
// catalog runs out.
func (e *SelectionEngine) FillToRequired(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		done := len(e.pool) >= e.required || !e.hasMore
		e.mu.Unlock()
		if done {
			return nil
		}
		if err := e.LoadMore(ctx); err != nil {
			return err
		}
	}
}

// Toggle selects or deselects id in Specific mode and returns whether it is now selected.
// Selecting beyond RequiredCount returns ErrLimitReached and leaves the set unchanged.
func (e *SelectionEngine) Toggle(id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != StrategySpecific {
		return false, ErrWrongMode
	}
	if _, ok := e.index[id]; !ok {
		return false, ErrUnknownDesign
	}
	if _, ok := e.chosen[id]; ok {
		delete(e.chosen, id)
		return false, nil
	}
	if len(e.chosen) >= e.required {
		return false, ErrLimitReached
	}
	e.chosen[id] = struct{}{}
	return true, nil
}

// IsSelected reports whether id is in the chosen set.
func (e *SelectionEngine) IsSelected(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.chosen[id]
	return ok
}

// ChosenCount returns how many designs are selected in Specific mode.
func (e *SelectionEngine) ChosenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chosen)
}

// Shortfall returns how many more designs are needed before submission is possible.
func (e *SelectionEngine) Shortfall() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shortfallLocked()
}

func (e *SelectionEngine) shortfallLocked() int {
	have := len(e.pool)
	if e.mode == StrategySpecific {
		have = 0
		for id := range e.chosen {
			if _, ok := e.index[id]; ok {
				have++
			}
		}
	}
	if have >= e.required {
		return 0
	}
	return e.required - have
}

// Ready reports whether ProductIDs would succeed.
func (e *SelectionEngine) Ready() bool {
	return e.Shortfall() == 0
}

// ProductIDs returns exactly RequiredCount ids in pool order, or a ValidationError
// naming the shortfall.
func (e *SelectionEngine) ProductIDs() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productIDsLocked()
}

func (e *SelectionEngine) productIDsLocked() ([]string, error) {
	if short := e.shortfallLocked(); short > 0 {
		noun := "designs"
		if short == 1 {
			noun = "design"
		}
		return nil, &ValidationError{Field: "productIds", Reason: fmt.Sprintf("need %d more %s", short, noun)}
	}

	ids := make([]string, 0, e.required)
	for _, d := range e.pool {
		if len(ids) == e.required {
			break
		}
		if e.mode == StrategySpecific {
			if _, ok := e.chosen[d.ID]; !ok {
				continue
			}
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Selection is the engine output consumed by the orchestrator.
type Selection struct {
	Strategy      Strategy
	RequiredCount int
	ProductIDs    []string
}

// Selection snapshots the current strategy, count and ids.
func (e *SelectionEngine) Selection() (Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.productIDsLocked()
	if err != nil {
		return Selection{}, err
	}
	return Selection{Strategy: e.mode, RequiredCount: e.required, ProductIDs: ids}, nil
}
