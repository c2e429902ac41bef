package mockpdf

import (
	"context"
	"fmt"
	"sync"
)

// Amount prices a bundle. It is zero exactly when a free entitlement applies:
// the one-time free bundle or an active allowance, FirstN strategy, and the free-tier count.
func Amount(strategy Strategy, count int, eligibleFree, usingAllowance bool, table PriceTable) int64 {
	if qualifiesFree(strategy, count, eligibleFree, usingAllowance, table) {
		return 0
	}
	return int64(count) * table.UnitPrice(strategy)
}

func qualifiesFree(strategy Strategy, count int, eligibleFree, usingAllowance bool, table PriceTable) bool {
	return (eligibleFree || usingAllowance) && strategy == StrategyFirstN && count == table.FreeTierSize
}

// Quote is a priced bundle configuration.
type Quote struct {
	Strategy      Strategy   `json:"strategy"`
	Count         int        `json:"count"`
	UnitPrice     int64      `json:"unitPrice"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	IsFree        bool       `json:"isFree"`
	UsesAllowance bool       `json:"usesAllowance"`
	Table         PriceTable `json:"-"`
}

// QuoteFor prices a configuration against a snapshot. The subscription allowance only
// applies when requested and remaining; the one-time free bundle takes precedence.
func QuoteFor(strategy Strategy, count int, snap EligibilitySnapshot, useAllowance bool, table PriceTable) Quote {
	usingAllowance := useAllowance && snap.SubscriptionAllowanceRemaining > 0
	free := qualifiesFree(strategy, count, snap.IsFreeEligible, usingAllowance, table)
	return Quote{
		Strategy:      strategy,
		Count:         count,
		UnitPrice:     table.UnitPrice(strategy),
		Amount:        Amount(strategy, count, snap.IsFreeEligible, usingAllowance, table),
		Currency:      table.Currency,
		IsFree:        free,
		UsesAllowance: free && !snap.IsFreeEligible,
		Table:         table,
	}
}

type quoteKey struct {
	strategy Strategy
	count    int
}

// Calculator prices bundles from the server's price table, re-fetching the table
// whenever the strategy or count differs from the previous quote.
type Calculator struct {
	source Entitlements

	mu    sync.Mutex
	table PriceTable
	last  quoteKey
	have  bool
}

// NewCalculator returns a Calculator reading tables from source.
func NewCalculator(source Entitlements) *Calculator {
	return &Calculator{source: source}
}

// Quote prices (strategy, count) for the given eligibility.
func (c *Calculator) Quote(ctx context.Context, strategy Strategy, count int, snap EligibilitySnapshot, useAllowance bool) (Quote, error) {
	if !strategy.Valid() {
		return Quote{}, &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	if count <= 0 {
		return Quote{}, &ValidationError{Field: "requiredCount", Reason: "must be positive"}
	}
	table, err := c.tableFor(ctx, quoteKey{strategy: strategy, count: count})
	if err != nil {
		return Quote{}, err
	}
	return QuoteFor(strategy, count, snap, useAllowance, table), nil
}

// Table returns the most recently fetched table, fetching one if none is held.
func (c *Calculator) Table(ctx context.Context) (PriceTable, error) {
	c.mu.Lock()
	if c.have {
		t := c.table
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()
	return c.tableFor(ctx, quoteKey{})
}

func (c *Calculator) tableFor(ctx context.Context, key quoteKey) (PriceTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.have && c.last == key {
		return c.table, nil
	}
	table, err := c.source.PriceTable(ctx)
	if err != nil {
		return PriceTable{}, fmt.Errorf("fetch price table: %w", err)
	}
	c.table = table
	c.last = key
	c.have = true
	return table, nil
}
