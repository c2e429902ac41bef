// Package mockpdf is the headless core of the Mock-PDF download workflow:
// eligibility, design selection, pricing, request orchestration and job tracking.
// It talks to the backend only through the collaborator interfaces in collaborators.go.
package mockpdf

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Strategy selects how the designs of a bundle are picked.
type Strategy string

const (
	// StrategyFirstN takes the first N designs of the filtered result set in display order.
	StrategyFirstN Strategy = "first_n"
	// StrategySpecific uses exactly N hand-picked designs.
	StrategySpecific Strategy = "specific"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyFirstN || s == StrategySpecific
}

// ParseStrategy accepts the wire form plus a few human spellings.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "first_n", "firstn", "first-n", "first":
		return StrategyFirstN, nil
	case "specific", "pick":
		return StrategySpecific, nil
	default:
		return "", &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", raw)}
	}
}

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.rank() > 0
}

func (s JobStatus) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether next is the single legal successor of s.
// Pending moves only to Processing; Processing moves only to a terminal status.
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Design is the catalog summary of a single design.
type Design struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CategoryID string `json:"categoryId,omitempty"`
	Price      int64  `json:"price"`
	MediaURL   string `json:"mediaUrl,omitempty"`
}

// Filter is the search tuple the candidate pool is fetched for.
type Filter struct {
	Query      string `json:"q,omitempty"`
	CategoryID string `json:"category,omitempty"`
}

// Normalize trims whitespace so equivalent filters compare equal.
func (f Filter) Normalize() Filter {
	return Filter{Query: strings.TrimSpace(f.Query), CategoryID: strings.TrimSpace(f.CategoryID)}
}

// CatalogQuery requests one page of the catalog. Pages are 1-based.
type CatalogQuery struct {
	Filter
	Page     int
	PageSize int
}

// CatalogPage is one page of catalog results.
type CatalogPage struct {
	Items   []Design `json:"items"`
	Page    int      `json:"page"`
	HasMore bool     `json:"hasMore"`
}

// EligibilitySnapshot holds the two independent free-bundle entitlements.
type EligibilitySnapshot struct {
	IsFreeEligible                 bool `json:"isFreeEligible"`
	SubscriptionAllowanceRemaining int  `json:"subscriptionAllowanceRemaining"`
}

// PriceTable is the server-supplied pricing for paid bundles. Prices are in minor units.
type PriceTable struct {
	Currency          string `json:"currency"`
	FirstNUnitPrice   int64  `json:"firstNUnitPrice"`
	SpecificUnitPrice int64  `json:"specificUnitPrice"`
	FreeTierSize      int    `json:"freeTierSize"`
	AllowedSizes      []int  `json:"allowedSizes"`
}

// UnitPrice returns the per-design price for strategy.
func (t PriceTable) UnitPrice(strategy Strategy) int64 {
	if strategy == StrategySpecific {
		return t.SpecificUnitPrice
	}
	return t.FirstNUnitPrice
}

// AllowsSize reports whether count is a purchasable bundle size.
func (t PriceTable) AllowsSize(count int) bool {
	return slices.Contains(t.AllowedSizes, count)
}

// Validate checks the invariants every price table must satisfy.
func (t PriceTable) Validate() error {
	switch {
	case t.FirstNUnitPrice <= 0:
		return fmt.Errorf("first_n unit price must be positive")
	case t.SpecificUnitPrice <= t.FirstNUnitPrice:
		return fmt.Errorf("specific unit price must exceed first_n unit price")
	case t.FreeTierSize <= 0:
		return fmt.Errorf("free tier size must be positive")
	case len(t.AllowedSizes) == 0:
		return fmt.Errorf("at least one allowed size is required")
	}
	for _, n := range t.AllowedSizes {
		if n <= 0 {
			return fmt.Errorf("allowed size %d must be positive", n)
		}
	}
	return nil
}

// BundleRequest is the payload submitted to the generation service.
type BundleRequest struct {
	Strategy                 Strategy `json:"strategy"`
	RequiredCount            int      `json:"requiredCount"`
	ProductIDs               []string `json:"productIds"`
	IsFree                   bool     `json:"isFree"`
	UseSubscriptionAllowance bool     `json:"useSubscriptionAllowance,omitempty"`
	CustomerName             string   `json:"customerName,omitempty"`
	CustomerContact          string   `json:"customerContact,omitempty"`
}

// CreatedJob is the generation service's answer to a BundleRequest.
type CreatedJob struct {
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	IsFree   bool      `json:"isFree"`
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency,omitempty"`
}

// Job is the observed state of a generation job.
type Job struct {
	ID          string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	ArtifactRef string     `json:"artifactRef,omitempty"`
	Error       string     `json:"error,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// PaymentOrder is a gateway order created for a paid job.
type PaymentOrder struct {
	OrderID        string `json:"orderId"`
	JobID          string `json:"jobId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Provider       string `json:"provider"`
	GatewayOrderID string `json:"gatewayOrderId,omitempty"`
	KeyID          string `json:"keyId,omitempty"`
	Status         string `json:"status,omitempty"`
}

// PaymentConfirmation is produced by the checkout widget after a successful payment.
type PaymentConfirmation struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}
