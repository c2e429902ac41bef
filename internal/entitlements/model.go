package entitlements

import (
	"errors"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

var (
	// ErrFreeBundleUsed indicates the one-time free bundle was already claimed.
	ErrFreeBundleUsed = errors.New("free bundle already used")
	// ErrAllowanceExhausted indicates no subscription allowance remains this period.
	ErrAllowanceExhausted = errors.New("subscription allowance exhausted")
)

// DefaultPeriod is the subscription allowance window.
const DefaultPeriod = 30 * 24 * time.Hour

// Policy sets the allowance granted per period.
type Policy struct {
	AllowanceLimit int
	Period         time.Duration
}

func (p Policy) normalized() Policy {
	if p.AllowanceLimit < 0 {
		p.AllowanceLimit = 0
	}
	if p.Period <= 0 {
		p.Period = DefaultPeriod
	}
	return p
}

// Record is one user's entitlement state.
type Record struct {
	UserID         string     `json:"-"`
	FreeUsed       bool       `json:"freeUsed"`
	FreeUsedAt     *time.Time `json:"freeUsedAt,omitempty"`
	AllowanceLimit int        `json:"allowanceLimit"`
	AllowanceUsed  int        `json:"allowanceUsed"`
	PeriodStart    time.Time  `json:"periodStart"`
	PeriodEnd      time.Time  `json:"periodEnd"`
}

// AllowanceRemaining is never negative.
func (r Record) AllowanceRemaining() int {
	if left := r.AllowanceLimit - r.AllowanceUsed; left > 0 {
		return left
	}
	return 0
}

// Snapshot reports the two entitlements separately.
func (r Record) Snapshot() mockpdf.EligibilitySnapshot {
	return mockpdf.EligibilitySnapshot{
		IsFreeEligible:                 !r.FreeUsed,
		SubscriptionAllowanceRemaining: r.AllowanceRemaining(),
	}
}

// rollPeriod starts a new allowance window when the current one has ended.
func rollPeriod(r *Record, p Policy, now time.Time) bool {
	if r.PeriodStart.IsZero() {
		r.PeriodStart = now
		r.PeriodEnd = now.Add(p.Period)
		return true
	}
	r.PeriodEnd = r.PeriodStart.Add(p.Period)
	if now.Before(r.PeriodEnd) {
		return false
	}
	r.AllowanceUsed = 0
	r.PeriodStart = now
	r.PeriodEnd = now.Add(p.Period)
	return true
}
