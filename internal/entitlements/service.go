package entitlements

import (
	"context"
	"fmt"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
)

// Service answers eligibility and pricing questions and consumes entitlements.
type Service struct {
	store  Store
	prices mockpdf.PriceTable
}

// NewService validates the price table and returns a Service over store.
func NewService(store Store, prices mockpdf.PriceTable) (*Service, error) {
	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("price table: %w", err)
	}
	prices.AllowedSizes = append([]int(nil), prices.AllowedSizes...)
	return &Service{store: store, prices: prices}, nil
}

// PriceTableFromConfig maps configuration onto a price table.
func PriceTableFromConfig(cfg config.MockPDFConfig) mockpdf.PriceTable {
	return mockpdf.PriceTable{
		Currency:          cfg.Currency,
		FirstNUnitPrice:   cfg.FirstNUnitPrice,
		SpecificUnitPrice: cfg.SpecificUnitPrice,
		FreeTierSize:      cfg.FreeTierSize,
		AllowedSizes:      append([]int(nil), cfg.AllowedSizes...),
	}
}

// PolicyFromConfig maps configuration onto an allowance policy.
func PolicyFromConfig(cfg config.MockPDFConfig) Policy {
	return Policy{AllowanceLimit: cfg.SubscriptionAllowance, Period: DefaultPeriod}
}

// Prices returns a copy of the price table.
func (s *Service) Prices() mockpdf.PriceTable {
	t := s.prices
	t.AllowedSizes = append([]int(nil), s.prices.AllowedSizes...)
	return t
}

// Get returns the user's current record.
func (s *Service) Get(ctx context.Context, userID string) (Record, error) {
	return s.store.Get(ctx, userID)
}

// Snapshot returns the user's eligibility.
func (s *Service) Snapshot(ctx context.Context, userID string) (mockpdf.EligibilitySnapshot, error) {
	r, err := s.store.Get(ctx, userID)
	if err != nil {
		return mockpdf.EligibilitySnapshot{}, err
	}
	return r.Snapshot(), nil
}

// ConsumeFree claims the one-time free bundle.
func (s *Service) ConsumeFree(ctx context.Context, userID string) (Record, error) {
	return s.store.ConsumeFree(ctx, userID)
}

// ConsumeAllowance uses one subscription allowance unit.
func (s *Service) ConsumeAllowance(ctx context.Context, userID string) (Record, error) {
	return s.store.ConsumeAllowance(ctx, userID)
}

// ReleaseFree returns the free bundle to a user whose request could not start.
func (s *Service) ReleaseFree(ctx context.Context, userID string) (Record, error) {
	return s.store.ReleaseFree(ctx, userID)
}

// ReleaseAllowance returns one allowance unit.
func (s *Service) ReleaseAllowance(ctx context.Context, userID string) (Record, error) {
	return s.store.ReleaseAllowance(ctx, userID)
}

// Reset clears the user's entitlements. Dev only.
func (s *Service) Reset(ctx context.Context, userID string) (Record, error) {
	return s.store.Reset(ctx, userID)
}
