package costs

import (
	"context"
	"fmt"
	"strings"

	"snaudit-backend/internal/engine"
)

type store interface {
	All(ctx context.Context) (map[string]float64, error)
	Set(ctx context.Context, licenseType string, monthlyCost float64) error
}

// Service resolves the effective license cost table: built-in defaults
// overlaid with persisted operator overrides.
type Service struct {
	store store
}

// NewService constructs a Service with in-memory override store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Effective returns defaults merged with overrides. Overrides win.
func (s *Service) Effective(ctx context.Context) (map[string]float64, error) {
	table := engine.DefaultCostTable()
	overrides, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	for tier, cost := range overrides {
		table[tier] = cost
	}
	return table, nil
}

// Overrides returns only the persisted entries.
func (s *Service) Overrides(ctx context.Context) (map[string]float64, error) {
	return s.store.All(ctx)
}

// SetOverride stores one tier's monthly cost.
func (s *Service) SetOverride(ctx context.Context, licenseType string, monthlyCost float64) error {
	tier := strings.ToLower(strings.TrimSpace(licenseType))
	if tier == "" {
		return fmt.Errorf("costs: license type is required")
	}
	if monthlyCost < 0 {
		return fmt.Errorf("costs: monthly cost must be >= 0")
	}
	return s.store.Set(ctx, tier, monthlyCost)
}
