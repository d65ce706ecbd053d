package costs

import (
	"context"
	"database/sql"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed override store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) All(ctx context.Context) (map[string]float64, error) {
	const query = `SELECT license_type, monthly_cost FROM license_costs`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var tier string
		var cost float64
		if err := rows.Scan(&tier, &cost); err != nil {
			return nil, err
		}
		out[tier] = cost
	}
	return out, rows.Err()
}

func (s *pgStore) Set(ctx context.Context, licenseType string, monthlyCost float64) error {
	const query = `
INSERT INTO license_costs (license_type, monthly_cost, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (license_type) DO UPDATE SET
  monthly_cost = EXCLUDED.monthly_cost,
  updated_at = now()`
	_, err := s.DB.ExecContext(ctx, query, licenseType, monthlyCost)
	return err
}
