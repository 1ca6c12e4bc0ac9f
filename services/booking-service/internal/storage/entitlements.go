package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const (
	TierFree = "free"
	TierPro  = "pro"
)

func (r *Repository) UpsertEntitlement(ctx context.Context, professionalID, tier string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO professional_entitlements (professional_id, tier)
		VALUES ($1, $2)
		ON CONFLICT (professional_id)
		DO UPDATE SET tier = EXCLUDED.tier, updated_at = now()
	`, professionalID, tier)
	return err
}

// GetEntitlement returns TierFree when the professional has no row.
func (r *Repository) GetEntitlement(ctx context.Context, professionalID string) (string, error) {
	var tier string
	err := r.q.QueryRow(ctx, `
		SELECT tier FROM professional_entitlements WHERE professional_id = $1
	`, professionalID).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}
