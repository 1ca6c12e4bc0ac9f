package storage

import (
	"context"

	"github.com/agendly/agendly/services/booking-service/internal/model"
)

func (r *Repository) GetProfessionalBySlug(ctx context.Context, slug string) (model.Professional, error) {
	var p model.Professional
	err := r.q.QueryRow(ctx, `
		SELECT id::text, slug, name, timezone
		FROM professionals
		WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.Name, &p.Timezone)
	return p, notFound(err)
}
