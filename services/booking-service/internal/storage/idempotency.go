package storage

import "context"

type IdempotencyRecord struct {
	ProfessionalID string
	Key            string
	RequestHash    string
	AppointmentID  string
}

// LockIdempotencyKey inserts the key if absent and locks its row for the rest of
// the transaction. existed is true when a previous request already stored it.
func (r *Repository) LockIdempotencyKey(ctx context.Context, professionalID, key, requestHash string) (rec IdempotencyRecord, existed bool, err error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (professional_id, idem_key, request_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (professional_id, idem_key) DO NOTHING
	`, professionalID, key, requestHash)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	existed = tag.RowsAffected() == 0

	err = r.q.QueryRow(ctx, `
		SELECT professional_id::text, idem_key, request_hash, COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE professional_id = $1 AND idem_key = $2
		FOR UPDATE
	`, professionalID, key).Scan(&rec.ProfessionalID, &rec.Key, &rec.RequestHash, &rec.AppointmentID)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, existed, nil
}

func (r *Repository) FinalizeIdempotency(ctx context.Context, professionalID, key, appointmentID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3
		WHERE professional_id = $1 AND idem_key = $2
	`, professionalID, key, appointmentID)
	return err
}
