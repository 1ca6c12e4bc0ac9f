// Package quota enforces the free-tier monthly appointment ceiling.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
)

const FreeTierMonthlyLimit = 5

// IsOverMonthlyLimit is inclusive: reaching the limit blocks further bookings.
func IsOverMonthlyLimit(count int) bool {
	return count >= FreeTierMonthlyLimit
}

type Counter interface {
	CountScheduledSince(ctx context.Context, professionalID string, since calendar.Date) (int, error)
}

type Usage struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	OverLimit bool `json:"over_limit"`
}

type Guard struct {
	counter Counter
}

func NewGuard(counter Counter) *Guard {
	return &Guard{counter: counter}
}

// Check counts scheduled appointments dated on or after the first day of now's month.
// The count is fetched on every call.
func (g *Guard) Check(ctx context.Context, professionalID string, now time.Time) (Usage, error) {
	since := calendar.DateOf(now).FirstOfMonth()
	count, err := g.counter.CountScheduledSince(ctx, professionalID, since)
	if err != nil {
		return Usage{}, fmt.Errorf("count scheduled appointments: %w", err)
	}
	return Usage{Count: count, Limit: FreeTierMonthlyLimit, OverLimit: IsOverMonthlyLimit(count)}, nil
}
