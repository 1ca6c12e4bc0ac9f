package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

func (s *Service) Templates(ctx context.Context, professionalID string) ([]model.ScheduleTemplate, error) {
	return s.store.ListTemplatesByProfessional(ctx, professionalID)
}

func (s *Service) CreateTemplate(ctx context.Context, t model.ScheduleTemplate) (model.ScheduleTemplate, error) {
	if t.DurationMinutes == 0 {
		t.DurationMinutes = model.DefaultSlotDuration
	}
	if err := t.Validate(); err != nil {
		return model.ScheduleTemplate{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	t.ID = uuid.NewString()
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return model.ScheduleTemplate{}, err
	}
	return t, nil
}

// UpdateTemplate only changes future availability. Existing appointments stay.
func (s *Service) UpdateTemplate(ctx context.Context, t model.ScheduleTemplate) (model.ScheduleTemplate, error) {
	if t.DurationMinutes == 0 {
		t.DurationMinutes = model.DefaultSlotDuration
	}
	if err := t.Validate(); err != nil {
		return model.ScheduleTemplate{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		if storage.IsNotFound(err) {
			return model.ScheduleTemplate{}, ErrTemplateNotFound
		}
		return model.ScheduleTemplate{}, err
	}
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, professionalID, id string) error {
	if err := s.store.DeleteTemplate(ctx, professionalID, id); err != nil {
		if storage.IsNotFound(err) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}
