package service

import (
	"context"
	"time"

	"github.com/lexadvise/consult-bookings/internal/availability"
	"github.com/lexadvise/consult-bookings/internal/calendar"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

// AvailabilityService resolves bookable slots for a date window.
type AvailabilityService interface {
	GetAvailableSlots(ctx context.Context, from, to time.Time) ([]availability.Slot, error)
}

type availabilityService struct {
	resolver *availability.Resolver
	provider calendar.Provider
}

func NewAvailabilityService(resolver *availability.Resolver, provider calendar.Provider) AvailabilityService {
	return &availabilityService{
		resolver: resolver,
		provider: provider,
	}
}

// GetAvailableSlots expands the working-hours policy over [from, to] and
// subtracts calendar busy periods. A missing or failing calendar provider
// degrades to policy-only slots rather than an error.
func (s *availabilityService) GetAvailableSlots(ctx context.Context, from, to time.Time) ([]availability.Slot, error) {
	var busy []availability.Interval

	if s.provider != nil && s.provider.Configured() {
		periods, err := s.provider.BusyPeriods(ctx, from, to)
		if err != nil {
			logger.WarnContext(ctx, "calendar busy lookup failed, serving policy-only slots", "error", err)
		} else {
			busy = periods
		}
	} else {
		logger.DebugContext(ctx, "calendar provider not configured, serving policy-only slots")
	}

	return s.resolver.Slots(from, to, busy), nil
}
