package calendar

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/lexadvise/consult-bookings/internal/availability"
	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/pkg/config"
)

// GoogleProvider talks to Google Calendar with a service-account JWT.
// The private key arrives base64-encoded in the environment.
type GoogleProvider struct {
	calendarID string
	jwtConfig  *jwt.Config
}

func NewGoogleProvider(cfg config.CalendarConfig) *GoogleProvider {
	p := &GoogleProvider{calendarID: cfg.CalendarID}

	if cfg.ServiceAccountEmail == "" || cfg.PrivateKeyBase64 == "" || cfg.CalendarID == "" {
		return p
	}

	key, err := base64.StdEncoding.DecodeString(cfg.PrivateKeyBase64)
	if err != nil {
		return p
	}

	p.jwtConfig = &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: key,
		Scopes:     []string{gcal.CalendarScope},
		TokenURL:   google.JWTTokenURL,
	}
	return p
}

func (p *GoogleProvider) Configured() bool {
	return p.jwtConfig != nil
}

func (p *GoogleProvider) service(ctx context.Context) (*gcal.Service, error) {
	if !p.Configured() {
		return nil, domain.ErrUpstreamUnavailable
	}
	return gcal.NewService(ctx, option.WithHTTPClient(p.jwtConfig.Client(ctx)))
}

func (p *GoogleProvider) BusyPeriods(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: p.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[p.calendarID]
	if !ok {
		return nil, nil
	}

	var busy []availability.Interval
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		busy = append(busy, availability.Interval{Start: start, End: end})
	}
	return busy, nil
}

func (p *GoogleProvider) InsertEvent(ctx context.Context, ev EventInput) (string, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return "", err
	}

	event := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.StartTime.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.EndTime.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := svc.Events.Insert(p.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}
