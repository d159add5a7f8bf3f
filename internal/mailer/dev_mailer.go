package mailer

import (
	"context"

	"github.com/lexadvise/consult-bookings/pkg/logger"
)

// DevService logs instead of sending. Used when no MailerSend key is
// configured or EMAIL_DEV_MODE is on.
type DevService struct{}

func NewDevService() *DevService {
	return &DevService{}
}

func (DevService) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	logger.InfoContext(ctx, "dev mailer: booking confirmation",
		"booking_id", c.BookingID,
		"to", c.ClientEmail,
		"consultation", c.ConsultationName,
		"start_time", c.StartTime,
	)
	return nil
}
