package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/lexadvise/consult-bookings/pkg/config"
)

type MailerSendService struct {
	client  *mailersend.Mailersend
	cfg     config.EmailConfig
	siteURL string
}

func NewMailerSendService(cfg config.EmailConfig, siteURL string) *MailerSendService {
	return &MailerSendService{
		client:  mailersend.NewMailersend(cfg.MailerSendKey),
		cfg:     cfg,
		siteURL: strings.TrimRight(siteURL, "/"),
	}
}

func (m *MailerSendService) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	loc, err := time.LoadLocation(c.ClientTimezone)
	if err != nil {
		loc = time.UTC
	}
	start := c.StartTime.In(loc)
	uploadURL := fmt.Sprintf("%s/bookings/%s/documents", m.siteURL, c.BookingID)

	subject := fmt.Sprintf("Consultation confirmed for %s", start.Format("Mon, 2 Jan 2006"))
	text := fmt.Sprintf(
		"Hi %s,\n\nYour %s is confirmed.\n\nWhen: %s (%s)\nBooking reference: %s\n\nYou can upload any relevant documents ahead of time: %s\n\nA calendar invite is attached.\n",
		c.ClientName, c.ConsultationName,
		start.Format("Monday, 2 January 2006 at 3:04 PM"), c.ClientTimezone,
		c.BookingID, uploadURL,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your <strong>%s</strong> is confirmed.</p><p><strong>When:</strong> %s (%s)<br/><strong>Booking reference:</strong> %s</p><p><a href="%s">Upload relevant documents</a> ahead of your consultation.</p><p>A calendar invite is attached.</p>`,
		c.ClientName, c.ConsultationName,
		start.Format("Monday, 2 January 2006 at 3:04 PM"), c.ClientTimezone,
		c.BookingID, uploadURL,
	)

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.cfg.FromName, Email: m.cfg.FromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: c.ClientName, Email: c.ClientEmail}})
	message.SetSubject(subject)
	message.SetText(text)
	message.SetHTML(html)
	message.AddAttachment(mailersend.Attachment{
		Filename: "consultation.ics",
		Content:  base64.StdEncoding.EncodeToString([]byte(buildICS(c))),
	})

	if _, err := m.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("sending confirmation email: %w", err)
	}
	return nil
}
