package mailer

import (
	"fmt"
	"strings"
	"time"
)

const icsTimeLayout = "20060102T150405Z"

// buildICS renders a minimal single-event iCalendar invite so mail
// clients offer an add-to-calendar action.
func buildICS(c Confirmation) string {
	var b strings.Builder
	write := func(line string) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:-//LexAdvise//Consult Bookings//EN")
	write("METHOD:PUBLISH")
	write("BEGIN:VEVENT")
	write("UID:" + c.BookingID + "@consult-bookings")
	write("DTSTAMP:" + time.Now().UTC().Format(icsTimeLayout))
	write("DTSTART:" + c.StartTime.UTC().Format(icsTimeLayout))
	write("DTEND:" + c.EndTime.UTC().Format(icsTimeLayout))
	write("SUMMARY:" + escapeICS(c.ConsultationName+" with "+c.ClientName))
	write(fmt.Sprintf("DESCRIPTION:Booking %s", escapeICS(c.BookingID)))
	write("END:VEVENT")
	write("END:VCALENDAR")
	return b.String()
}

func escapeICS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
