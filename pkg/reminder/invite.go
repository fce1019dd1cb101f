package reminder

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// uidNamespace scopes reminder UIDs so the same reminder always gets the same UID
// and a resent invitation updates the existing calendar entry.
var uidNamespace = uuid.MustParse("6f1c2a52-8d0e-4f5b-9b7a-3c1e2d4f5a60")

// UID derives a stable identifier from the subject and start time.
func UID(r Reminder) string {
	key := r.Subject + "|" + r.Start.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@tickler"
}

// Invite renders the reminder as an iCalendar request.
func Invite(r Reminder, organizer, attendee string, alarm time.Duration, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId("-//tickler//calendar reminder//EN")

	event := cal.AddEvent(UID(r))
	event.SetDtStampTime(stamp)
	event.SetCreatedTime(stamp)
	event.SetModifiedAt(stamp)
	event.SetStartAt(r.Start)
	event.SetEndAt(r.End)
	event.SetSummary(r.Subject)
	event.SetLocation(r.Location)
	event.SetDescription(Description(r))
	event.SetOrganizer(organizer)
	event.AddAttendee(attendee,
		ics.CalendarUserTypeIndividual,
		ics.ParticipationStatusNeedsAction,
		ics.ParticipationRoleReqParticipant,
		ics.WithRSVP(true),
	)

	if alarm > 0 {
		a := event.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger(trigger(alarm))
	}

	return cal.Serialize()
}

// Description is the human readable text of the invitation.
func Description(r Reminder) string {
	var b strings.Builder
	if r.Body != "" {
		b.WriteString(r.Body)
		b.WriteString("\n\n")
	}
	b.WriteString("Where: ")
	b.WriteString(r.Location)
	if r.RawBody != "" {
		b.WriteString("\n\nOriginal message:\n")
		b.WriteString(r.RawBody)
	}
	return b.String()
}

// trigger writes a lead time as a negative ISO 8601 duration in whole minutes.
func trigger(before time.Duration) string {
	minutes := int(before / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("-PT%dM", minutes)
}
