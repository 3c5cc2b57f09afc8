package calendar

import (
	"strings"

	"meetingviewer/internal/composio"
	"meetingviewer/internal/models"
)

// DefaultTitle replaces an empty event summary.
const DefaultTitle = "No Title"

// ToMeeting maps a provider event into the display model.
func ToMeeting(e composio.Event) models.Meeting {
	m := models.Meeting{
		ID:          e.ID,
		Title:       e.Summary,
		Start:       eventTime(e.Start),
		End:         eventTime(e.End),
		Attendees:   make([]models.Attendee, 0, len(e.Attendees)),
		Description: e.Description,
		Location:    e.Location,
		MeetingLink: e.HangoutLink,
	}
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	for _, a := range e.Attendees {
		m.Attendees = append(m.Attendees, models.Attendee{
			DisplayName: attendeeName(a),
			Email:       a.Email,
		})
	}
	return m
}

// eventTime prefers the timed instant and falls back to the all-day date.
func eventTime(t *composio.EventTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func attendeeName(a composio.EventAttendee) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	local, _, _ := strings.Cut(a.Email, "@")
	return local
}

func toMeetings(events []composio.Event) []models.Meeting {
	out := make([]models.Meeting, 0, len(events))
	for _, e := range events {
		out = append(out, ToMeeting(e))
	}
	return out
}
