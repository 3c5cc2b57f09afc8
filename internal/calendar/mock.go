package calendar

import (
	"strconv"
	"time"

	"meetingviewer/internal/models"
)

type mockMeeting struct {
	title       string
	offset      time.Duration
	length      time.Duration
	attendees   []string
	description string
}

const day = 24 * time.Hour

var mockUpcoming = []mockMeeting{
	{"Product Roadmap Review", 2 * time.Hour, time.Hour,
		[]string{"Sarah Chen", "Michael Ross", "Emily Davis"},
		"Quarterly review of product roadmap and feature prioritization for Q1."},
	{"Engineering Standup", day, 30 * time.Minute,
		[]string{"Alex Kumar", "Lisa Park", "James Wilson", "Rachel Green"},
		"Daily standup to sync on sprint progress and blockers."},
	{"Client Presentation - Katalyst Demo", 2 * day, 90 * time.Minute,
		[]string{"John Smith", "Anna Lee", "David Brown", "Sophie Turner", "Mark Johnson"},
		""},
	{"Design System Workshop", 3 * day, 2 * time.Hour,
		[]string{"Emma Watson", "Tom Hardy"},
		"Workshop to align on design system components and tokens."},
	{"Investor Update Call", 5 * day, time.Hour,
		[]string{"Robert Williams", "Jessica Taylor"},
		"Monthly update call with Series A investors covering metrics and milestones."},
}

// newest first, like the live past window
var mockPast = []mockMeeting{
	{"Sprint Planning - Week 47", -2 * day, 90 * time.Minute,
		[]string{"Alex Kumar", "Lisa Park", "James Wilson", "Rachel Green", "Chris Evans"},
		"Sprint planning for calendar integration and AI features."},
	{"User Research Synthesis", -3 * day, time.Hour,
		[]string{"Emma Watson", "Sophie Turner", "Anna Lee"},
		"Review of user interviews and key insights for product improvements."},
	{"Security Audit Review", -5 * day, 2 * time.Hour,
		[]string{"Michael Ross", "David Brown", "Tom Hardy"},
		"Quarterly security audit findings and action items."},
	{"All-Hands Company Meeting", -7 * day, time.Hour,
		[]string{"Everyone"},
		"Monthly all-hands covering company updates, wins, and upcoming initiatives."},
	{"API Architecture Discussion", -10 * day, 90 * time.Minute,
		[]string{"Alex Kumar", "James Wilson", "Mark Johnson"},
		"Technical discussion on connector integration architecture and OAuth flow."},
}

// MockEvents returns sample meetings positioned around now.
func MockEvents(now time.Time) models.Events {
	now = now.UTC()
	return models.Events{
		Upcoming: buildMock(mockUpcoming, now, 1),
		Past:     buildMock(mockPast, now, len(mockUpcoming)+1),
	}
}

func buildMock(src []mockMeeting, now time.Time, firstID int) []models.Meeting {
	out := make([]models.Meeting, 0, len(src))
	for i, m := range src {
		start := now.Add(m.offset)
		attendees := make([]models.Attendee, 0, len(m.attendees))
		for _, name := range m.attendees {
			attendees = append(attendees, models.Attendee{DisplayName: name})
		}
		out = append(out, models.Meeting{
			ID:          strconv.Itoa(firstID + i),
			Title:       m.title,
			Start:       start.Format(time.RFC3339),
			End:         start.Add(m.length).Format(time.RFC3339),
			Attendees:   attendees,
			Description: m.description,
		})
	}
	return out
}
