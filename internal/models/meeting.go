package models

// Attendee is a meeting participant as shown to the user.
type Attendee struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Meeting is the display model derived from a provider event.
// Start and End hold either an RFC 3339 instant or a date-only string for
// all-day events, exactly as the provider sent them.
type Meeting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Start       string     `json:"start,omitempty"`
	End         string     `json:"end,omitempty"`
	Attendees   []Attendee `json:"attendees"`
	Description string     `json:"description"`
	Location    string     `json:"location,omitempty"`
	MeetingLink string     `json:"meetingLink,omitempty"`
}

// Events is the payload of a retrieval.
type Events struct {
	Upcoming []Meeting `json:"upcoming"`
	Past     []Meeting `json:"past"`
}
