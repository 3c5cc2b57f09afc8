package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"meetingviewer/internal/models"
)

const productID = "-//meetingviewer//Meeting Viewer//EN"

// WriteICS renders both windows as one iCalendar feed. Meetings without a
// usable start are skipped.
func WriteICS(w io.Writer, events models.Events, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := now.UTC()
	for _, list := range [][]models.Meeting{events.Upcoming, events.Past} {
		for _, m := range list {
			event, ok := toICalEvent(m, stamp)
			if !ok {
				continue
			}
			cal.Children = append(cal.Children, event.Component)
		}
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toICalEvent(m models.Meeting, stamp time.Time) (*ical.Event, bool) {
	event := ical.NewEvent()
	if !setTime(event.Props, ical.PropDateTimeStart, m.Start) {
		return nil, false
	}
	setTime(event.Props, ical.PropDateTimeEnd, m.End)

	uid := m.ID
	if uid == "" {
		uid = fmt.Sprintf("%s-%s", m.Start, m.Title)
	}
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	event.Props.SetText(ical.PropSummary, m.Title)
	if m.Description != "" {
		event.Props.SetText(ical.PropDescription, m.Description)
	}
	if m.Location != "" {
		event.Props.SetText(ical.PropLocation, m.Location)
	}
	if m.MeetingLink != "" {
		link := ical.NewProp(ical.PropURL)
		link.SetValueType(ical.ValueURI)
		link.Value = m.MeetingLink
		event.Props.Add(link)
	}
	for _, a := range m.Attendees {
		if a.Email == "" {
			continue
		}
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + a.Email
		if a.DisplayName != "" {
			attendee.Params.Set(ical.ParamCommonName, a.DisplayName)
		}
		event.Props.Add(attendee)
	}
	return event, true
}

// setTime writes an RFC3339 instant as DATE-TIME and a bare date as VALUE=DATE.
func setTime(props ical.Props, name, value string) bool {
	if value == "" {
		return false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		props.SetDateTime(name, t.UTC())
		return true
	}
	if d, err := time.Parse(time.DateOnly, value); err == nil {
		props.SetDate(name, d)
		return true
	}
	return false
}
