package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meetingviewer/internal/composio"
	"meetingviewer/internal/models"
)

const (
	// DisplayLimit caps each list returned to the caller.
	DisplayLimit = 5

	upcomingMaxResults = 10
	// the past window asks for more so sparse recent activity still fills the list
	pastMaxResults     = 50
	pastLookbackMonths = 6
)

// ErrUnauthenticated means the caller has no session that can reach a calendar.
var ErrUnauthenticated = errors.New("no connection found - please connect your Google Calendar")

// EventLister lists events of a connected calendar.
type EventLister interface {
	ListEvents(ctx context.Context, connectionID string, q composio.EventQuery) ([]composio.Event, error)
}

// WindowError reports a failed retrieval with the outcome of both windows.
type WindowError struct {
	Upcoming error
	Past     error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("fetch calendar events: upcoming=%s past=%s: %v",
		windowStatus(e.Upcoming), windowStatus(e.Past), multierr.Combine(e.Upcoming, e.Past))
}

func (e *WindowError) Unwrap() []error {
	return multierr.Errors(multierr.Combine(e.Upcoming, e.Past))
}

func windowStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *composio.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%d", apiErr.Status)
	}
	return "failed"
}

// Service retrieves the upcoming and recent-past windows of a calendar.
type Service struct {
	lister EventLister
	logger *zap.Logger
	now    func() time.Time
}

func NewService(lister EventLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lister: lister, logger: logger, now: time.Now}
}

// Fetch queries both windows concurrently. Either failing fails the whole call.
func (s *Service) Fetch(ctx context.Context, connectionID string) (models.Events, error) {
	if connectionID == "" {
		return models.Events{}, ErrUnauthenticated
	}
	now := s.now().UTC()

	var (
		upcoming, past       []composio.Event
		upcomingErr, pastErr error
		g                    errgroup.Group
	)
	g.Go(func() error {
		upcoming, upcomingErr = s.lister.ListEvents(ctx, connectionID, composio.EventQuery{
			TimeMin:      now,
			MaxResults:   upcomingMaxResults,
			SingleEvents: true,
			OrderBy:      "startTime",
		})
		return nil
	})
	g.Go(func() error {
		past, pastErr = s.lister.ListEvents(ctx, connectionID, composio.EventQuery{
			TimeMin:      now.AddDate(0, -pastLookbackMonths, 0),
			TimeMax:      now,
			MaxResults:   pastMaxResults,
			SingleEvents: true,
			OrderBy:      "startTime",
		})
		return nil
	})
	_ = g.Wait()

	if upcomingErr != nil || pastErr != nil {
		return models.Events{}, &WindowError{Upcoming: upcomingErr, Past: pastErr}
	}

	s.logger.Debug("calendar windows fetched",
		zap.String("connection_id", connectionID),
		zap.Int("upcoming", len(upcoming)),
		zap.Int("past", len(past)),
	)

	return models.Events{
		Upcoming: toMeetings(firstN(upcoming, DisplayLimit)),
		Past:     toMeetings(firstN(newestFirst(past), DisplayLimit)),
	}, nil
}

// newestFirst reverses the provider's ascending window. It must run before truncation.
func newestFirst(events []composio.Event) []composio.Event {
	out := make([]composio.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

func firstN(events []composio.Event, n int) []composio.Event {
	if len(events) > n {
		return events[:n]
	}
	return events
}
