package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetingviewer/internal/composio"
)

type fakeLister struct {
	mu       sync.Mutex
	upcoming []composio.Event
	past     []composio.Event
	upErr    error
	pastErr  error
	queries  []composio.EventQuery
}

func (f *fakeLister) ListEvents(_ context.Context, _ string, q composio.EventQuery) ([]composio.Event, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if q.TimeMax.IsZero() {
		return f.upcoming, f.upErr
	}
	return f.past, f.pastErr
}

func numbered(n int) []composio.Event {
	out := make([]composio.Event, 0, n)
	for i := 1; i <= n; i++ {
		start := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		out = append(out, composio.Event{
			ID:      fmt.Sprintf("e%d", i),
			Summary: fmt.Sprintf("Event %d", i),
			Start:   &composio.EventTime{DateTime: start.Format(time.RFC3339)},
		})
	}
	return out
}

func newTestService(lister EventLister, now time.Time) *Service {
	svc := NewService(lister, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestFetchQueriesBothWindows(t *testing.T) {
	now := time.Date(2025, 11, 21, 9, 0, 0, 0, time.UTC)
	lister := &fakeLister{}
	_, err := newTestService(lister, now).Fetch(context.Background(), "ca_1")
	require.NoError(t, err)
	require.Len(t, lister.queries, 2)

	var upcoming, past composio.EventQuery
	for _, q := range lister.queries {
		if q.TimeMax.IsZero() {
			upcoming = q
		} else {
			past = q
		}
	}
	assert.Equal(t, now, upcoming.TimeMin)
	assert.Equal(t, 10, upcoming.MaxResults)
	assert.True(t, upcoming.SingleEvents)
	assert.Equal(t, "startTime", upcoming.OrderBy)

	assert.Equal(t, time.Date(2025, 5, 21, 9, 0, 0, 0, time.UTC), past.TimeMin)
	assert.Equal(t, now, past.TimeMax)
	assert.Equal(t, 50, past.MaxResults)
	assert.True(t, past.SingleEvents)
	assert.Equal(t, "startTime", past.OrderBy)
}

func TestFetchTruncatesAndReversesPast(t *testing.T) {
	lister := &fakeLister{upcoming: numbered(8), past: numbered(9)}
	events, err := newTestService(lister, time.Now()).Fetch(context.Background(), "ca_1")
	require.NoError(t, err)

	var up, past []string
	for _, m := range events.Upcoming {
		up = append(up, m.ID)
	}
	for _, m := range events.Past {
		past = append(past, m.ID)
	}
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, up)
	// the most recent five, newest first
	assert.Equal(t, []string{"e9", "e8", "e7", "e6", "e5"}, past)

	for i := 1; i < len(events.Upcoming); i++ {
		assert.LessOrEqual(t, startOf(t, events.Upcoming[i-1].Start), startOf(t, events.Upcoming[i].Start))
	}
	for i := 1; i < len(events.Past); i++ {
		assert.GreaterOrEqual(t, startOf(t, events.Past[i-1].Start), startOf(t, events.Past[i].Start))
	}
}

func startOf(t *testing.T, value string) int64 {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts.Unix()
}

func TestFetchShortWindows(t *testing.T) {
	lister := &fakeLister{upcoming: numbered(2), past: nil}
	events, err := newTestService(lister, time.Now()).Fetch(context.Background(), "ca_1")
	require.NoError(t, err)
	assert.Len(t, events.Upcoming, 2)
	assert.NotNil(t, events.Past)
	assert.Empty(t, events.Past)
}

func TestFetchFailsWithoutPartialResults(t *testing.T) {
	lister := &fakeLister{
		upcoming: numbered(3),
		pastErr:  &composio.APIError{Op: "list events", Status: http.StatusBadGateway},
	}
	events, err := newTestService(lister, time.Now()).Fetch(context.Background(), "ca_1")
	require.Error(t, err)
	assert.Empty(t, events.Upcoming)
	assert.Empty(t, events.Past)

	var windowErr *WindowError
	require.True(t, errors.As(err, &windowErr))
	assert.NoError(t, windowErr.Upcoming)
	assert.Contains(t, err.Error(), "upcoming=ok")
	assert.Contains(t, err.Error(), "past=502")

	var apiErr *composio.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestFetchReportsBothFailures(t *testing.T) {
	lister := &fakeLister{upErr: context.DeadlineExceeded, pastErr: errors.New("boom")}
	_, err := newTestService(lister, time.Now()).Fetch(context.Background(), "ca_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "upcoming=failed")
	assert.Contains(t, err.Error(), "past=failed")
}

func TestFetchRequiresConnection(t *testing.T) {
	lister := &fakeLister{}
	_, err := newTestService(lister, time.Now()).Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, lister.queries)
}
