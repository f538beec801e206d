package google

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/decklabs/decksync/internal/model"
)

// dateOnly is the layout Google uses for all-day event boundaries.
const dateOnly = "2006-01-02"

// toRemoteEvent transcribes one wire event into the provider-neutral shape.
// Google marks an all-day event by populating Date instead of DateTime; both
// variants are carried through so the reconciler can derive the all-day flag
// itself.
func toRemoteEvent(item *calendar.Event) (model.RemoteEvent, error) {
	ev := model.RemoteEvent{
		ExternalID:  item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Cancelled:   item.Status == "cancelled",
	}

	var err error
	if item.Start != nil {
		ev.StartsAt, ev.StartsOn, err = parseBoundary(item.Start)
		if err != nil {
			return model.RemoteEvent{}, fmt.Errorf("event %s start: %w", item.Id, err)
		}
	}
	if item.End != nil {
		ev.EndsAt, ev.EndsOn, err = parseBoundary(item.End)
		if err != nil {
			return model.RemoteEvent{}, fmt.Errorf("event %s end: %w", item.Id, err)
		}
	}

	return ev, nil
}

// parseBoundary splits an EventDateTime into its timed or date-only variant.
func parseBoundary(b *calendar.EventDateTime) (timed, dated *time.Time, err error) {
	if b.DateTime != "" {
		t, err := time.Parse(time.RFC3339, b.DateTime)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing dateTime %q: %w", b.DateTime, err)
		}
		t = t.UTC()
		return &t, nil, nil
	}
	if b.Date != "" {
		d, err := time.ParseInLocation(dateOnly, b.Date, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing date %q: %w", b.Date, err)
		}
		return nil, &d, nil
	}
	return nil, nil, nil
}
