package outlook

import (
	"fmt"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

// graphDateTime is the layout Graph uses for event boundaries. The wire
// value carries up to seven fractional digits, which time.Parse accepts
// without them appearing in the layout.
const graphDateTime = "2006-01-02T15:04:05"

// calendarViewResponse is one page of GET /me/calendarView.
type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// graphEvent is the subset of a Graph event resource the engine consumes.
type graphEvent struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	BodyPreview string         `json:"bodyPreview"`
	IsAllDay    bool           `json:"isAllDay"`
	IsCancelled bool           `json:"isCancelled"`
	Start       *graphBoundary `json:"start"`
	End         *graphBoundary `json:"end"`
}

// graphBoundary is Graph's {dateTime, timeZone} pair. The Prefer header
// pins timeZone to UTC on every request.
type graphBoundary struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// toRemoteEvent transcribes one Graph event into the provider-neutral shape.
// Graph has no date-only boundary; an all-day event arrives as midnight
// timestamps with isAllDay set, which is mapped to the date-only fields so
// the reconciler's derivation rules apply uniformly across providers.
func (g graphEvent) toRemoteEvent() (model.RemoteEvent, error) {
	ev := model.RemoteEvent{
		ExternalID:  g.ID,
		Title:       g.Subject,
		Description: g.BodyPreview,
		Cancelled:   g.IsCancelled,
	}

	start, err := g.Start.parse()
	if err != nil {
		return model.RemoteEvent{}, fmt.Errorf("event %s start: %w", g.ID, err)
	}
	end, err := g.End.parse()
	if err != nil {
		return model.RemoteEvent{}, fmt.Errorf("event %s end: %w", g.ID, err)
	}

	if g.IsAllDay {
		ev.StartsOn = start
		ev.EndsOn = end
	} else {
		ev.StartsAt = start
		ev.EndsAt = end
	}

	return ev, nil
}

func (b *graphBoundary) parse() (*time.Time, error) {
	if b == nil || b.DateTime == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(graphDateTime, b.DateTime, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing dateTime %q: %w", b.DateTime, err)
	}
	return &t, nil
}
