package google

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestToRemoteEvent_Timed(t *testing.T) {
	item := &calendar.Event{
		Id:          "abc123",
		Summary:     "Standup",
		Description: "Daily check-in",
		Status:      "confirmed",
		Start:       &calendar.EventDateTime{DateTime: "2024-01-10T10:00:00+01:00"},
		End:         &calendar.EventDateTime{DateTime: "2024-01-10T10:30:00+01:00"},
	}

	ev, err := toRemoteEvent(item)
	if err != nil {
		t.Fatalf("toRemoteEvent: %v", err)
	}

	if ev.ExternalID != "abc123" || ev.Title != "Standup" {
		t.Errorf("identity = %q/%q", ev.ExternalID, ev.Title)
	}
	if ev.Cancelled {
		t.Error("Cancelled = true for a confirmed event")
	}
	if ev.StartsAt == nil || ev.StartsOn != nil {
		t.Fatal("timed event did not populate StartsAt only")
	}
	wantStart := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	if !ev.StartsAt.Equal(wantStart) {
		t.Errorf("StartsAt = %v, want %v (normalized to UTC)", ev.StartsAt, wantStart)
	}
	if ev.EndsAt == nil || !ev.EndsAt.Equal(wantStart.Add(30*time.Minute)) {
		t.Errorf("EndsAt = %v, want 30m after start", ev.EndsAt)
	}
}

func TestToRemoteEvent_AllDay(t *testing.T) {
	item := &calendar.Event{
		Id:      "d1",
		Summary: "Company Holiday",
		Start:   &calendar.EventDateTime{Date: "2024-07-04"},
		End:     &calendar.EventDateTime{Date: "2024-07-05"},
	}

	ev, err := toRemoteEvent(item)
	if err != nil {
		t.Fatalf("toRemoteEvent: %v", err)
	}

	if ev.StartsAt != nil || ev.StartsOn == nil {
		t.Fatal("all-day event did not populate StartsOn only")
	}
	want := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	if !ev.StartsOn.Equal(want) {
		t.Errorf("StartsOn = %v, want %v", ev.StartsOn, want)
	}
	if ev.EndsOn == nil || !ev.EndsOn.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("EndsOn = %v, want next day", ev.EndsOn)
	}
}

func TestToRemoteEvent_Cancelled(t *testing.T) {
	item := &calendar.Event{Id: "gone", Status: "cancelled"}

	ev, err := toRemoteEvent(item)
	if err != nil {
		t.Fatalf("toRemoteEvent: %v", err)
	}
	if !ev.Cancelled {
		t.Error("Cancelled = false for a cancelled event")
	}
	// Cancelled events arrive stripped; no boundaries is fine.
	if ev.StartsAt != nil || ev.StartsOn != nil {
		t.Error("cancelled stub carried a start")
	}
}

func TestToRemoteEvent_MissingEnd(t *testing.T) {
	item := &calendar.Event{
		Id:    "open-ended",
		Start: &calendar.EventDateTime{DateTime: "2024-01-10T09:00:00Z"},
	}

	ev, err := toRemoteEvent(item)
	if err != nil {
		t.Fatalf("toRemoteEvent: %v", err)
	}
	if ev.StartsAt == nil {
		t.Fatal("StartsAt missing")
	}
	if ev.EndsAt != nil || ev.EndsOn != nil {
		t.Error("missing end boundary was invented")
	}
}

func TestToRemoteEvent_MalformedStart(t *testing.T) {
	item := &calendar.Event{
		Id:    "bad",
		Start: &calendar.EventDateTime{DateTime: "not-a-timestamp"},
	}

	if _, err := toRemoteEvent(item); err == nil {
		t.Error("malformed dateTime accepted, want error")
	}
}
