package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"hazard-alerts/internal/events"
)

func TestGenerateEvents(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	list := generateEvents(rand.New(rand.NewSource(1)), 50, now)

	if len(list) != 50 {
		t.Fatalf("generateEvents() = %d events, want 50", len(list))
	}
	seen := make(map[string]bool)
	for _, e := range list {
		if seen[e.EventID] {
			t.Errorf("duplicate event id %s", e.EventID)
		}
		seen[e.EventID] = true

		if e.ExpirationTime.Before(now.Add(14*time.Minute)) || e.ExpirationTime.After(now.Add(3*time.Hour)) {
			t.Errorf("%s expiration %v outside window", e.EventID, e.ExpirationTime)
		}
		if !e.EndTime.Equal(e.ExpirationTime) {
			t.Errorf("%s end %v != expiration %v", e.EventID, e.EndTime, e.ExpirationTime)
		}
		if e.Status.EndedOrElapsed() {
			t.Errorf("%s generated with terminal status %s", e.EventID, e.Status)
		}
	}
}

func TestGenerateEvents_Deterministic(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	a := generateEvents(rand.New(rand.NewSource(7)), 10, now)
	b := generateEvents(rand.New(rand.NewSource(7)), 10, now)
	for i := range a {
		if a[i].HazardType() != b[i].HazardType() || !a[i].ExpirationTime.Equal(b[i].ExpirationTime) {
			t.Fatalf("event %d differs between runs with the same seed", i)
		}
	}
}

func TestNewBatch(t *testing.T) {
	list := generateEvents(rand.New(rand.NewSource(1)), 3, time.Now())
	batch := newBatch(list)

	if batch.SchemaVersion != events.SchemaVersion || len(batch.Notifications) != 3 {
		t.Fatalf("batch = %+v", batch)
	}
	ids := make(map[string]bool)
	for i, n := range batch.Notifications {
		if n.Kind != events.KindHazardEvent || n.Change != events.ChangeStore {
			t.Errorf("notification %d = %s/%s", i, n.Kind, n.Change)
		}
		if n.Event.EventID != list[i].EventID {
			t.Errorf("notification %d event = %s, want %s", i, n.Event.EventID, list[i].EventID)
		}
		ids[n.NotificationID] = true
	}
	if len(ids) != 3 {
		t.Errorf("notification ids not unique: %v", ids)
	}
}

func TestAnnounce_RequiresTopic(t *testing.T) {
	if err := announce(context.Background(), "localhost:9092", "", nil); err == nil {
		t.Error("announce() with empty topic error = nil")
	}
}
