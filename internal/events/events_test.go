package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hotelbooking/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	if err := bus.PublishJSON("test_event", map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	err := bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
	if err == nil {
		t.Errorf("expected handler error to be reported")
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(&Event{Type: "unknown"}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus must be a no-op, got %v", err)
	}
}

func TestPayloadFor(t *testing.T) {
	modified := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	res := &models.Reservation{
		ID:           "res1",
		HotelID:      "loc1",
		RoomNumber:   "101",
		CheckInDate:  "2024-01-15",
		CheckOutDate: "2024-01-18",
		Status:       models.StatusConfirmed,
		ModifiedOn:   modified,
	}

	event, err := NewJSONEvent(EventReservationCreated, PayloadFor(res, "alice"))
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.ReservationID != "res1" || decoded.ChangedBy != "alice" {
		t.Errorf("unexpected payload %+v", decoded)
	}
	if !decoded.ChangedAt.Equal(modified) {
		t.Errorf("expected changed_at %s, got %s", modified, decoded.ChangedAt)
	}
}
