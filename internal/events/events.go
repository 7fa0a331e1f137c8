package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotelbooking/internal/models"
)

const (
	EventReservationCreated  = "reservation_created"
	EventReservationUpdated  = "reservation_updated"
	EventReservationDeleted  = "reservation_deleted"
	EventReservationConflict = "reservation_conflict"
)

// ReservationEventPayload is the reservation snapshot sent to subscribers.
type ReservationEventPayload struct {
	ReservationID string    `json:"reservation_id"`
	HotelID       string    `json:"hotel_id"`
	RoomNumber    string    `json:"room_number"`
	CheckInDate   string    `json:"check_in_date"`
	CheckOutDate  string    `json:"check_out_date"`
	Status        string    `json:"status"`
	ChangedBy     string    `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
	// PreviousRoom and PreviousCheckIn are set on updates that moved the stay.
	PreviousRoom    string `json:"previous_room,omitempty"`
	PreviousCheckIn string `json:"previous_check_in,omitempty"`
}

// PayloadFor builds the payload of a reservation event.
func PayloadFor(res *models.Reservation, changedBy string) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID: res.ID,
		HotelID:       res.HotelID,
		RoomNumber:    res.RoomNumber,
		CheckInDate:   res.CheckInDate,
		CheckOutDate:  res.CheckOutDate,
		Status:        res.Status,
		ChangedBy:     changedBy,
		ChangedAt:     res.ModifiedOn,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler of the event type synchronously and returns
// their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
