package domain

import (
	"context"
	"time"

	"hotelbooking/internal/models"
)

type AvailabilityChecker interface {
	// IsAvailable fails closed: a store error reports the room as taken.
	IsAvailable(ctx context.Context, hotelID, roomNumber, checkIn, checkOut, excludeID string) bool
	Conflicts(ctx context.Context, hotelID, roomNumber, checkIn, checkOut, excludeID string) ([]models.Reservation, error)
}

type ReservationWriter interface {
	Create(ctx context.Context, caller, hotelID string, draft models.ReservationDraft) (*models.Reservation, error)
	Update(ctx context.Context, caller, hotelID, reservationID string, patch models.ReservationPatch) (*models.Reservation, error)
	SoftDelete(ctx context.Context, caller, hotelID, reservationID string) (*models.Reservation, error)
}

type QueryService interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	ListRooms(ctx context.Context, hotelID string) ([]models.Room, error)
	ListReservations(ctx context.Context, hotelID, startDate, endDate string) ([]models.Reservation, error)
	ListDeletedReservations(ctx context.Context, hotelID, from, to string) ([]models.Reservation, error)
	GetReservation(ctx context.Context, hotelID, reservationID string) (*models.Reservation, error)
	CheckInReport(ctx context.Context, hotelID, date string) ([]models.Reservation, error)
	CheckOutReport(ctx context.Context, hotelID, date string) ([]models.Reservation, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReferenceCache holds serialized reference listings.
type ReferenceCache interface {
	// Get decodes a cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, keys ...string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Identity is a verified caller.
type Identity struct {
	Username string
	Subject  string
	Groups   []string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
