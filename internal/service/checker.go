package service

import (
	"context"

	"github.com/rs/zerolog"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/store"
)

// AvailabilityChecker looks for live reservations overlapping a stay. The
// overlap predicate is evaluated by the store over the room index.
type AvailabilityChecker struct {
	store    store.Store
	pageSize int
	logger   *zerolog.Logger
}

var _ domain.AvailabilityChecker = (*AvailabilityChecker)(nil)

func NewAvailabilityChecker(st store.Store, pageSize int, logger *zerolog.Logger) *AvailabilityChecker {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &AvailabilityChecker{
		store:    st,
		pageSize: pageSize,
		logger:   logger,
	}
}

// OverlapFilter matches live reservations of a hotel whose stay intersects
// [checkIn, checkOut). Stays that only touch at a boundary do not match.
func OverlapFilter(hotelID, checkIn, checkOut string) *store.Filter {
	return store.And(
		store.Eq(store.AttrEntityType, models.EntityReservation),
		store.Lt(records.AttrCheckInDate, checkOut),
		store.Gt(records.AttrCheckOutDate, checkIn),
		store.Eq(records.AttrHotelID, hotelID),
		store.NotTrue(records.AttrIsDeleted),
	)
}

// Conflicts returns the reservations blocking the stay, excluding excludeID.
func (c *AvailabilityChecker) Conflicts(ctx context.Context, hotelID, roomNumber, checkIn, checkOut, excludeID string) ([]models.Reservation, error) {
	partition := records.RoomPartition(roomNumber)
	items, err := store.QueryAll(ctx, c.store, store.Query{
		Index:      store.IndexGSI4,
		Partition:  partition,
		SortPrefix: records.PrefixReservation,
		Filter:     OverlapFilter(hotelID, checkIn, checkOut),
		Limit:      c.pageSize,
	})
	if err != nil {
		metrics.IncStoreError("query")
		c.logger.Error().Err(err).
			Str("op", "query").
			Str("index", store.IndexGSI4).
			Str("pk", partition).
			Str("hotel_id", hotelID).
			Msg("Availability query failed")
		return nil, &domain.StoreError{Op: "query", Key: partition, Err: err}
	}

	var conflicts []models.Reservation
	for _, item := range items {
		res := records.ReservationFromRecord(item)
		if excludeID != "" && res.ID == excludeID {
			continue
		}
		conflicts = append(conflicts, res)
	}
	return conflicts, nil
}

// IsAvailable reports whether no live reservation overlaps the stay. Any
// store failure reports the room as unavailable.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, hotelID, roomNumber, checkIn, checkOut, excludeID string) bool {
	conflicts, err := c.Conflicts(ctx, hotelID, roomNumber, checkIn, checkOut, excludeID)
	if err != nil {
		metrics.IncAvailability("error")
		return false
	}
	if len(conflicts) > 0 {
		metrics.IncAvailability("taken")
		c.logger.Debug().
			Str("hotel_id", hotelID).
			Str("room", roomNumber).
			Str("check_in", checkIn).
			Str("check_out", checkOut).
			Str("blocking_id", conflicts[0].ID).
			Msg("Room is taken")
		return false
	}
	metrics.IncAvailability("available")
	return true
}
