package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/store"
)

// Cache keys of reference listings.
const (
	CacheKeyCompanies = "companies"
	CacheKeyLocations = "locations"
	cacheKeyRoomsPfx  = "rooms:"
)

func CacheKeyRooms(hotelID string) string {
	return cacheKeyRoomsPfx + hotelID
}

// QueryService serves the read paths. Reference listings go through the
// optional cache; reservations are always read from the store.
type QueryService struct {
	store    store.Store
	cache    domain.ReferenceCache
	pageSize int
	logger   *zerolog.Logger
}

var _ domain.QueryService = (*QueryService)(nil)

func NewQueryService(st store.Store, cache domain.ReferenceCache, pageSize int, logger *zerolog.Logger) *QueryService {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &QueryService{
		store:    st,
		cache:    cache,
		pageSize: pageSize,
		logger:   logger,
	}
}

func (s *QueryService) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if s.cached(ctx, CacheKeyCompanies, &companies) {
		return companies, nil
	}

	items, err := s.scan(ctx, store.Eq(store.AttrEntityType, models.EntityCompany))
	if err != nil {
		return nil, err
	}
	companies = make([]models.Company, 0, len(items))
	for _, item := range items {
		companies = append(companies, records.CompanyFromRecord(item))
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })

	s.remember(ctx, CacheKeyCompanies, companies)
	return companies, nil
}

func (s *QueryService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	pk, sk := records.CompanyKey(id)
	rec, err := s.get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	c := records.CompanyFromRecord(rec)
	return &c, nil
}

// ListLocations orders hotels by SortOrder, then id.
func (s *QueryService) ListLocations(ctx context.Context) ([]models.Location, error) {
	var locations []models.Location
	if s.cached(ctx, CacheKeyLocations, &locations) {
		return locations, nil
	}

	items, err := s.scan(ctx, store.Eq(store.AttrEntityType, models.EntityLocation))
	if err != nil {
		return nil, err
	}
	locations = make([]models.Location, 0, len(items))
	for _, item := range items {
		locations = append(locations, records.LocationFromRecord(item))
	}
	sort.SliceStable(locations, func(i, j int) bool {
		if locations[i].SortOrder != locations[j].SortOrder {
			return locations[i].SortOrder < locations[j].SortOrder
		}
		return locations[i].ID < locations[j].ID
	})

	s.remember(ctx, CacheKeyLocations, locations)
	return locations, nil
}

func (s *QueryService) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	pk, sk := records.LocationKey(id)
	rec, err := s.get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	l := records.LocationFromRecord(rec)
	return &l, nil
}

// ListRooms returns the rooms of a hotel ordered by room number value.
func (s *QueryService) ListRooms(ctx context.Context, hotelID string) ([]models.Room, error) {
	key := CacheKeyRooms(hotelID)
	var rooms []models.Room
	if s.cached(ctx, key, &rooms) {
		return rooms, nil
	}

	partition := records.LocationPartition(hotelID)
	items, err := store.QueryAll(ctx, s.store, store.Query{
		Index:      store.IndexGSI2,
		Partition:  partition,
		SortPrefix: records.PrefixRoom,
		Filter:     store.Eq(store.AttrEntityType, models.EntityRoom),
		Limit:      s.pageSize,
	})
	if err != nil {
		return nil, s.storeError("query", partition, err)
	}

	rooms = make([]models.Room, 0, len(items))
	for _, item := range items {
		rooms = append(rooms, records.RoomFromRecord(item))
	}
	sort.SliceStable(rooms, func(i, j int) bool { return RoomNumberLess(rooms[i].Number, rooms[j].Number) })

	s.remember(ctx, key, rooms)
	return rooms, nil
}

// RoomNumberLess orders room numbers by their leading numeric value ("9"
// before "10"). Numbers without digits sort after numeric ones, lexically.
func RoomNumberLess(a, b string) bool {
	na, okA := leadingNumber(a)
	nb, okB := leadingNumber(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	}
	return a < b
}

func leadingNumber(s string) (int64, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	return n, err == nil
}

// ReservationWindowFilter is the listing predicate: a reservation of the
// hotel is shown when its check-in or its check-out date falls within
// [start, end], both ends inclusive.
func ReservationWindowFilter(hotelID, start, end string) *store.Filter {
	return store.And(
		store.Eq(store.AttrEntityType, models.EntityReservation),
		store.Eq(records.AttrHotelID, hotelID),
		store.NotTrue(records.AttrIsDeleted),
		store.Or(
			store.Between(records.AttrCheckInDate, start, end),
			store.Between(records.AttrCheckOutDate, start, end),
		),
	)
}

func (s *QueryService) ListReservations(ctx context.Context, hotelID, startDate, endDate string) ([]models.Reservation, error) {
	if err := validateWindow(hotelID, startDate, endDate); err != nil {
		return nil, err
	}
	items, err := s.scan(ctx, ReservationWindowFilter(hotelID, startDate, endDate))
	if err != nil {
		return nil, err
	}
	return s.withGuests(ctx, items)
}

// ListDeletedReservations returns soft-deleted reservations whose deletion
// time falls in [from, to]. Plain dates cover whole days.
func (s *QueryService) ListDeletedReservations(ctx context.Context, hotelID, from, to string) ([]models.Reservation, error) {
	if err := required("hotel_id", hotelID); err != nil {
		return nil, err
	}
	lo, err := timestampBound(from, false)
	if err != nil {
		return nil, domain.NewValidationError("start_date", err.Error())
	}
	hi, err := timestampBound(to, true)
	if err != nil {
		return nil, domain.NewValidationError("end_date", err.Error())
	}
	if lo > hi {
		return nil, domain.NewValidationError("end_date", "must not be before start_date")
	}

	items, err := s.scan(ctx, store.And(
		store.Eq(store.AttrEntityType, models.EntityReservation),
		store.Eq(records.AttrHotelID, hotelID),
		store.Eq(records.AttrIsDeleted, true),
		store.Between(records.AttrDeletedOn, lo, hi),
	))
	if err != nil {
		return nil, err
	}
	list, err := s.withGuests(ctx, items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].DeletedOn != nil && list[j].DeletedOn != nil && list[i].DeletedOn.After(*list[j].DeletedOn)
	})
	return list, nil
}

// timestampBound turns a date or timestamp into a storage timestamp. Dates
// expand to the start of the day, or its end when upper is set.
func timestampBound(value string, upper bool) (string, error) {
	if d, err := models.ParseDate(value); err == nil {
		if upper {
			return models.FormatTimestamp(d.Add(24*time.Hour - time.Microsecond)), nil
		}
		return models.FormatTimestamp(d), nil
	}
	t, err := models.ParseTimestamp(value)
	if err != nil {
		return "", err
	}
	return models.FormatTimestamp(t), nil
}

// GetReservation returns a reservation of the hotel, including soft-deleted ones.
func (s *QueryService) GetReservation(ctx context.Context, hotelID, reservationID string) (*models.Reservation, error) {
	pk, sk := records.ReservationKey(reservationID)
	rec, err := s.get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	res := records.ReservationFromRecord(rec)
	if res.HotelID != hotelID {
		return nil, domain.ErrNotFound
	}
	guests, err := loadGuests(ctx, s.store, res.ID, s.pageSize)
	if err != nil {
		return nil, s.storeError("query", pk, err)
	}
	res.Guests = guests
	return &res, nil
}

// CheckInReport lists live reservations arriving on date, via the date index.
func (s *QueryService) CheckInReport(ctx context.Context, hotelID, date string) ([]models.Reservation, error) {
	if err := validateDay(hotelID, date); err != nil {
		return nil, err
	}
	partition := records.DatePartition(date)
	items, err := store.QueryAll(ctx, s.store, store.Query{
		Index:      store.IndexGSI5,
		Partition:  partition,
		SortPrefix: records.PrefixReservation,
		Filter: store.And(
			store.Eq(records.AttrHotelID, hotelID),
			store.NotTrue(records.AttrIsDeleted),
		),
		Limit: s.pageSize,
	})
	if err != nil {
		return nil, s.storeError("query", partition, err)
	}
	return s.withGuests(ctx, items)
}

// CheckOutReport lists live reservations leaving on date.
func (s *QueryService) CheckOutReport(ctx context.Context, hotelID, date string) ([]models.Reservation, error) {
	if err := validateDay(hotelID, date); err != nil {
		return nil, err
	}
	items, err := s.scan(ctx, store.And(
		store.Eq(store.AttrEntityType, models.EntityReservation),
		store.Eq(records.AttrHotelID, hotelID),
		store.Eq(records.AttrCheckOutDate, date),
		store.NotTrue(records.AttrIsDeleted),
	))
	if err != nil {
		return nil, err
	}
	return s.withGuests(ctx, items)
}

// withGuests converts reservation records, attaches guests and orders the
// result by check-in, room and id.
func (s *QueryService) withGuests(ctx context.Context, items []store.Record) ([]models.Reservation, error) {
	list := make([]models.Reservation, 0, len(items))
	for _, item := range items {
		res := records.ReservationFromRecord(item)
		guests, err := loadGuests(ctx, s.store, res.ID, s.pageSize)
		if err != nil {
			return nil, s.storeError("query", item.PK(), err)
		}
		res.Guests = guests
		list = append(list, res)
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.CheckInDate != b.CheckInDate {
			return a.CheckInDate < b.CheckInDate
		}
		if a.RoomNumber != b.RoomNumber {
			return RoomNumberLess(a.RoomNumber, b.RoomNumber)
		}
		return a.ID < b.ID
	})
	return list, nil
}

func validateWindow(hotelID, start, end string) error {
	if err := required("hotel_id", hotelID); err != nil {
		return err
	}
	s, err := models.ParseDate(start)
	if err != nil {
		return domain.NewValidationError("start_date", err.Error())
	}
	e, err := models.ParseDate(end)
	if err != nil {
		return domain.NewValidationError("end_date", err.Error())
	}
	if e.Before(s) {
		return domain.NewValidationError("end_date", "must not be before start_date")
	}
	return nil
}

func validateDay(hotelID, date string) error {
	if err := required("hotel_id", hotelID); err != nil {
		return err
	}
	if _, err := models.ParseDate(date); err != nil {
		return domain.NewValidationError("date", err.Error())
	}
	return nil
}

func (s *QueryService) scan(ctx context.Context, filter *store.Filter) ([]store.Record, error) {
	items, err := store.ScanAll(ctx, s.store, store.ScanQuery{Filter: filter, Limit: s.pageSize})
	if err != nil {
		return nil, s.storeError("scan", filter.String(), err)
	}
	return items, nil
}

func (s *QueryService) get(ctx context.Context, pk, sk string) (store.Record, error) {
	rec, err := s.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.storeError("get", pk, err)
	}
	return rec, nil
}

func (s *QueryService) cached(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Reference cache read failed")
		return false
	}
	return ok
}

func (s *QueryService) remember(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Reference cache write failed")
	}
}

func (s *QueryService) storeError(op, key string, err error) error {
	metrics.IncStoreError(op)
	s.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("Store call failed")
	return &domain.StoreError{Op: op, Key: key, Err: err}
}
