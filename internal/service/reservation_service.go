package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/store"
)

// ErrAlreadyExists is returned when a draft reuses an existing reservation id.
var ErrAlreadyExists = errors.New("reservation already exists")

type ReservationOptions struct {
	// SystemUser is recorded as the author when the caller is unknown.
	SystemUser string
	// GuardNights enables per-night claim records.
	GuardNights   bool
	MaxStayNights int
	// ClaimGrace is how long a claim without a matching reservation is
	// trusted before another writer may take it over.
	ClaimGrace time.Duration
	PageSize   int
}

// ReservationService creates, updates and soft-deletes reservations.
type ReservationService struct {
	store    store.Store
	checker  domain.AvailabilityChecker
	eventBus domain.EventPublisher
	opts     ReservationOptions
	logger   *zerolog.Logger
	now      func() time.Time
	newID    func() string
}

var _ domain.ReservationWriter = (*ReservationService)(nil)

func NewReservationService(
	st store.Store,
	checker domain.AvailabilityChecker,
	eventBus domain.EventPublisher,
	opts ReservationOptions,
	logger *zerolog.Logger,
) *ReservationService {
	if opts.SystemUser == "" {
		opts.SystemUser = models.DefaultSystemUser
	}
	if opts.GuardNights && opts.MaxStayNights <= 0 {
		opts.MaxStayNights = models.DefaultMaxStayNights
	}
	if opts.ClaimGrace <= 0 {
		opts.ClaimGrace = time.Minute
	}
	if opts.PageSize <= 0 {
		opts.PageSize = models.DefaultPageSize
	}
	return &ReservationService{
		store:    st,
		checker:  checker,
		eventBus: eventBus,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *ReservationService) caller(caller string) string {
	if c := strings.TrimSpace(caller); c != "" {
		return c
	}
	return s.opts.SystemUser
}

func (s *ReservationService) Create(ctx context.Context, caller, hotelID string, draft models.ReservationDraft) (*models.Reservation, error) {
	if err := validateDraft(hotelID, draft, s.opts.MaxStayNights); err != nil {
		metrics.IncReservation("create", "invalid")
		return nil, err
	}
	caller = s.caller(caller)

	if err := s.ensureAvailable(ctx, "create", hotelID, draft.RoomNumber, draft.CheckInDate, draft.CheckOutDate, "", caller); err != nil {
		return nil, err
	}

	id := draft.ID
	if id == "" {
		id = s.newID()
	}
	pk, sk := records.ReservationKey(id)
	if _, err := s.store.Get(ctx, pk, sk); err == nil {
		metrics.IncReservation("create", "conflict")
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, s.fail("create", s.storeError("get", pk, err))
	}

	now := s.now()
	guests := append([]models.Guest{}, draft.Guests...)
	res := models.Reservation{
		ID:              id,
		HotelID:         hotelID,
		RoomNumber:      draft.RoomNumber,
		CheckInDate:     draft.CheckInDate,
		CheckOutDate:    draft.CheckOutDate,
		Status:          draft.Status,
		ContactName:     draft.ContactName,
		ContactLastName: draft.ContactLastName,
		ContactPhone:    draft.ContactPhone,
		Notes:           draft.Notes,
		UserID:          caller,
		CreatedOn:       now,
		ModifiedOn:      now,
		ModifiedBy:      caller,
		IsDeleted:       false,
		GuestCount:      len(guests),
		Guests:          guests,
	}

	nights, err := models.Nights(res.CheckInDate, res.CheckOutDate)
	if err != nil {
		return nil, domain.NewValidationError("check_in_date", err.Error())
	}
	if s.opts.GuardNights {
		if _, err := s.claimNights(ctx, res, nights, nil); err != nil {
			if domain.IsConflict(err) {
				return nil, s.conflict("create", hotelID, res.RoomNumber, res.CheckInDate, res.CheckOutDate, caller)
			}
			return nil, s.fail("create", err)
		}
	}

	if err := s.store.PutIfAbsent(ctx, records.ReservationToRecord(res)); err != nil {
		if s.opts.GuardNights {
			s.releaseNights(ctx, hotelID, res.RoomNumber, nights, id)
		}
		if errors.Is(err, store.ErrConditionFailed) {
			metrics.IncReservation("create", "conflict")
			return nil, ErrAlreadyExists
		}
		return nil, s.fail("create", s.storeError("put", pk, err))
	}

	for i, g := range guests {
		guest := records.GuestToRecord(id, i+1, g)
		if err := s.store.Put(ctx, guest); err != nil {
			// the reservation stays; reconciliation reports the missing guests
			s.logger.Error().Err(err).
				Str("reservation_id", id).
				Int("written", i).
				Int("expected", len(guests)).
				Msg("Failed to write guest records")
			return nil, s.fail("create", s.storeError("put", guest.PK()+"/"+guest.SK(), err))
		}
	}

	metrics.IncReservation("create", "ok")
	s.logger.Info().
		Str("reservation_id", id).
		Str("hotel_id", hotelID).
		Str("room", res.RoomNumber).
		Str("check_in", res.CheckInDate).
		Str("check_out", res.CheckOutDate).
		Str("caller", caller).
		Msg("Reservation created")
	s.publishEvent(events.EventReservationCreated, events.PayloadFor(&res, caller))
	return &res, nil
}

func (s *ReservationService) Update(ctx context.Context, caller, hotelID, reservationID string, patch models.ReservationPatch) (*models.Reservation, error) {
	if err := validatePatch(patch); err != nil {
		metrics.IncReservation("update", "invalid")
		return nil, err
	}
	caller = s.caller(caller)

	current, err := s.load(ctx, hotelID, reservationID)
	if err != nil {
		return nil, s.fail("update", err)
	}

	effective := patch.Apply(*current)
	if patch.CheckInDate != nil || patch.CheckOutDate != nil {
		if err := validateStay(effective.CheckInDate, effective.CheckOutDate, s.opts.MaxStayNights); err != nil {
			metrics.IncReservation("update", "invalid")
			return nil, err
		}
	}

	moved := effective.RoomNumber != current.RoomNumber ||
		effective.CheckInDate != current.CheckInDate ||
		effective.CheckOutDate != current.CheckOutDate

	if patch.TouchesAvailability() {
		err := s.ensureAvailable(ctx, "update", hotelID, effective.RoomNumber, effective.CheckInDate, effective.CheckOutDate, reservationID, caller)
		if err != nil {
			return nil, err
		}
	}

	var newNights, taken []string
	if s.opts.GuardNights && moved {
		newNights, err = models.Nights(effective.CheckInDate, effective.CheckOutDate)
		if err != nil {
			return nil, domain.NewValidationError("check_in_date", err.Error())
		}
		held, err := s.heldNights(ctx, effective, newNights)
		if err != nil {
			return nil, s.fail("update", err)
		}
		taken, err = s.claimNights(ctx, effective, newNights, held)
		if err != nil {
			if domain.IsConflict(err) {
				return nil, s.conflict("update", hotelID, effective.RoomNumber, effective.CheckInDate, effective.CheckOutDate, caller)
			}
			return nil, s.fail("update", err)
		}
	}

	pk, sk := records.ReservationKey(reservationID)
	post, err := s.store.Update(ctx, pk, sk, records.ReservationPatchAttributes(patch, caller, s.now()))
	if err != nil {
		s.releaseNights(ctx, hotelID, effective.RoomNumber, taken, reservationID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.fail("update", domain.ErrNotFound)
		}
		return nil, s.fail("update", s.storeError("update", pk, err))
	}

	if s.opts.GuardNights && moved {
		s.releaseMovedNights(ctx, *current, effective, newNights)
	}

	updated := records.ReservationFromRecord(post)
	s.attachGuests(ctx, &updated)

	metrics.IncReservation("update", "ok")
	s.logger.Info().
		Str("reservation_id", reservationID).
		Str("hotel_id", hotelID).
		Bool("moved", moved).
		Str("caller", caller).
		Msg("Reservation updated")

	payload := events.PayloadFor(&updated, caller)
	if moved {
		payload.PreviousRoom = current.RoomNumber
		payload.PreviousCheckIn = current.CheckInDate
	}
	s.publishEvent(events.EventReservationUpdated, payload)
	return &updated, nil
}

// releaseMovedNights frees the claims of the old stay that the new stay does
// not reuse.
func (s *ReservationService) releaseMovedNights(ctx context.Context, old, effective models.Reservation, newNights []string) {
	oldNights, err := models.Nights(old.CheckInDate, old.CheckOutDate)
	if err != nil {
		return
	}
	keep := make(map[string]bool, len(newNights))
	if old.RoomNumber == effective.RoomNumber {
		for _, n := range newNights {
			keep[n] = true
		}
	}
	var release []string
	for _, n := range oldNights {
		if !keep[n] {
			release = append(release, n)
		}
	}
	s.releaseNights(ctx, old.HotelID, old.RoomNumber, release, old.ID)
}

func (s *ReservationService) SoftDelete(ctx context.Context, caller, hotelID, reservationID string) (*models.Reservation, error) {
	caller = s.caller(caller)

	current, err := s.load(ctx, hotelID, reservationID)
	if err != nil {
		return nil, s.fail("delete", err)
	}

	pk, sk := records.ReservationKey(reservationID)
	post, err := s.store.Update(ctx, pk, sk, records.SoftDeleteAttributes(caller, s.now()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.fail("delete", domain.ErrNotFound)
		}
		return nil, s.fail("delete", s.storeError("update", pk, err))
	}

	if s.opts.GuardNights {
		if nights, err := models.Nights(current.CheckInDate, current.CheckOutDate); err == nil {
			s.releaseNights(ctx, hotelID, current.RoomNumber, nights, reservationID)
		}
	}

	deleted := records.ReservationFromRecord(post)
	s.attachGuests(ctx, &deleted)

	metrics.IncReservation("delete", "ok")
	s.logger.Info().
		Str("reservation_id", reservationID).
		Str("hotel_id", hotelID).
		Str("caller", caller).
		Msg("Reservation soft-deleted")
	s.publishEvent(events.EventReservationDeleted, events.PayloadFor(&deleted, caller))
	return &deleted, nil
}

// load fetches a live reservation of the hotel. Reservations of another
// hotel and soft-deleted ones are reported as not found.
func (s *ReservationService) load(ctx context.Context, hotelID, reservationID string) (*models.Reservation, error) {
	if err := required("reservation_id", reservationID); err != nil {
		return nil, err
	}
	pk, sk := records.ReservationKey(reservationID)
	rec, err := s.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.storeError("get", pk, err)
	}

	res := records.ReservationFromRecord(rec)
	if res.HotelID != hotelID || res.IsDeleted {
		return nil, domain.ErrNotFound
	}
	return &res, nil
}

// attachGuests loads guest records. A failure leaves the list empty.
func (s *ReservationService) attachGuests(ctx context.Context, res *models.Reservation) {
	guests, err := loadGuests(ctx, s.store, res.ID, s.opts.PageSize)
	if err != nil {
		s.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("Failed to load guests")
		return
	}
	res.Guests = guests
}

func loadGuests(ctx context.Context, st store.Store, reservationID string, pageSize int) ([]models.Guest, error) {
	pk, _ := records.ReservationKey(reservationID)
	items, err := store.QueryAll(ctx, st, store.Query{
		Partition:  pk,
		SortPrefix: records.PrefixPerson,
		Limit:      pageSize,
	})
	if err != nil {
		return nil, err
	}
	guests := make([]models.Guest, 0, len(items))
	for _, item := range items {
		guests = append(guests, records.GuestFromRecord(item))
	}
	return guests, nil
}

// ensureAvailable runs the advisory availability check. A failed check
// refuses the write with a store error rather than letting it through.
func (s *ReservationService) ensureAvailable(ctx context.Context, op, hotelID, room, checkIn, checkOut, excludeID, caller string) error {
	conflicts, err := s.checker.Conflicts(ctx, hotelID, room, checkIn, checkOut, excludeID)
	if err != nil {
		metrics.IncAvailability("error")
		return s.fail(op, err)
	}
	if len(conflicts) > 0 {
		metrics.IncAvailability("taken")
		return s.conflict(op, hotelID, room, checkIn, checkOut, caller)
	}
	metrics.IncAvailability("available")
	return nil
}

func (s *ReservationService) conflict(op, hotelID, room, checkIn, checkOut, caller string) error {
	metrics.IncReservation(op, "conflict")
	err := &domain.ConflictError{HotelID: hotelID, RoomNumber: room, CheckIn: checkIn, CheckOut: checkOut}
	s.logger.Info().
		Str("op", op).
		Str("hotel_id", hotelID).
		Str("room", room).
		Str("check_in", checkIn).
		Str("check_out", checkOut).
		Msg("Reservation refused: room not available")
	s.publishEvent(events.EventReservationConflict, events.ReservationEventPayload{
		HotelID:      hotelID,
		RoomNumber:   room,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		ChangedBy:    caller,
		ChangedAt:    s.now(),
	})
	return err
}

// fail counts a failed write by outcome and passes the error through.
func (s *ReservationService) fail(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncReservation(op, "not_found")
	case domain.IsValidation(err):
		metrics.IncReservation(op, "invalid")
	case domain.IsConflict(err):
		metrics.IncReservation(op, "conflict")
	default:
		metrics.IncReservation(op, "error")
	}
	return err
}

func (s *ReservationService) storeError(op, key string, err error) error {
	metrics.IncStoreError(op)
	s.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("Store call failed")
	return &domain.StoreError{Op: op, Key: key, Err: err}
}

func (s *ReservationService) publishEvent(eventType string, payload events.ReservationEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", payload.ReservationID).Msg("failed to publish reservation event")
	}
}
