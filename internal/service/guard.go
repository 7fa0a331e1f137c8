package service

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/store"
)

// claimNights writes one claim record per night with PutIfAbsent. The claims
// are the authoritative guard against two writers passing the availability
// check at the same time. It returns the nights newly claimed. On conflict
// every claim taken by this call is released.
func (s *ReservationService) claimNights(ctx context.Context, res models.Reservation, nights []string, held map[string]bool) ([]string, error) {
	var taken []string
	for _, night := range nights {
		if held[night] {
			continue
		}
		err := s.claimNight(ctx, res, night)
		if err == nil {
			taken = append(taken, night)
			continue
		}
		s.releaseNights(ctx, res.HotelID, res.RoomNumber, taken, res.ID)
		return nil, err
	}
	return taken, nil
}

func (s *ReservationService) claimNight(ctx context.Context, res models.Reservation, night string) error {
	claim := records.NightClaimRecord(res.HotelID, res.RoomNumber, night, res.ID, s.now())

	for attempt := 0; attempt < 2; attempt++ {
		err := s.store.PutIfAbsent(ctx, claim)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConditionFailed) {
			return s.storeError("put_if_absent", claim.PK(), err)
		}
		if attempt > 0 {
			break
		}

		stale, err := s.claimIsStale(ctx, claim.PK(), claim.SK())
		if err != nil {
			return err
		}
		if !stale {
			break
		}
		if err := s.store.DeleteItem(ctx, claim.PK(), claim.SK()); err != nil {
			return s.storeError("delete", claim.PK(), err)
		}
		metrics.AddStaleClaims(1)
		s.logger.Info().Str("pk", claim.PK()).Msg("Removed stale night claim")
	}

	return &domain.ConflictError{
		HotelID:    res.HotelID,
		RoomNumber: res.RoomNumber,
		CheckIn:    res.CheckInDate,
		CheckOut:   res.CheckOutDate,
	}
}

// claimIsStale reports whether the reservation owning a claim no longer
// occupies that night: it is missing, soft-deleted, or has moved.
func (s *ReservationService) claimIsStale(ctx context.Context, pk, sk string) (bool, error) {
	claim, err := s.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, s.storeError("get", pk, err)
	}
	return ClaimIsStale(ctx, s.store, claim, s.now(), s.opts.ClaimGrace)
}

// ClaimIsStale checks a claim record against its owning reservation. A claim
// of a soft-deleted reservation is stale at once. A claim whose reservation is
// missing or no longer covers the night is stale only after grace, since a
// writer claims nights before it writes or moves the reservation.
func ClaimIsStale(ctx context.Context, st store.Store, claim store.Record, now time.Time, grace time.Duration) (bool, error) {
	ownerPK, ownerSK := records.ReservationKey(claim.String(records.AttrReservationID))
	settled := true
	if claimedOn, err := models.ParseTimestamp(claim.String(records.AttrClaimedOn)); err == nil {
		settled = now.Sub(claimedOn) >= grace
	}

	owner, err := st.Get(ctx, ownerPK, ownerSK)
	if errors.Is(err, store.ErrNotFound) {
		return settled, nil
	}
	if err != nil {
		return false, &domain.StoreError{Op: "get", Key: ownerPK, Err: err}
	}

	res := records.ReservationFromRecord(owner)
	if res.IsDeleted {
		return true, nil
	}
	night := claim.String(records.AttrNightDate)
	occupies := res.HotelID == claim.String(records.AttrHotelID) &&
		res.RoomNumber == claim.String(records.AttrRoomID) &&
		res.CheckInDate <= night && night < res.CheckOutDate
	return !occupies && settled, nil
}

// releaseNights deletes claims still owned by reservationID. Failures are
// logged only: a leftover claim is stale and gets reclaimed later.
func (s *ReservationService) releaseNights(ctx context.Context, hotelID, roomNumber string, nights []string, reservationID string) {
	for _, night := range nights {
		pk, sk := records.NightClaimKey(hotelID, roomNumber, night)
		claim, err := s.store.Get(ctx, pk, sk)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("pk", pk).Msg("Failed to read night claim for release")
			continue
		}
		if claim.String(records.AttrReservationID) != reservationID {
			continue
		}
		if err := s.store.DeleteItem(ctx, pk, sk); err != nil {
			s.logger.Warn().Err(err).Str("pk", pk).Msg("Failed to release night claim")
		}
	}
}

// heldNights returns the nights of res already claimed by res itself.
func (s *ReservationService) heldNights(ctx context.Context, res models.Reservation, nights []string) (map[string]bool, error) {
	held := make(map[string]bool)
	for _, night := range nights {
		pk, sk := records.NightClaimKey(res.HotelID, res.RoomNumber, night)
		claim, err := s.store.Get(ctx, pk, sk)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, s.storeError("get", pk, err)
		}
		if claim.String(records.AttrReservationID) == res.ID {
			held[night] = true
		}
	}
	return held, nil
}
