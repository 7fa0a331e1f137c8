package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/store"
)

// ReconcileReport lists records that drifted from each other after partial
// writes. Ids are reservation ids, claims are claim partition keys.
type ReconcileReport struct {
	Reservations     int      `json:"reservations"`
	Claims           int      `json:"claims"`
	MissingHotel     []string `json:"missing_hotel"`
	MissingGuests    []string `json:"missing_guests"`
	InconsistentKeys []string `json:"inconsistent_keys"`
	StaleClaims      []string `json:"stale_claims"`
	Fixed            int      `json:"fixed"`
}

// Clean reports whether the pass found nothing.
func (r *ReconcileReport) Clean() bool {
	return len(r.MissingHotel) == 0 && len(r.MissingGuests) == 0 &&
		len(r.InconsistentKeys) == 0 && len(r.StaleClaims) == 0
}

type ReconcilerOptions struct {
	PageSize   int
	ClaimGrace time.Duration
	// Fix removes stale claims and rewrites drifted index keys.
	Fix bool
}

// Reconciler scans reservations and night claims for partial-write leftovers.
type Reconciler struct {
	store  store.Store
	opts   ReconcilerOptions
	logger *zerolog.Logger
	now    func() time.Time
}

func NewReconciler(st store.Store, opts ReconcilerOptions, logger *zerolog.Logger) *Reconciler {
	if opts.PageSize <= 0 {
		opts.PageSize = models.DefaultPageSize
	}
	if opts.ClaimGrace <= 0 {
		opts.ClaimGrace = time.Minute
	}
	return &Reconciler{
		store:  st,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	if err := r.checkReservations(ctx, report); err != nil {
		return nil, err
	}
	if err := r.checkClaims(ctx, report); err != nil {
		return nil, err
	}

	metrics.SetReconcileFindings("missing_hotel", len(report.MissingHotel))
	metrics.SetReconcileFindings("missing_guests", len(report.MissingGuests))
	metrics.SetReconcileFindings("inconsistent_keys", len(report.InconsistentKeys))
	metrics.SetReconcileFindings("stale_claims", len(report.StaleClaims))

	r.logger.Info().
		Int("reservations", report.Reservations).
		Int("claims", report.Claims).
		Int("missing_hotel", len(report.MissingHotel)).
		Int("missing_guests", len(report.MissingGuests)).
		Int("inconsistent_keys", len(report.InconsistentKeys)).
		Int("stale_claims", len(report.StaleClaims)).
		Int("fixed", report.Fixed).
		Msg("Reconciliation finished")

	return report, nil
}

func (r *Reconciler) checkReservations(ctx context.Context, report *ReconcileReport) error {
	items, err := store.ScanAll(ctx, r.store, store.ScanQuery{
		Filter: store.Eq(store.AttrEntityType, models.EntityReservation),
		Limit:  r.opts.PageSize,
	})
	if err != nil {
		return r.storeError("scan", models.EntityReservation, err)
	}

	hotels := make(map[string]bool)
	for _, item := range items {
		report.Reservations++
		res := records.ReservationFromRecord(item)

		hotelID := strings.TrimSpace(res.HotelID)
		if hotelID == "" {
			report.MissingHotel = append(report.MissingHotel, res.ID)
		} else {
			known, ok := hotels[hotelID]
			if !ok {
				pk, sk := records.LocationKey(hotelID)
				known, err = r.exists(ctx, pk, sk)
				if err != nil {
					return err
				}
				hotels[hotelID] = known
			}
			if !known {
				report.MissingHotel = append(report.MissingHotel, res.ID)
			}
		}

		if res.GuestCount > 0 {
			guests, err := loadGuests(ctx, r.store, res.ID, r.opts.PageSize)
			if err != nil {
				return r.storeError("query", item.PK(), err)
			}
			if len(guests) < res.GuestCount {
				report.MissingGuests = append(report.MissingGuests, res.ID)
			}
		}

		if !records.ShadowKeysConsistent(item) {
			report.InconsistentKeys = append(report.InconsistentKeys, res.ID)
			if r.opts.Fix {
				if err := r.rewriteKeys(ctx, item); err != nil {
					return err
				}
				report.Fixed++
			}
		}
	}
	return nil
}

func (r *Reconciler) exists(ctx context.Context, pk, sk string) (bool, error) {
	_, err := r.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, r.storeError("get", pk, err)
	}
	return true, nil
}

// rewriteKeys recomputes the index keys of a reservation from its attributes.
func (r *Reconciler) rewriteKeys(ctx context.Context, item store.Record) error {
	fixed := records.ReservationToRecord(records.ReservationFromRecord(item))
	attrs := map[string]any{}
	for _, attr := range []string{
		records.AttrGSI3PK, records.AttrGSI3SK,
		records.AttrGSI4PK, records.AttrGSI4SK,
		records.AttrGSI5PK, records.AttrGSI5SK,
	} {
		attrs[attr] = fixed[attr]
	}
	if _, err := r.store.Update(ctx, item.PK(), item.SK(), attrs); err != nil {
		return r.storeError("update", item.PK(), err)
	}
	r.logger.Info().Str("pk", item.PK()).Msg("Rewrote reservation index keys")
	return nil
}

func (r *Reconciler) checkClaims(ctx context.Context, report *ReconcileReport) error {
	claims, err := store.ScanAll(ctx, r.store, store.ScanQuery{
		Filter: store.Eq(store.AttrEntityType, models.EntityNightClaim),
		Limit:  r.opts.PageSize,
	})
	if err != nil {
		return r.storeError("scan", models.EntityNightClaim, err)
	}

	now := r.now()
	stale := 0
	for _, claim := range claims {
		report.Claims++
		isStale, err := ClaimIsStale(ctx, r.store, claim, now, r.opts.ClaimGrace)
		if err != nil {
			return r.storeError("get", claim.String(records.AttrReservationID), err)
		}
		if !isStale {
			continue
		}
		report.StaleClaims = append(report.StaleClaims, claim.PK())
		if !r.opts.Fix {
			continue
		}
		if err := r.store.DeleteItem(ctx, claim.PK(), claim.SK()); err != nil {
			return r.storeError("delete", claim.PK(), err)
		}
		stale++
		report.Fixed++
	}
	if stale > 0 {
		metrics.AddStaleClaims(stale)
	}
	return nil
}

// storeError logs and counts a failed store call. Errors that already are a
// StoreError keep their original op and key.
func (r *Reconciler) storeError(op, key string, err error) error {
	metrics.IncStoreError(op)
	r.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("Store call failed")
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StoreError{Op: op, Key: key, Err: err}
}
