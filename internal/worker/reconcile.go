package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hotelbooking/internal/service"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (*service.ReconcileReport, error)
}

// ReconcileWorker runs reconciliation passes on a fixed interval. A failed
// pass is retried with backoff before waiting for the next tick.
type ReconcileWorker struct {
	reconciler  Reconciler
	interval    time.Duration
	retryPolicy RetryPolicy
	logger      zerolog.Logger
	onReport    func(*service.ReconcileReport)
}

func NewReconcileWorker(r Reconciler, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *ReconcileWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 5 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	return &ReconcileWorker{
		reconciler:  r,
		interval:    interval,
		retryPolicy: retry,
		logger:      logger.With().Str("component", "reconcile_worker").Logger(),
	}
}

// OnReport registers a callback receiving every successful report.
func (w *ReconcileWorker) OnReport(fn func(*service.ReconcileReport)) {
	w.onReport = fn
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("Reconcile worker started")
	defer w.logger.Info().Msg("Reconcile worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one pass with retries and returns its report, or nil
// when every attempt failed.
func (w *ReconcileWorker) RunOnce(ctx context.Context) *service.ReconcileReport {
	var report *service.ReconcileReport
	err := w.retryPolicy.Do(ctx, func(error) bool { return ctx.Err() == nil },
		func(attempt int, delay time.Duration, err error) {
			w.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Reconciliation failed, retrying")
		},
		func() error {
			var err error
			report, err = w.reconciler.Run(ctx)
			return err
		})
	if err != nil {
		w.logger.Error().Err(err).Msg("Reconciliation failed")
		return nil
	}
	if !report.Clean() {
		w.logger.Warn().
			Int("missing_hotel", len(report.MissingHotel)).
			Int("missing_guests", len(report.MissingGuests)).
			Int("inconsistent_keys", len(report.InconsistentKeys)).
			Int("stale_claims", len(report.StaleClaims)).
			Msg("Reconciliation found drift")
	}
	if w.onReport != nil {
		w.onReport(report)
	}
	return report
}
