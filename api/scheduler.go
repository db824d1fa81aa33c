/*
scheduler.go - Scheduled full recalculation

PURPOSE:
  Periodically rebuilds every derived interval row from expense history.
  Incremental maintenance keeps rows correct in the common case; the
  scheduled rebuild is the safety net that repairs any drift from partial
  failures (an expense committed but its interval update lost).

DESIGN:
  - Uses a cron schedule rather than a fixed ticker so operators can pin
    the rebuild to off-peak hours
  - Exactly one rebuild runs at a time; the engine's rebuild gate also
    holds off incremental writes for the duration
  - A failed run is logged and retried at the next scheduled slot

CONFIGURATION:
  - Spec: cron expression, default "0 3 * * *" (daily at 03:00)

USAGE:
  scheduler, err := NewRecalcScheduler(recalc, spec, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - interval/recalculator.go: RecalculateAll
  - handlers.go: RecalculateAll endpoint (manual trigger)
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/maintenance-engine/interval"
)

// DefaultRecalcSpec runs the rebuild daily at 03:00.
const DefaultRecalcSpec = "0 3 * * *"

// RecalcScheduler runs scheduled full recalculations.
type RecalcScheduler struct {
	recalc *interval.Recalculator
	cron   *cron.Cron
	log    *logrus.Entry
}

// NewRecalcScheduler creates a scheduler from a cron expression.
func NewRecalcScheduler(recalc *interval.Recalculator, spec string, log *logrus.Logger) (*RecalcScheduler, error) {
	if spec == "" {
		spec = DefaultRecalcSpec
	}

	s := &RecalcScheduler{
		recalc: recalc,
		cron:   cron.New(),
		log:    log.WithField("component", "recalc-scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	s.log.WithField("spec", spec).Info("scheduled full recalculation")
	return s, nil
}

// Start begins the scheduler.
func (s *RecalcScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running rebuild to finish.
func (s *RecalcScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("stopped")
}

// RunNow triggers an immediate rebuild (for testing/admin).
func (s *RecalcScheduler) RunNow() {
	s.runOnce()
}

func (s *RecalcScheduler) runOnce() {
	start := time.Now()
	n, err := s.recalc.RecalculateAll(context.Background())
	if err != nil {
		s.log.WithError(err).Error("scheduled recalculation failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"rows":     n,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("scheduled recalculation complete")
}
