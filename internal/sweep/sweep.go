// Package sweep runs the period-boundary background job: scheduled downgrades
// whose effective time has passed are applied even if the corresponding
// invoice event never arrives (e.g. a free downgrade target bills nothing).
package sweep

import (
	"dataforge/internal/reconcile"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Sweeper struct {
	cron *cron.Cron
	rec  *reconcile.Reconciler
	log  *logrus.Logger
}

func New(rec *reconcile.Reconciler, log *logrus.Logger) *Sweeper {
	return &Sweeper{cron: cron.New(), rec: rec, log: log}
}

// Start schedules the hourly pending-change pass.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("@hourly", s.run)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running pass to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) run() {
	applied, err := s.rec.ApplyDuePendingChanges()
	if err != nil {
		s.log.WithError(err).Error("pending change sweep failed")
		return
	}
	if applied > 0 {
		s.log.WithField("applied", applied).Info("applied scheduled plan changes")
	}
}
