package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner owns the nightly cron trigger for the sweep. The sweep itself
// carries no timer so it can be driven directly in tests and one-shot runs.
type Runner struct {
	cron  *cron.Cron
	sweep *Sweep
	log   *zap.Logger
	spec  string
}

func NewRunner(sweep *Sweep, cfg Config, log *zap.Logger) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cron:  cron.New(),
		sweep: sweep,
		log:   log.Named("scheduler.runner"),
		spec:  fmt.Sprintf("0 %d * * *", cfg.Hour),
	}
}

func (r *Runner) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		stats, err := r.sweep.RunNightlyCycle(context.Background())
		if err != nil {
			r.log.Error("nightly cycle reported errors", zap.Error(err))
		}
		r.log.Info("nightly cycle triggered",
			zap.Int("renewed", stats.Renewed),
			zap.Int("auto_paid", stats.AutoPaid),
			zap.Int("cancelled", stats.Cancelled),
		)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", r.spec, err)
	}

	r.cron.Start()
	r.log.Info("sweep scheduled", zap.String("spec", r.spec))
	return nil
}

func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
