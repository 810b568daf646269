package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alphagate/lib/sl"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron     *cron.Cron
	exporter *Exporter
	log      *slog.Logger
}

// NewScheduler registers the daily export under a standard five-field cron spec.
func NewScheduler(exporter *Exporter, spec, timezone string, log *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("export timezone: %w", err)
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		exporter: exporter,
		log:      log.With(sl.Module("export.scheduler")),
	}
	if _, err = s.cron.AddFunc(spec, s.Run); err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.exporter.WriteDaily(ctx); err != nil {
		s.log.Error("daily export", sl.Err(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("export scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running export to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
