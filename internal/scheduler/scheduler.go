package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weathermon/weathermon/internal/aggregate"
	"github.com/weathermon/weathermon/internal/alerts"
	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/ingest"
	"github.com/weathermon/weathermon/internal/retention"
)

// Scheduler drives the four recurring jobs on independent fixed intervals.
// Each tick performs one synchronous, single-shot run; jobs never overlap
// with themselves because each case body completes before the next tick is
// consumed.
type Scheduler struct {
	city      string
	cfg       config.ScheduleConfig
	ingestor  *ingest.Ingestor
	builder   *aggregate.Builder
	evaluator *alerts.Evaluator
	sweeper   *retention.Sweeper

	evalRetryDelay time.Duration
	lastSweepDate  string
}

func New(city string, cfg config.ScheduleConfig, ingestor *ingest.Ingestor, builder *aggregate.Builder, evaluator *alerts.Evaluator, sweeper *retention.Sweeper) *Scheduler {
	return &Scheduler{
		city:           city,
		cfg:            cfg,
		ingestor:       ingestor,
		builder:        builder,
		evaluator:      evaluator,
		sweeper:        sweeper,
		evalRetryDelay: time.Minute,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.runIngest(ctx)
	s.runAlerts()
	s.runAggregate()
	s.runSweepIfDue()

	ingestTicker := time.NewTicker(s.cfg.IngestEvery)
	alertTicker := time.NewTicker(s.cfg.AlertsEvery)
	aggregateTicker := time.NewTicker(s.cfg.AggregateEvery)
	sweepTicker := time.NewTicker(1 * time.Hour)
	defer ingestTicker.Stop()
	defer alertTicker.Stop()
	defer aggregateTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ingestTicker.C:
			s.runIngest(ctx)
		case <-alertTicker.C:
			s.runAlerts()
		case <-aggregateTicker.C:
			s.runAggregate()
		case <-sweepTicker.C:
			s.runSweepIfDue()
		}
	}
}

func (s *Scheduler) runIngest(ctx context.Context) {
	if _, err := s.ingestor.FetchAndStore(ctx, s.city); err != nil {
		log.Printf("scheduler: ingest %s failed: %v", s.city, err)
	}
}

// runAlerts evaluates the rule set, retrying once after a delay on an
// unexpected internal error.
func (s *Scheduler) runAlerts() {
	operation := func() error {
		_, err := s.evaluator.CheckAndCreateAlerts(s.city)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.evalRetryDelay), 1)
	if err := backoff.Retry(operation, bo); err != nil {
		log.Printf("scheduler: alert evaluation for %s failed: %v", s.city, err)
	}
}

func (s *Scheduler) runAggregate() {
	if _, err := s.builder.BuildAndSave(s.city); err != nil {
		log.Printf("scheduler: aggregation for %s failed: %v", s.city, err)
	}
}

// runSweepIfDue fires the daily retention sweep once per UTC day, in the
// configured hour.
func (s *Scheduler) runSweepIfDue() {
	now := time.Now().UTC()
	if now.Hour() != s.cfg.SweepHourUTC {
		return
	}
	today := now.Format("2006-01-02")
	if s.lastSweepDate == today {
		return
	}

	// Mark the day done only on success; the sweeps are idempotent, so a
	// failed run is retried on the next hourly tick.
	if err := s.sweeper.Sweep(s.city); err != nil {
		log.Printf("scheduler: retention sweep failed: %v", err)
		return
	}
	s.lastSweepDate = today
}
