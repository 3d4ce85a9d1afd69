package retention

import (
	"fmt"
	"log"
	"time"

	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/metrics"
	"github.com/weathermon/weathermon/internal/store"
)

// Sweeper retires old data. Both prunes are idempotent and safe to re-run;
// the hard sweep does not depend on the soft sweep having run first.
type Sweeper struct {
	store *store.Store
	cfg   config.RetentionConfig
	now   func() time.Time
}

func NewSweeper(st *store.Store, cfg config.RetentionConfig) *Sweeper {
	return &Sweeper{store: st, cfg: cfg, now: time.Now}
}

// SoftSweep marks observations older than the soft retention window as
// deleted. A second call with the same cutoff touches zero rows.
func (s *Sweeper) SoftSweep() (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.SoftDays)
	n, err := s.store.SoftDeleteObservationsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("soft delete observations: %w", err)
	}
	metrics.RecordsPruned.WithLabelValues("observations_soft").Add(float64(n))
	log.Printf("retention: soft deleted %d observations older than %d days", n, s.cfg.SoftDays)
	return n, nil
}

// HardSweep physically removes observations and alerts past their long
// retention windows. Returns (observations removed, alerts removed).
func (s *Sweeper) HardSweep() (int64, int64, error) {
	now := s.now().UTC()

	obsRemoved, err := s.store.HardDeleteObservationsBefore(now.AddDate(0, 0, -s.cfg.HardDays))
	if err != nil {
		return 0, 0, fmt.Errorf("hard delete observations: %w", err)
	}
	metrics.RecordsPruned.WithLabelValues("observations_hard").Add(float64(obsRemoved))

	alertsRemoved, err := s.store.HardDeleteAlertsBefore(now.AddDate(0, 0, -s.cfg.AlertDays))
	if err != nil {
		return obsRemoved, 0, fmt.Errorf("hard delete alerts: %w", err)
	}
	metrics.RecordsPruned.WithLabelValues("alerts").Add(float64(alertsRemoved))

	log.Printf("retention: hard deleted %d observations (>%dd) and %d alerts (>%dd)",
		obsRemoved, s.cfg.HardDays, alertsRemoved, s.cfg.AlertDays)
	return obsRemoved, alertsRemoved, nil
}

// Sweep runs the full daily pass: soft sweep, hard sweep, then summary
// pruning for the given city so replaced snapshots cannot accumulate.
func (s *Sweeper) Sweep(city string) error {
	if _, err := s.SoftSweep(); err != nil {
		return err
	}
	if _, _, err := s.HardSweep(); err != nil {
		return err
	}
	pruned, err := s.store.PruneSummaries(city, 1)
	if err != nil {
		return fmt.Errorf("prune summaries: %w", err)
	}
	if pruned > 0 {
		metrics.RecordsPruned.WithLabelValues("summaries").Add(float64(pruned))
		log.Printf("retention: pruned %d stale summaries for %s", pruned, city)
	}
	return nil
}
