package service

import (
	"context"
	"fmt"
	"time"

	"github.com/weathermon/weathermon/internal/aggregate"
	"github.com/weathermon/weathermon/internal/alerts"
	"github.com/weathermon/weathermon/internal/ingest"
	"github.com/weathermon/weathermon/internal/models"
	"github.com/weathermon/weathermon/internal/store"
)

// ValidationError reports a caller-supplied parameter out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

const (
	minHours = 1
	maxHours = 168

	defaultAlertLimit = 50
)

// Service is the boundary adapter the HTTP layer consumes as plain function
// calls. It validates parameters, delegates to the components, and maps
// missing entities onto store.ErrNotFound.
type Service struct {
	store     *store.Store
	ingestor  *ingest.Ingestor
	builder   *aggregate.Builder
	evaluator *alerts.Evaluator
}

func New(st *store.Store, ingestor *ingest.Ingestor, builder *aggregate.Builder, evaluator *alerts.Evaluator) *Service {
	return &Service{
		store:     st,
		ingestor:  ingestor,
		builder:   builder,
		evaluator: evaluator,
	}
}

// Ingest fetches one snapshot for the city and stores it.
func (s *Service) Ingest(ctx context.Context, city string) error {
	_, err := s.ingestor.FetchAndStore(ctx, city)
	return err
}

// LatestObservation returns the most recent reading, or store.ErrNotFound
// when the city has no data.
func (s *Service) LatestObservation(city string) (*models.Observation, error) {
	obs, err := s.store.LatestObservation(city)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, store.ErrNotFound
	}
	return obs, nil
}

// ObservationHistory returns readings from the last hours, newest first.
func (s *Service) ObservationHistory(city string, hours, limit int) ([]models.Observation, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	end := time.Now().UTC()
	return s.store.Observations(city, end.Add(-time.Duration(hours)*time.Hour), end, limit)
}

// ObservationStats aggregates readings in [start, end). An empty window
// yields zero-valued stats, not an error.
func (s *Service) ObservationStats(city string, start, end time.Time) (models.WeatherStats, error) {
	if !end.After(start) {
		return models.WeatherStats{}, &ValidationError{Field: "end", Reason: "must be after start"}
	}
	return s.store.AggregateStats(city, start, end)
}

// BuildAndSaveSummary regenerates and persists the dashboard summary.
// Returns (nil, nil) when the city has no observations yet.
func (s *Service) BuildAndSaveSummary(city string) (*models.Summary, error) {
	return s.builder.BuildAndSave(city)
}

// LatestSummary returns the live summary, or store.ErrNotFound when none
// has been generated.
func (s *Service) LatestSummary(city string) (*models.Summary, error) {
	summary, err := s.store.LatestSummary(city, aggregate.SummaryKindHourly)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, store.ErrNotFound
	}
	return summary, nil
}

// CheckAlerts evaluates the rule set against the latest observation.
func (s *Service) CheckAlerts(city string) ([]int64, error) {
	return s.evaluator.CheckAndCreateAlerts(city)
}

// ActiveAlerts lists unacknowledged alerts. Empty city means all cities.
func (s *Service) ActiveAlerts(city string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	return s.evaluator.ActiveAlerts(city, limit)
}

// RecentAlerts lists alerts from the last hours.
func (s *Service) RecentAlerts(city string, hours, limit int) ([]models.Alert, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	return s.evaluator.RecentAlerts(city, hours, limit)
}

// AcknowledgeAlert marks an alert handled. Returns store.ErrNotFound when
// the id does not exist or the alert was already acknowledged.
func (s *Service) AcknowledgeAlert(id int64, by string) error {
	return s.evaluator.Acknowledge(id, by)
}

// AlertStats aggregates alert counts; recent covers the last hours.
func (s *Service) AlertStats(city string, hours int) (models.AlertStats, error) {
	if err := validateHours(hours); err != nil {
		return models.AlertStats{}, err
	}
	return s.evaluator.Stats(city, hours)
}

// AlertDigest rolls up alert activity over the last hours.
func (s *Service) AlertDigest(city string, hours int) (models.AlertDigest, error) {
	if err := validateHours(hours); err != nil {
		return models.AlertDigest{}, err
	}
	return s.evaluator.Digest(city, hours)
}

func validateHours(hours int) error {
	if hours < minHours || hours > maxHours {
		return &ValidationError{Field: "hours", Reason: fmt.Sprintf("must be between %d and %d", minHours, maxHours)}
	}
	return nil
}
