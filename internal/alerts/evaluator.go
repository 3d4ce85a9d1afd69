package alerts

import (
	"fmt"
	"log"
	"time"

	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/metrics"
	"github.com/weathermon/weathermon/internal/models"
	"github.com/weathermon/weathermon/internal/store"
)

// Evaluator checks the latest observation against the fixed rule set and
// records alerts. The only state carried across evaluations is the cooldown
// lookup, which lives in the store, so evaluation survives restarts and
// multiple instances.
type Evaluator struct {
	store    *store.Store
	cfg      config.AlertConfig
	notifier Notifier
	now      func() time.Time
}

func NewEvaluator(st *store.Store, cfg config.AlertConfig, notifier Notifier) *Evaluator {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Evaluator{
		store:    st,
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// rule evaluates one trip condition against an observation. A nil result
// means the rule did not trip.
type rule func(cfg config.AlertConfig, obs *models.Observation) *models.Alert

// ruleSet is evaluated in this order on every tick. Rules are independent;
// more than one may fire from a single observation.
var ruleSet = []rule{
	highTemperatureRule,
	lowTemperatureRule,
	highHumidityRule,
	extremeWeatherRule,
}

// CheckAndCreateAlerts evaluates all rules against the latest observation
// for the city. Returns the ids of alerts created. A city with no data
// yields an empty result, not an error. A failure inside a single rule is
// logged and treated as "did not trip" so the remaining rules still run.
func (e *Evaluator) CheckAndCreateAlerts(city string) ([]int64, error) {
	latest, err := e.store.LatestObservation(city)
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	if latest == nil {
		log.Printf("alerts: no observations for %s, nothing to evaluate", city)
		return nil, nil
	}

	now := e.now().UTC()
	cooldownStart := now.Add(-e.cfg.Cooldown)

	var created []int64
	for _, r := range ruleSet {
		alert := r(e.cfg, latest)
		if alert == nil {
			continue
		}

		inCooldown, err := e.store.HasRecentAlert(city, alert.Type, cooldownStart)
		if err != nil {
			log.Printf("alerts: cooldown lookup for %s/%s failed: %v", city, alert.Type, err)
			continue
		}
		if inCooldown {
			log.Printf("alerts: %s for %s suppressed by cooldown", alert.Type, city)
			continue
		}

		alert.City = city
		alert.TriggeredAt = now
		id, err := e.store.InsertAlert(*alert)
		if err != nil {
			log.Printf("alerts: insert %s for %s failed: %v", alert.Type, city, err)
			continue
		}

		alert.ID = id
		created = append(created, id)
		metrics.AlertsFired.WithLabelValues(city, string(alert.Type), string(alert.Severity)).Inc()
		e.notifier.Notify(*alert)
	}
	return created, nil
}

// Acknowledge marks an alert handled. Returns store.ErrNotFound when the id
// does not exist or was already acknowledged.
func (e *Evaluator) Acknowledge(id int64, by string) error {
	return e.store.AcknowledgeAlert(id, by, e.now().UTC())
}

// ActiveAlerts lists unacknowledged alerts, newest first. Empty city means
// all cities.
func (e *Evaluator) ActiveAlerts(city string, limit int) ([]models.Alert, error) {
	return e.store.ActiveAlerts(city, limit)
}

// RecentAlerts lists alerts triggered within the last hours.
func (e *Evaluator) RecentAlerts(city string, hours, limit int) ([]models.Alert, error) {
	since := e.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return e.store.RecentAlerts(city, since, limit)
}

// Stats aggregates alert counts; recent covers the last hours.
func (e *Evaluator) Stats(city string, hours int) (models.AlertStats, error) {
	since := e.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return e.store.AlertStats(city, since)
}

// Digest rolls up alert activity over the last hours into one report.
func (e *Evaluator) Digest(city string, hours int) (models.AlertDigest, error) {
	recent, err := e.RecentAlerts(city, hours, 100)
	if err != nil {
		return models.AlertDigest{}, err
	}

	digest := models.AlertDigest{
		City:        city,
		PeriodHours: hours,
		Total:       len(recent),
		BySeverity:  make(map[string]int),
		ByType:      make(map[string]int),
		Alerts:      recent,
	}
	for _, alert := range recent {
		digest.BySeverity[string(alert.Severity)]++
		digest.ByType[string(alert.Type)]++
	}
	return digest, nil
}

func highTemperatureRule(cfg config.AlertConfig, obs *models.Observation) *models.Alert {
	temp := obs.Temperature.Current
	if temp <= cfg.TempHigh {
		return nil
	}
	severity := models.SeverityCritical
	if temp < cfg.TempHigh+5 {
		severity = models.SeverityWarning
	}
	return &models.Alert{
		Type:     models.AlertHighTemperature,
		Severity: severity,
		Message:  fmt.Sprintf("High temperature alert: %.1f°C (threshold: %.1f°C)", temp, cfg.TempHigh),
		Condition: models.AlertCondition{
			ThresholdType:  "temperature",
			ThresholdValue: cfg.TempHigh,
			ActualValue:    temp,
			Operator:       ">",
			Unit:           "°C",
		},
		Metadata: map[string]any{
			"temperature":  temp,
			"humidity":     obs.Humidity,
			"weather_main": obs.Condition.Main,
		},
	}
}

func lowTemperatureRule(cfg config.AlertConfig, obs *models.Observation) *models.Alert {
	temp := obs.Temperature.Current
	if temp >= cfg.TempLow {
		return nil
	}
	severity := models.SeverityCritical
	if temp > cfg.TempLow-5 {
		severity = models.SeverityWarning
	}
	return &models.Alert{
		Type:     models.AlertLowTemperature,
		Severity: severity,
		Message:  fmt.Sprintf("Low temperature alert: %.1f°C (threshold: %.1f°C)", temp, cfg.TempLow),
		Condition: models.AlertCondition{
			ThresholdType:  "temperature",
			ThresholdValue: cfg.TempLow,
			ActualValue:    temp,
			Operator:       "<",
			Unit:           "°C",
		},
		Metadata: map[string]any{
			"temperature":  temp,
			"humidity":     obs.Humidity,
			"weather_main": obs.Condition.Main,
		},
	}
}

func highHumidityRule(cfg config.AlertConfig, obs *models.Observation) *models.Alert {
	humidity := obs.Humidity
	if humidity <= cfg.HumidityHigh {
		return nil
	}
	severity := models.SeverityWarning
	if humidity < cfg.HumidityHigh+10 {
		severity = models.SeverityInfo
	}
	return &models.Alert{
		Type:     models.AlertHighHumidity,
		Severity: severity,
		Message:  fmt.Sprintf("High humidity alert: %.1f%% (threshold: %.1f%%)", humidity, cfg.HumidityHigh),
		Condition: models.AlertCondition{
			ThresholdType:  "humidity",
			ThresholdValue: cfg.HumidityHigh,
			ActualValue:    humidity,
			Operator:       ">",
			Unit:           "%",
		},
		Metadata: map[string]any{
			"humidity":     humidity,
			"temperature":  obs.Temperature.Current,
			"weather_main": obs.Condition.Main,
		},
	}
}

func extremeWeatherRule(cfg config.AlertConfig, obs *models.Observation) *models.Alert {
	if !cfg.IsExtreme(obs.Condition.Main) {
		return nil
	}
	return &models.Alert{
		Type:     models.AlertExtremeWeather,
		Severity: models.SeverityCritical,
		Message:  fmt.Sprintf("Extreme weather alert: %s", obs.Condition.Main),
		Condition: models.AlertCondition{
			ThresholdType: "weather_condition",
			Operator:      "in",
		},
		Metadata: map[string]any{
			"weather_main":        obs.Condition.Main,
			"weather_description": obs.Condition.Description,
			"temperature":         obs.Temperature.Current,
			"wind_speed":          obs.Wind.Speed,
		},
	}
}
