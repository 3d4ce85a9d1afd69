package aggregate

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weathermon/weathermon/internal/metrics"
	"github.com/weathermon/weathermon/internal/models"
	"github.com/weathermon/weathermon/internal/store"
)

// SummaryKindHourly is the kind written by the periodic aggregation job.
const SummaryKindHourly = "hourly"

// Builder assembles dashboard summaries from raw observations. Every run
// regenerates the snapshot wholesale; nothing is updated incrementally.
type Builder struct {
	store *store.Store
	now   func() time.Time

	// Save retry policy: fixed delay, bounded attempts.
	retryInterval time.Duration
	maxRetries    uint64
}

func NewBuilder(st *store.Store) *Builder {
	return &Builder{
		store:         st,
		now:           time.Now,
		retryInterval: 2 * time.Minute,
		maxRetries:    2,
	}
}

// BuildSummary computes a full summary for a city, or (nil, nil) when the
// city has no observations yet. Any store failure aborts the whole build;
// partial summaries are never returned.
//
// The "today" window runs UTC midnight to UTC midnight regardless of the
// city's local timezone, matching what the dashboard has always displayed.
func (b *Builder) BuildSummary(city string) (*models.Summary, error) {
	latest, err := b.store.LatestObservation(city)
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	if latest == nil {
		return nil, nil
	}

	now := b.now().UTC()

	today, err := b.buildTodayStats(city, now)
	if err != nil {
		return nil, fmt.Errorf("today stats: %w", err)
	}

	hourly, err := b.buildHourlyTrend(city, now)
	if err != nil {
		return nil, fmt.Errorf("hourly trend: %w", err)
	}

	daily, err := b.buildDailyTrend(city, now)
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}

	distribution, err := b.store.ConditionHistogram(city, now.Add(-24*time.Hour), now)
	if err != nil {
		return nil, fmt.Errorf("condition histogram: %w", err)
	}

	return &models.Summary{
		City:                  city,
		Kind:                  SummaryKindHourly,
		GeneratedAt:           now,
		Current:               buildCurrent(latest),
		Today:                 today,
		HourlyTrend:           hourly,
		DailyTrend:            daily,
		ConditionDistribution: distribution,
	}, nil
}

// Save upserts the summary keyed by (city, kind), replacing any previous
// snapshot for that key.
func (b *Builder) Save(summary models.Summary) error {
	return b.store.UpsertSummary(summary)
}

// BuildAndSave builds a summary and persists it, retrying the save with a
// fixed delay on failure. Returns (nil, nil) when the city has no data.
func (b *Builder) BuildAndSave(city string) (*models.Summary, error) {
	summary, err := b.BuildSummary(city)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		log.Printf("aggregate: no observations for %s, skipping summary", city)
		return nil, nil
	}

	save := func() error { return b.Save(*summary) }
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(b.retryInterval), b.maxRetries)
	if err := backoff.Retry(save, bo); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	metrics.SummariesBuilt.WithLabelValues(city).Inc()
	log.Printf("aggregate: saved %s summary for %s (%d hourly, %d daily buckets)",
		summary.Kind, city, len(summary.HourlyTrend), len(summary.DailyTrend))
	return summary, nil
}

func buildCurrent(obs *models.Observation) models.CurrentWeather {
	current := models.CurrentWeather{
		Temperature: obs.Temperature.Current,
		FeelsLike:   obs.Temperature.FeelsLike,
		Humidity:    obs.Humidity,
		Pressure:    obs.Pressure,
		Main:        obs.Condition.Main,
		Description: obs.Condition.Description,
		Icon:        obs.Condition.Icon,
		WindSpeed:   obs.Wind.Speed,
		WindDeg:     obs.Wind.Deg,
		Clouds:      obs.Clouds,
		Visibility:  obs.Visibility,
	}
	if obs.Sunrise.Valid {
		t := obs.Sunrise.Time
		current.Sunrise = &t
	}
	if obs.Sunset.Valid {
		t := obs.Sunset.Time
		current.Sunset = &t
	}
	return current
}

func (b *Builder) buildTodayStats(city string, now time.Time) (models.TodayStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := b.store.AggregateStats(city, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return models.TodayStats{}, err
	}
	return models.TodayStats{
		TempAvg:      round1(stats.TempAvg),
		TempMin:      round1(stats.TempMin),
		TempMax:      round1(stats.TempMax),
		HumidityAvg:  round1(stats.HumidityAvg),
		HumidityMin:  round1(stats.HumidityMin),
		HumidityMax:  round1(stats.HumidityMax),
		PressureAvg:  stats.PressureAvg,
		WindSpeedAvg: round1(stats.WindSpeedAvg),
		RecordsCount: stats.Count,
	}, nil
}

const (
	maxHourlyBuckets = 24
	maxDailyBuckets  = 7
)

func (b *Builder) buildHourlyTrend(city string, now time.Time) ([]models.HourlyTrend, error) {
	observations, err := b.store.Observations(city, now.Add(-24*time.Hour), now, 0)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*trendBucket)
	// Observations arrive newest first; walk oldest first so the mode
	// tie-break sees conditions in chronological order.
	for i := len(observations) - 1; i >= 0; i-- {
		obs := observations[i]
		hour := obs.Timestamp.UTC().Truncate(time.Hour)
		bucket, ok := buckets[hour]
		if !ok {
			bucket = newTrendBucket()
			buckets[hour] = bucket
		}
		bucket.add(obs)
	}

	hours := make([]time.Time, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	if len(hours) > maxHourlyBuckets {
		hours = hours[len(hours)-maxHourlyBuckets:]
	}

	trend := make([]models.HourlyTrend, 0, len(hours))
	for _, hour := range hours {
		bucket := buckets[hour]
		trend = append(trend, models.HourlyTrend{
			Hour:              hour,
			TempAvg:           round1(bucket.tempSum / float64(bucket.count)),
			HumidityAvg:       round1(bucket.humiditySum / float64(bucket.count)),
			DominantCondition: bucket.dominantCondition(),
			WindSpeedAvg:      round1(bucket.windSum / float64(bucket.count)),
		})
	}
	return trend, nil
}

func (b *Builder) buildDailyTrend(city string, now time.Time) ([]models.DailyTrend, error) {
	observations, err := b.store.Observations(city, now.Add(-7*24*time.Hour), now, 0)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*trendBucket)
	for i := len(observations) - 1; i >= 0; i-- {
		obs := observations[i]
		date := obs.Timestamp.UTC().Format("2006-01-02")
		bucket, ok := buckets[date]
		if !ok {
			bucket = newTrendBucket()
			buckets[date] = bucket
		}
		bucket.add(obs)
	}

	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > maxDailyBuckets {
		dates = dates[len(dates)-maxDailyBuckets:]
	}

	trend := make([]models.DailyTrend, 0, len(dates))
	for _, date := range dates {
		bucket := buckets[date]
		trend = append(trend, models.DailyTrend{
			Date:              date,
			TempAvg:           round1(bucket.tempSum / float64(bucket.count)),
			TempMin:           round1(bucket.tempMin),
			TempMax:           round1(bucket.tempMax),
			HumidityAvg:       round1(bucket.humiditySum / float64(bucket.count)),
			DominantCondition: bucket.dominantCondition(),
			RecordsCount:      bucket.count,
		})
	}
	return trend, nil
}

// trendBucket accumulates one hour or day of observations.
type trendBucket struct {
	count       int
	tempSum     float64
	tempMin     float64
	tempMax     float64
	humiditySum float64
	windSum     float64

	conditionCounts map[string]int
	conditionOrder  []string // first-seen order, for deterministic mode ties
}

func newTrendBucket() *trendBucket {
	return &trendBucket{
		tempMin:         math.Inf(1),
		tempMax:         math.Inf(-1),
		conditionCounts: make(map[string]int),
	}
}

func (t *trendBucket) add(obs models.Observation) {
	t.count++
	t.tempSum += obs.Temperature.Current
	t.humiditySum += obs.Humidity
	t.windSum += obs.Wind.Speed
	if obs.Temperature.Min < t.tempMin {
		t.tempMin = obs.Temperature.Min
	}
	if obs.Temperature.Max > t.tempMax {
		t.tempMax = obs.Temperature.Max
	}
	if _, seen := t.conditionCounts[obs.Condition.Main]; !seen {
		t.conditionOrder = append(t.conditionOrder, obs.Condition.Main)
	}
	t.conditionCounts[obs.Condition.Main]++
}

// dominantCondition returns the most frequent condition in the bucket. On a
// tie the condition observed first wins.
func (t *trendBucket) dominantCondition() string {
	best := ""
	bestCount := 0
	for _, condition := range t.conditionOrder {
		if n := t.conditionCounts[condition]; n > bestCount {
			best = condition
			bestCount = n
		}
	}
	return best
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
