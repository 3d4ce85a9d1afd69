package models

import (
	"database/sql"
	"time"
)

// Temperature holds the temperature block of one reading, in °C.
type Temperature struct {
	Current   float64 `json:"current"`
	FeelsLike float64 `json:"feels_like"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// Condition is the provider's weather classification for a reading.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Wind struct {
	Speed float64         `json:"speed"`
	Deg   int             `json:"deg"`
	Gust  sql.NullFloat64 `json:"-"`
}

// Observation is one raw weather reading for a city. Immutable after
// insertion except for the soft-delete flag.
type Observation struct {
	ID          int64
	City        string
	Timestamp   time.Time
	Temperature Temperature
	Humidity    float64
	Pressure    int
	Condition   Condition
	Wind        Wind
	Clouds      int
	Visibility  int
	Sunrise     sql.NullTime
	Sunset      sql.NullTime
	RawJSON     string
	IsDeleted   bool
	CreatedAt   time.Time
}

// WeatherStats is the grouped aggregation over a time window of observations.
// Count == 0 means the window was empty and the remaining fields are zero.
type WeatherStats struct {
	TempAvg      float64
	TempMin      float64
	TempMax      float64
	HumidityAvg  float64
	HumidityMin  float64
	HumidityMax  float64
	PressureAvg  int
	WindSpeedAvg float64
	Count        int
}

// CurrentWeather is the latest-reading snapshot embedded in a summary.
type CurrentWeather struct {
	Temperature float64    `json:"temperature"`
	FeelsLike   float64    `json:"feels_like"`
	Humidity    float64    `json:"humidity"`
	Pressure    int        `json:"pressure"`
	Main        string     `json:"weather_main"`
	Description string     `json:"weather_description"`
	Icon        string     `json:"weather_icon"`
	WindSpeed   float64    `json:"wind_speed"`
	WindDeg     int        `json:"wind_deg"`
	Clouds      int        `json:"clouds"`
	Visibility  int        `json:"visibility"`
	Sunrise     *time.Time `json:"sunrise,omitempty"`
	Sunset      *time.Time `json:"sunset,omitempty"`
}

// TodayStats aggregates the current UTC day's observations.
type TodayStats struct {
	TempAvg      float64 `json:"temp_avg"`
	TempMin      float64 `json:"temp_min"`
	TempMax      float64 `json:"temp_max"`
	HumidityAvg  float64 `json:"humidity_avg"`
	HumidityMin  float64 `json:"humidity_min"`
	HumidityMax  float64 `json:"humidity_max"`
	PressureAvg  int     `json:"pressure_avg"`
	WindSpeedAvg float64 `json:"wind_speed_avg"`
	RecordsCount int     `json:"records_count"`
}

// HourlyTrend is one hour bucket within the 24h trend, oldest first.
type HourlyTrend struct {
	Hour              time.Time `json:"hour"`
	TempAvg           float64   `json:"temp_avg"`
	HumidityAvg       float64   `json:"humidity_avg"`
	DominantCondition string    `json:"dominant_condition"`
	WindSpeedAvg      float64   `json:"wind_speed_avg"`
}

// DailyTrend is one calendar-day bucket within the 7d trend, oldest first.
type DailyTrend struct {
	Date              string  `json:"date"` // YYYY-MM-DD
	TempAvg           float64 `json:"temp_avg"`
	TempMin           float64 `json:"temp_min"`
	TempMax           float64 `json:"temp_max"`
	HumidityAvg       float64 `json:"humidity_avg"`
	DominantCondition string  `json:"dominant_condition"`
	RecordsCount      int     `json:"records_count"`
}

// Summary is the pre-aggregated dashboard snapshot for a (city, kind) pair.
// Regenerated wholesale on every aggregation run; there is at most one live
// row per key.
type Summary struct {
	ID                    int64
	City                  string
	Kind                  string
	GeneratedAt           time.Time
	Current               CurrentWeather
	Today                 TodayStats
	HourlyTrend           []HourlyTrend
	DailyTrend            []DailyTrend
	ConditionDistribution map[string]int
}

type AlertType string

const (
	AlertHighTemperature AlertType = "HIGH_TEMPERATURE"
	AlertLowTemperature  AlertType = "LOW_TEMPERATURE"
	AlertHighHumidity    AlertType = "HIGH_HUMIDITY"
	AlertExtremeWeather  AlertType = "EXTREME_WEATHER"
	AlertWindSpeed       AlertType = "WIND_SPEED"
	AlertVisibility      AlertType = "VISIBILITY"
)

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertCondition records the comparison that tripped a rule.
type AlertCondition struct {
	ThresholdType  string  `json:"threshold_type"`
	ThresholdValue float64 `json:"threshold_value"`
	ActualValue    float64 `json:"actual_value"`
	Operator       string  `json:"operator"`
	Unit           string  `json:"unit,omitempty"`
}

// Alert is one fired rule instance. Mutable only via acknowledge.
type Alert struct {
	ID             int64
	City           string
	Type           AlertType
	Severity       AlertSeverity
	Message        string
	TriggeredAt    time.Time
	Condition      AlertCondition
	IsAcknowledged bool
	AcknowledgedAt sql.NullTime
	AcknowledgedBy sql.NullString
	Metadata       map[string]any
}

// AlertStats is a pure read aggregation over the alert log.
type AlertStats struct {
	Total      int
	Active     int
	Recent     int
	BySeverity map[string]int
	ByType     map[string]int
}

// AlertDigest summarizes alert activity over a lookback period.
type AlertDigest struct {
	City        string
	PeriodHours int
	Total       int
	BySeverity  map[string]int
	ByType      map[string]int
	Alerts      []Alert
}
