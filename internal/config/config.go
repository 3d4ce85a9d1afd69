package config

import "time"

// Config carries every tunable of the monitoring pipeline. Fields are
// populated by kong from flags, environment variables and an optional .env
// file; the defaults mirror production settings.
type Config struct {
	City string `name:"city" env:"OPENWEATHER_CITY" default:"Pune" help:"City to monitor."`

	Provider  ProviderConfig  `embed:"" prefix:"provider-"`
	Alerts    AlertConfig     `embed:"" prefix:"alert-"`
	Retention RetentionConfig `embed:"" prefix:"retention-"`
	Schedule  ScheduleConfig  `embed:"" prefix:"schedule-"`
}

// ProviderConfig configures the external weather-data provider.
type ProviderConfig struct {
	BaseURL     string        `env:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5" help:"Provider API base URL."`
	APIKey      string        `env:"OPENWEATHER_API_KEY" help:"Provider API key."`
	Units       string        `env:"OPENWEATHER_UNITS" default:"metric" help:"Temperature units requested from the provider."`
	CountryCode string        `env:"OPENWEATHER_COUNTRY_CODE" default:"IN" help:"Country code appended to city queries."`
	Timeout     time.Duration `env:"OPENWEATHER_TIMEOUT" default:"10s" help:"Hard timeout on provider fetches."`
}

// AlertConfig holds the fixed rule thresholds and the cooldown window.
type AlertConfig struct {
	TempHigh     float64       `env:"ALERT_TEMP_HIGH" default:"35" help:"High temperature threshold in °C."`
	TempLow      float64       `env:"ALERT_TEMP_LOW" default:"5" help:"Low temperature threshold in °C."`
	HumidityHigh float64       `env:"ALERT_HUMIDITY_HIGH" default:"80" help:"High humidity threshold in %."`
	Extreme      []string      `env:"ALERT_EXTREME_WEATHER" default:"Storm,Thunderstorm,Tornado,Hurricane" help:"Condition groups treated as extreme weather."`
	Cooldown     time.Duration `env:"ALERT_COOLDOWN" default:"60m" help:"Minimum time between two alerts of the same city and type."`
}

// RetentionConfig holds the pruning windows.
type RetentionConfig struct {
	SoftDays  int `env:"DATA_RETENTION_DAYS" default:"2" help:"Days of raw observations kept visible before soft delete."`
	HardDays  int `env:"DATA_HARD_DELETE_DAYS" default:"7" help:"Days before observations are physically removed."`
	AlertDays int `env:"ALERT_RETENTION_DAYS" default:"30" help:"Days before alerts are physically removed."`
}

// ScheduleConfig holds the periodic job intervals.
type ScheduleConfig struct {
	IngestEvery    time.Duration `env:"INGEST_INTERVAL" default:"10m" help:"Observation ingestion interval."`
	AlertsEvery    time.Duration `env:"ALERTS_INTERVAL" default:"15m" help:"Alert evaluation interval."`
	AggregateEvery time.Duration `env:"AGGREGATE_INTERVAL" default:"1h" help:"Summary aggregation interval."`
	SweepHourUTC   int           `env:"SWEEP_HOUR_UTC" default:"2" help:"UTC hour at which the daily retention sweep runs."`
}

// IsExtreme reports whether a condition group is in the extreme set.
func (c AlertConfig) IsExtreme(condition string) bool {
	for _, e := range c.Extreme {
		if e == condition {
			return true
		}
	}
	return false
}
