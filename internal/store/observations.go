package store

import (
	"database/sql"
	"time"

	"github.com/weathermon/weathermon/internal/models"
)

const observationColumns = `id, city, timestamp, temp, feels_like, temp_min, temp_max,
	humidity, pressure, condition_main, condition_description, condition_icon,
	wind_speed, wind_deg, wind_gust, clouds, visibility, sunrise, sunset,
	raw_json, is_deleted, created_at`

// InsertObservation appends a raw reading and returns its id. Duplicate
// (city, timestamp) pairs are tolerated; there is no uniqueness constraint.
func (s *Store) InsertObservation(obs models.Observation) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO observations (city, timestamp, temp, feels_like, temp_min, temp_max,
			humidity, pressure, condition_main, condition_description, condition_icon,
			wind_speed, wind_deg, wind_gust, clouds, visibility, sunrise, sunset, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, obs.City, obs.Timestamp.UTC(), obs.Temperature.Current, obs.Temperature.FeelsLike,
		obs.Temperature.Min, obs.Temperature.Max, obs.Humidity, obs.Pressure,
		obs.Condition.Main, obs.Condition.Description, obs.Condition.Icon,
		obs.Wind.Speed, obs.Wind.Deg, obs.Wind.Gust, obs.Clouds, obs.Visibility,
		obs.Sunrise, obs.Sunset, obs.RawJSON)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestObservation returns the most recent non-deleted reading for a city,
// or (nil, nil) when the city has no data yet.
func (s *Store) LatestObservation(city string) (*models.Observation, error) {
	row := s.db.QueryRow(`
		SELECT `+observationColumns+`
		FROM observations
		WHERE city = ? AND is_deleted = FALSE
		ORDER BY timestamp DESC
		LIMIT 1
	`, city)

	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// Observations returns non-deleted readings in [start, end], newest first.
// limit <= 0 means no limit. The end bound is inclusive: trend windows end
// at the current instant and a reading stamped exactly then must appear.
func (s *Store) Observations(city string, start, end time.Time, limit int) ([]models.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE city = ? AND is_deleted = FALSE AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC`
	args := []any{city, start.UTC(), end.UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// AggregateStats computes grouped statistics over non-deleted readings in
// [start, end). Returns a zero-valued WeatherStats when the window is empty.
// Unlike Observations and ConditionHistogram the end bound is exclusive:
// stats windows are calendar buckets, and a reading stamped exactly at the
// next day's midnight belongs to the next bucket, not this one.
func (s *Store) AggregateStats(city string, start, end time.Time) (models.WeatherStats, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(AVG(temp), 0), COALESCE(MIN(temp), 0), COALESCE(MAX(temp), 0),
			COALESCE(AVG(humidity), 0), COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0),
			COALESCE(AVG(pressure), 0), COALESCE(AVG(wind_speed), 0)
		FROM observations
		WHERE city = ? AND is_deleted = FALSE AND timestamp >= ? AND timestamp < ?
	`, city, start.UTC(), end.UTC())

	var st models.WeatherStats
	var pressureAvg float64
	if err := row.Scan(&st.Count, &st.TempAvg, &st.TempMin, &st.TempMax,
		&st.HumidityAvg, &st.HumidityMin, &st.HumidityMax, &pressureAvg, &st.WindSpeedAvg); err != nil {
		return models.WeatherStats{}, err
	}
	st.PressureAvg = int(pressureAvg + 0.5)
	if st.Count == 0 {
		return models.WeatherStats{}, nil
	}
	return st, nil
}

// ConditionHistogram counts readings per condition group in [start, end].
func (s *Store) ConditionHistogram(city string, start, end time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT condition_main, COUNT(*) AS n
		FROM observations
		WHERE city = ? AND is_deleted = FALSE AND timestamp >= ? AND timestamp <= ?
		GROUP BY condition_main
		ORDER BY n DESC
	`, city, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	histogram := make(map[string]int)
	for rows.Next() {
		var condition string
		var count int
		if err := rows.Scan(&condition, &count); err != nil {
			return nil, err
		}
		histogram[condition] = count
	}
	return histogram, rows.Err()
}

// SoftDeleteObservationsBefore marks readings older than cutoff as deleted
// and returns the number of rows touched. Already-deleted rows are skipped,
// so a repeat call with the same cutoff touches zero rows.
func (s *Store) SoftDeleteObservationsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE observations SET is_deleted = TRUE
		WHERE timestamp < ? AND is_deleted = FALSE
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HardDeleteObservationsBefore physically removes readings older than
// cutoff, soft-deleted or not, and returns the number removed.
func (s *Store) HardDeleteObservationsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM observations WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*models.Observation, error) {
	var obs models.Observation
	var rawJSON sql.NullString
	var description, icon sql.NullString
	err := row.Scan(&obs.ID, &obs.City, &obs.Timestamp,
		&obs.Temperature.Current, &obs.Temperature.FeelsLike,
		&obs.Temperature.Min, &obs.Temperature.Max,
		&obs.Humidity, &obs.Pressure,
		&obs.Condition.Main, &description, &icon,
		&obs.Wind.Speed, &obs.Wind.Deg, &obs.Wind.Gust,
		&obs.Clouds, &obs.Visibility, &obs.Sunrise, &obs.Sunset,
		&rawJSON, &obs.IsDeleted, &obs.CreatedAt)
	if err != nil {
		return nil, err
	}
	obs.Condition.Description = description.String
	obs.Condition.Icon = icon.String
	obs.RawJSON = rawJSON.String
	return &obs, nil
}
