package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/weathermon/weathermon/internal/models"
)

// UpsertSummary replaces the live summary for (city, kind). The previous
// snapshot is overwritten in full, never merged.
func (s *Store) UpsertSummary(summary models.Summary) error {
	currentJSON, err := json.Marshal(summary.Current)
	if err != nil {
		return fmt.Errorf("marshal current: %w", err)
	}
	todayJSON, err := json.Marshal(summary.Today)
	if err != nil {
		return fmt.Errorf("marshal today: %w", err)
	}
	hourlyJSON, err := json.Marshal(summary.HourlyTrend)
	if err != nil {
		return fmt.Errorf("marshal hourly trend: %w", err)
	}
	dailyJSON, err := json.Marshal(summary.DailyTrend)
	if err != nil {
		return fmt.Errorf("marshal daily trend: %w", err)
	}
	distJSON, err := json.Marshal(summary.ConditionDistribution)
	if err != nil {
		return fmt.Errorf("marshal distribution: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO summaries (city, kind, generated_at, current_json, today_json,
			hourly_trend_json, daily_trend_json, distribution_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city, kind) DO UPDATE SET
			generated_at = excluded.generated_at,
			current_json = excluded.current_json,
			today_json = excluded.today_json,
			hourly_trend_json = excluded.hourly_trend_json,
			daily_trend_json = excluded.daily_trend_json,
			distribution_json = excluded.distribution_json
	`, summary.City, summary.Kind, summary.GeneratedAt.UTC(),
		string(currentJSON), string(todayJSON), string(hourlyJSON), string(dailyJSON), string(distJSON))
	return err
}

// LatestSummary returns the live summary for a (city, kind) pair, or
// (nil, nil) when none has been generated yet.
func (s *Store) LatestSummary(city, kind string) (*models.Summary, error) {
	row := s.db.QueryRow(`
		SELECT id, city, kind, generated_at, current_json, today_json,
			hourly_trend_json, daily_trend_json, distribution_json
		FROM summaries
		WHERE city = ? AND kind = ?
	`, city, kind)

	var summary models.Summary
	var currentJSON, todayJSON, hourlyJSON, dailyJSON, distJSON string
	err := row.Scan(&summary.ID, &summary.City, &summary.Kind, &summary.GeneratedAt,
		&currentJSON, &todayJSON, &hourlyJSON, &dailyJSON, &distJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(currentJSON), &summary.Current); err != nil {
		return nil, fmt.Errorf("unmarshal current: %w", err)
	}
	if err := json.Unmarshal([]byte(todayJSON), &summary.Today); err != nil {
		return nil, fmt.Errorf("unmarshal today: %w", err)
	}
	if err := json.Unmarshal([]byte(hourlyJSON), &summary.HourlyTrend); err != nil {
		return nil, fmt.Errorf("unmarshal hourly trend: %w", err)
	}
	if err := json.Unmarshal([]byte(dailyJSON), &summary.DailyTrend); err != nil {
		return nil, fmt.Errorf("unmarshal daily trend: %w", err)
	}
	if err := json.Unmarshal([]byte(distJSON), &summary.ConditionDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal distribution: %w", err)
	}
	return &summary, nil
}

// SummaryCount returns the number of stored summaries for a city.
func (s *Store) SummaryCount(city string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM summaries WHERE city = ?`, city).Scan(&n)
	return n, err
}

// PruneSummaries deletes all but the most recently generated keepLatest
// summaries for a city and returns the number removed.
func (s *Store) PruneSummaries(city string, keepLatest int) (int64, error) {
	if keepLatest < 1 {
		keepLatest = 1
	}
	res, err := s.db.Exec(`
		DELETE FROM summaries
		WHERE city = ? AND id NOT IN (
			SELECT id FROM summaries
			WHERE city = ?
			ORDER BY generated_at DESC
			LIMIT ?
		)
	`, city, city, keepLatest)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
