package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weathermon/weathermon/internal/models"
)

const alertColumns = `id, city, alert_type, severity, message, triggered_at,
	condition_json, metadata_json, is_acknowledged, acknowledged_at, acknowledged_by`

// InsertAlert records a fired rule instance and returns its id.
func (s *Store) InsertAlert(alert models.Alert) (int64, error) {
	conditionJSON, err := json.Marshal(alert.Condition)
	if err != nil {
		return 0, fmt.Errorf("marshal condition: %w", err)
	}
	metadataJSON, err := json.Marshal(alert.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO alerts (city, alert_type, severity, message, triggered_at, condition_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, alert.City, string(alert.Type), string(alert.Severity), alert.Message,
		alert.TriggeredAt.UTC(), string(conditionJSON), string(metadataJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAlert returns one alert by id, or (nil, nil) when it does not exist.
func (s *Store) GetAlert(id int64) (*models.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// HasRecentAlert reports whether an alert of the same (city, type) was
// triggered at or after since. This is the cooldown lookup; keeping it in
// the store rather than process memory makes evaluation safe across
// restarts and multiple evaluator instances.
func (s *Store) HasRecentAlert(city string, alertType models.AlertType, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE city = ? AND alert_type = ? AND triggered_at >= ?
	`, city, string(alertType), since.UTC()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveAlerts returns unacknowledged alerts, newest first. An empty city
// matches all cities.
func (s *Store) ActiveAlerts(city string, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE is_acknowledged = FALSE`
	var args []any
	if city != "" {
		query += ` AND city = ?`
		args = append(args, city)
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`
	args = append(args, limit)
	return s.queryAlerts(query, args...)
}

// RecentAlerts returns alerts triggered at or after since, newest first.
func (s *Store) RecentAlerts(city string, since time.Time, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE triggered_at >= ?`
	args := []any{since.UTC()}
	if city != "" {
		query += ` AND city = ?`
		args = append(args, city)
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`
	args = append(args, limit)
	return s.queryAlerts(query, args...)
}

// AcknowledgeAlert marks an alert acknowledged. Returns ErrNotFound when the
// id does not exist or the update touches no row.
func (s *Store) AcknowledgeAlert(id int64, by string, now time.Time) error {
	res, err := s.db.Exec(`
		UPDATE alerts
		SET is_acknowledged = TRUE, acknowledged_at = ?, acknowledged_by = ?
		WHERE id = ? AND is_acknowledged = FALSE
	`, now.UTC(), by, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AlertStats aggregates alert counts. Totals and breakdowns cover the whole
// log (city-filtered); recent counts alerts triggered at or after since.
func (s *Store) AlertStats(city string, since time.Time) (models.AlertStats, error) {
	stats := models.AlertStats{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}

	cityClause := ""
	var cityArgs []any
	if city != "" {
		cityClause = ` AND city = ?`
		cityArgs = append(cityArgs, city)
	}

	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_acknowledged = FALSE THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN triggered_at >= ? THEN 1 ELSE 0 END), 0)
		FROM alerts WHERE 1=1`+cityClause,
		append([]any{since.UTC()}, cityArgs...)...)
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Recent); err != nil {
		return models.AlertStats{}, err
	}

	rows, err := s.db.Query(`
		SELECT severity, COUNT(*) FROM alerts WHERE 1=1`+cityClause+` GROUP BY severity`, cityArgs...)
	if err != nil {
		return models.AlertStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return models.AlertStats{}, err
		}
		stats.BySeverity[severity] = n
	}
	if err := rows.Err(); err != nil {
		return models.AlertStats{}, err
	}

	typeRows, err := s.db.Query(`
		SELECT alert_type, COUNT(*) FROM alerts WHERE 1=1`+cityClause+` GROUP BY alert_type`, cityArgs...)
	if err != nil {
		return models.AlertStats{}, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var alertType string
		var n int
		if err := typeRows.Scan(&alertType, &n); err != nil {
			return models.AlertStats{}, err
		}
		stats.ByType[alertType] = n
	}
	return stats, typeRows.Err()
}

// HardDeleteAlertsBefore physically removes alerts triggered before cutoff
// and returns the number removed.
func (s *Store) HardDeleteAlertsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM alerts WHERE triggered_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryAlerts(query string, args ...any) ([]models.Alert, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var alertType, severity string
	var conditionJSON string
	var metadataJSON sql.NullString
	err := row.Scan(&alert.ID, &alert.City, &alertType, &severity, &alert.Message,
		&alert.TriggeredAt, &conditionJSON, &metadataJSON,
		&alert.IsAcknowledged, &alert.AcknowledgedAt, &alert.AcknowledgedBy)
	if err != nil {
		return nil, err
	}
	alert.Type = models.AlertType(alertType)
	alert.Severity = models.AlertSeverity(severity)
	if err := json.Unmarshal([]byte(conditionJSON), &alert.Condition); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &alert.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &alert, nil
}
