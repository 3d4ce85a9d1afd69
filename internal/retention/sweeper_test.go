package retention

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/models"
	"github.com/weathermon/weathermon/internal/store"
)

func setupSweeper(t *testing.T, now time.Time) (*Sweeper, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := NewSweeper(st, config.RetentionConfig{SoftDays: 2, HardDays: 7, AlertDays: 30})
	s.now = func() time.Time { return now }
	return s, st
}

func insertObservationAt(t *testing.T, st *store.Store, ts time.Time) {
	t.Helper()
	_, err := st.InsertObservation(models.Observation{
		City:        "Pune",
		Timestamp:   ts,
		Temperature: models.Temperature{Current: 25},
		Humidity:    60,
		Pressure:    1010,
		Condition:   models.Condition{Main: "Clear"},
	})
	if err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
}

func insertAlertAt(t *testing.T, st *store.Store, ts time.Time) {
	t.Helper()
	_, err := st.InsertAlert(models.Alert{
		City:        "Pune",
		Type:        models.AlertHighTemperature,
		Severity:    models.SeverityWarning,
		Message:     "test",
		TriggeredAt: ts,
	})
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
}

func TestSoftSweepIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	s, st := setupSweeper(t, now)

	insertObservationAt(t, st, now.AddDate(0, 0, -3)) // past soft window
	insertObservationAt(t, st, now.AddDate(0, 0, -1)) // inside soft window
	insertObservationAt(t, st, now)

	n, err := s.SoftSweep()
	if err != nil {
		t.Fatalf("SoftSweep: %v", err)
	}
	if n != 1 {
		t.Errorf("first sweep = %d, want 1", n)
	}

	n, err = s.SoftSweep()
	if err != nil {
		t.Fatalf("second SoftSweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep = %d, want 0", n)
	}

	// Recent observations stay readable.
	observations, err := st.Observations("Pune", now.AddDate(0, 0, -7), now, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 2 {
		t.Errorf("len(observations) = %d, want 2", len(observations))
	}
}

func TestHardSweep(t *testing.T) {
	now := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	s, st := setupSweeper(t, now)

	insertObservationAt(t, st, now.AddDate(0, 0, -10))
	insertObservationAt(t, st, now.AddDate(0, 0, -1))
	insertAlertAt(t, st, now.AddDate(0, 0, -40))
	insertAlertAt(t, st, now.AddDate(0, 0, -5))

	obsRemoved, alertsRemoved, err := s.HardSweep()
	if err != nil {
		t.Fatalf("HardSweep: %v", err)
	}
	if obsRemoved != 1 {
		t.Errorf("obsRemoved = %d, want 1", obsRemoved)
	}
	if alertsRemoved != 1 {
		t.Errorf("alertsRemoved = %d, want 1", alertsRemoved)
	}

	// Survivors untouched.
	remaining, err := st.RecentAlerts("Pune", now.AddDate(0, 0, -60), 50)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("len(remaining alerts) = %d, want 1", len(remaining))
	}
}

func TestSweepFullPass(t *testing.T) {
	now := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	s, st := setupSweeper(t, now)

	insertObservationAt(t, st, now.AddDate(0, 0, -10))
	insertObservationAt(t, st, now.AddDate(0, 0, -3))
	insertObservationAt(t, st, now)
	insertAlertAt(t, st, now.AddDate(0, 0, -40))

	// Two summary kinds; the sweep keeps only the latest row per city.
	for i, kind := range []string{"daily", "hourly"} {
		err := st.UpsertSummary(models.Summary{
			City:        "Pune",
			Kind:        kind,
			GeneratedAt: now.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("UpsertSummary: %v", err)
		}
	}

	if err := s.Sweep("Pune"); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	observations, err := st.Observations("Pune", now.AddDate(0, 0, -30), now, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 1 {
		t.Errorf("len(observations) = %d, want 1 visible", len(observations))
	}

	alerts, err := st.RecentAlerts("Pune", now.AddDate(0, 0, -60), 50)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("len(alerts) = %d, want 0", len(alerts))
	}

	count, err := st.SummaryCount("Pune")
	if err != nil {
		t.Fatalf("SummaryCount: %v", err)
	}
	if count != 1 {
		t.Errorf("SummaryCount = %d, want 1", count)
	}

	// Re-running the full pass is safe.
	if err := s.Sweep("Pune"); err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
}
