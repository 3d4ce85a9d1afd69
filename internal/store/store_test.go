package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weathermon/weathermon/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testObservation(city string, ts time.Time, temp float64) models.Observation {
	return models.Observation{
		City:      city,
		Timestamp: ts,
		Temperature: models.Temperature{
			Current:   temp,
			FeelsLike: temp + 1,
			Min:       temp - 2,
			Max:       temp + 2,
		},
		Humidity:   65,
		Pressure:   1013,
		Condition:  models.Condition{Main: "Clear", Description: "clear sky", Icon: "01d"},
		Wind:       models.Wind{Speed: 3.5, Deg: 180},
		Clouds:     10,
		Visibility: 10000,
	}
}

func TestInsertAndLatestObservation(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertObservation(testObservation("Pune", now.Add(-2*time.Hour), 24)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	id, err := store.InsertObservation(testObservation("Pune", now, 28.5))
	if err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero id")
	}

	latest, err := store.LatestObservation("Pune")
	if err != nil {
		t.Fatalf("LatestObservation: %v", err)
	}
	if latest == nil {
		t.Fatal("LatestObservation returned nil")
	}
	if latest.Temperature.Current != 28.5 {
		t.Errorf("Temperature.Current = %v, want 28.5", latest.Temperature.Current)
	}
	if !latest.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", latest.Timestamp, now)
	}
}

func TestLatestObservationNoData(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.LatestObservation("Nowhere")
	if err != nil {
		t.Fatalf("LatestObservation: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil for city with no data, got %+v", latest)
	}
}

func TestObservationsRangeAndLimit(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		obs := testObservation("Pune", now.Add(-time.Duration(i)*time.Hour), 20+float64(i))
		if _, err := store.InsertObservation(obs); err != nil {
			t.Fatalf("InsertObservation: %v", err)
		}
	}
	// Different city must not leak into the range.
	if _, err := store.InsertObservation(testObservation("Mumbai", now, 30)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	observations, err := store.Observations("Pune", now.Add(-24*time.Hour), now, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 5 {
		t.Fatalf("len(observations) = %d, want 5", len(observations))
	}
	for i := 1; i < len(observations); i++ {
		if observations[i].Timestamp.After(observations[i-1].Timestamp) {
			t.Fatal("observations not sorted newest first")
		}
	}

	limited, err := store.Observations("Pune", now.Add(-24*time.Hour), now, 2)
	if err != nil {
		t.Fatalf("Observations with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestAggregateStats(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	for i, temp := range []float64{20, 25, 30} {
		if _, err := store.InsertObservation(testObservation("Pune", now.Add(-time.Duration(i)*time.Hour), temp)); err != nil {
			t.Fatalf("InsertObservation: %v", err)
		}
	}

	stats, err := store.AggregateStats("Pune", now.Add(-24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.Count != 3 {
		t.Fatalf("Count = %d, want 3", stats.Count)
	}
	if stats.TempAvg != 25 {
		t.Errorf("TempAvg = %v, want 25", stats.TempAvg)
	}
	if stats.TempMin != 20 || stats.TempMax != 30 {
		t.Errorf("TempMin/TempMax = %v/%v, want 20/30", stats.TempMin, stats.TempMax)
	}
	if stats.PressureAvg != 1013 {
		t.Errorf("PressureAvg = %d, want 1013", stats.PressureAvg)
	}
}

func TestWindowBoundaries(t *testing.T) {
	store := setupTestStore(t)
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	if _, err := store.InsertObservation(testObservation("Pune", start, 20)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	if _, err := store.InsertObservation(testObservation("Pune", end, 30)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	// Stats treat the window as a calendar bucket: the reading at the next
	// midnight belongs to the next bucket.
	stats, err := store.AggregateStats("Pune", start, end)
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("stats.Count = %d, want 1 (end exclusive)", stats.Count)
	}

	// Range and histogram serve trailing windows ending now, so the reading
	// stamped exactly at the end must appear.
	observations, err := store.Observations("Pune", start, end, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 2 {
		t.Errorf("len(observations) = %d, want 2 (end inclusive)", len(observations))
	}

	histogram, err := store.ConditionHistogram("Pune", start, end)
	if err != nil {
		t.Fatalf("ConditionHistogram: %v", err)
	}
	if histogram["Clear"] != 2 {
		t.Errorf("histogram = %v, want Clear:2 (end inclusive)", histogram)
	}
}

func TestAggregateStatsEmptyWindow(t *testing.T) {
	store := setupTestStore(t)

	stats, err := store.AggregateStats("Pune", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
	if stats != (models.WeatherStats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestConditionHistogram(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	conditions := []string{"Clear", "Clear", "Rain", "Clouds", "Clear"}
	for i, cond := range conditions {
		obs := testObservation("Pune", now.Add(-time.Duration(i)*time.Minute), 25)
		obs.Condition.Main = cond
		if _, err := store.InsertObservation(obs); err != nil {
			t.Fatalf("InsertObservation: %v", err)
		}
	}

	histogram, err := store.ConditionHistogram("Pune", now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("ConditionHistogram: %v", err)
	}
	if histogram["Clear"] != 3 || histogram["Rain"] != 1 || histogram["Clouds"] != 1 {
		t.Errorf("histogram = %v, want Clear:3 Rain:1 Clouds:1", histogram)
	}
}

func TestSoftDeleteIdempotent(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertObservation(testObservation("Pune", now.AddDate(0, 0, -3), 22)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	if _, err := store.InsertObservation(testObservation("Pune", now, 28)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	cutoff := now.AddDate(0, 0, -2)
	first, err := store.SoftDeleteObservationsBefore(cutoff)
	if err != nil {
		t.Fatalf("SoftDeleteObservationsBefore: %v", err)
	}
	if first != 1 {
		t.Errorf("first sweep touched %d rows, want 1", first)
	}

	second, err := store.SoftDeleteObservationsBefore(cutoff)
	if err != nil {
		t.Fatalf("SoftDeleteObservationsBefore: %v", err)
	}
	if second != 0 {
		t.Errorf("second sweep touched %d rows, want 0", second)
	}
}

func TestSoftDeletedHiddenFromReads(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	old := testObservation("Pune", now.AddDate(0, 0, -3), 22)
	old.Condition.Main = "Rain"
	if _, err := store.InsertObservation(old); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	if _, err := store.SoftDeleteObservationsBefore(now); err != nil {
		t.Fatalf("SoftDeleteObservationsBefore: %v", err)
	}

	latest, err := store.LatestObservation("Pune")
	if err != nil {
		t.Fatalf("LatestObservation: %v", err)
	}
	if latest != nil {
		t.Error("soft-deleted observation returned by LatestObservation")
	}

	observations, err := store.Observations("Pune", now.AddDate(0, 0, -7), now, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 0 {
		t.Error("soft-deleted observation returned by Observations")
	}

	stats, err := store.AggregateStats("Pune", now.AddDate(0, 0, -7), now)
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.Count != 0 {
		t.Error("soft-deleted observation counted by AggregateStats")
	}

	histogram, err := store.ConditionHistogram("Pune", now.AddDate(0, 0, -7), now)
	if err != nil {
		t.Fatalf("ConditionHistogram: %v", err)
	}
	if len(histogram) != 0 {
		t.Error("soft-deleted observation counted by ConditionHistogram")
	}

	// Writing new data must not resurrect it.
	if _, err := store.InsertObservation(testObservation("Pune", now, 28)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	observations, err = store.Observations("Pune", now.AddDate(0, 0, -7), now, 0)
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(observations) != 1 {
		t.Errorf("len(observations) = %d, want 1", len(observations))
	}
}

func TestHardDeleteObservations(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertObservation(testObservation("Pune", now.AddDate(0, 0, -10), 22)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}
	if _, err := store.InsertObservation(testObservation("Pune", now, 28)); err != nil {
		t.Fatalf("InsertObservation: %v", err)
	}

	removed, err := store.HardDeleteObservationsBefore(now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("HardDeleteObservationsBefore: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func testSummary(city string, generatedAt time.Time, tempAvg float64) models.Summary {
	return models.Summary{
		City:        city,
		Kind:        "hourly",
		GeneratedAt: generatedAt,
		Current:     models.CurrentWeather{Temperature: tempAvg, Main: "Clear"},
		Today:       models.TodayStats{TempAvg: tempAvg, RecordsCount: 10},
		HourlyTrend: []models.HourlyTrend{
			{Hour: generatedAt.Truncate(time.Hour), TempAvg: tempAvg, DominantCondition: "Clear"},
		},
		DailyTrend: []models.DailyTrend{
			{Date: generatedAt.Format("2006-01-02"), TempAvg: tempAvg, DominantCondition: "Clear", RecordsCount: 10},
		},
		ConditionDistribution: map[string]int{"Clear": 10},
	}
}

func TestUpsertSummaryReplaces(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertSummary(testSummary("Pune", now, 25)); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}
	if err := store.UpsertSummary(testSummary("Pune", now.Add(time.Hour), 30)); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}

	count, err := store.SummaryCount("Pune")
	if err != nil {
		t.Fatalf("SummaryCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("SummaryCount = %d, want 1", count)
	}

	summary, err := store.LatestSummary("Pune", "hourly")
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if summary == nil {
		t.Fatal("LatestSummary returned nil")
	}
	if summary.Today.TempAvg != 30 {
		t.Errorf("Today.TempAvg = %v, want 30 (second write must win)", summary.Today.TempAvg)
	}
	if !summary.GeneratedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("GeneratedAt = %v, want %v", summary.GeneratedAt, now.Add(time.Hour))
	}
	if summary.ConditionDistribution["Clear"] != 10 {
		t.Errorf("ConditionDistribution = %v", summary.ConditionDistribution)
	}
	if len(summary.HourlyTrend) != 1 || summary.HourlyTrend[0].TempAvg != 30 {
		t.Errorf("HourlyTrend = %+v", summary.HourlyTrend)
	}
}

func TestLatestSummaryNone(t *testing.T) {
	store := setupTestStore(t)

	summary, err := store.LatestSummary("Pune", "hourly")
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil, got %+v", summary)
	}
}

func TestPruneSummaries(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	older := testSummary("Pune", now.Add(-time.Hour), 20)
	older.Kind = "daily"
	if err := store.UpsertSummary(older); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}
	if err := store.UpsertSummary(testSummary("Pune", now, 25)); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}

	pruned, err := store.PruneSummaries("Pune", 1)
	if err != nil {
		t.Fatalf("PruneSummaries: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	count, err := store.SummaryCount("Pune")
	if err != nil {
		t.Fatalf("SummaryCount: %v", err)
	}
	if count != 1 {
		t.Errorf("SummaryCount = %d, want 1", count)
	}
}

func testAlert(city string, alertType models.AlertType, triggeredAt time.Time) models.Alert {
	return models.Alert{
		City:        city,
		Type:        alertType,
		Severity:    models.SeverityWarning,
		Message:     "test alert",
		TriggeredAt: triggeredAt,
		Condition: models.AlertCondition{
			ThresholdType:  "temperature",
			ThresholdValue: 35,
			ActualValue:    36.5,
			Operator:       ">",
			Unit:           "°C",
		},
		Metadata: map[string]any{"temperature": 36.5, "weather_main": "Clear"},
	}
}

func TestInsertAndGetAlert(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	id, err := store.InsertAlert(testAlert("Pune", models.AlertHighTemperature, now))
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	alert, err := store.GetAlert(id)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if alert == nil {
		t.Fatal("GetAlert returned nil")
	}
	if alert.Type != models.AlertHighTemperature {
		t.Errorf("Type = %v, want HIGH_TEMPERATURE", alert.Type)
	}
	if alert.Condition.ActualValue != 36.5 {
		t.Errorf("Condition.ActualValue = %v, want 36.5", alert.Condition.ActualValue)
	}
	if alert.Metadata["weather_main"] != "Clear" {
		t.Errorf("Metadata = %v", alert.Metadata)
	}
	if alert.IsAcknowledged {
		t.Error("new alert must not be acknowledged")
	}

	missing, err := store.GetAlert(99999)
	if err != nil {
		t.Fatalf("GetAlert missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestHasRecentAlert(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertAlert(testAlert("Pune", models.AlertHighTemperature, now.Add(-30*time.Minute))); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	recent, err := store.HasRecentAlert("Pune", models.AlertHighTemperature, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HasRecentAlert: %v", err)
	}
	if !recent {
		t.Error("expected alert within window")
	}

	recent, err = store.HasRecentAlert("Pune", models.AlertHighTemperature, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("HasRecentAlert: %v", err)
	}
	if recent {
		t.Error("alert outside window must not count")
	}

	recent, err = store.HasRecentAlert("Pune", models.AlertLowTemperature, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HasRecentAlert: %v", err)
	}
	if recent {
		t.Error("different alert type must not count")
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	id, err := store.InsertAlert(testAlert("Pune", models.AlertHighTemperature, now))
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	if err := store.AcknowledgeAlert(id, "ops", now); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}

	alert, err := store.GetAlert(id)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if !alert.IsAcknowledged {
		t.Error("alert not acknowledged")
	}
	if !alert.AcknowledgedBy.Valid || alert.AcknowledgedBy.String != "ops" {
		t.Errorf("AcknowledgedBy = %+v, want ops", alert.AcknowledgedBy)
	}

	// Second acknowledge touches no row.
	if err := store.AcknowledgeAlert(id, "ops", now); err != ErrNotFound {
		t.Errorf("second acknowledge err = %v, want ErrNotFound", err)
	}
	if err := store.AcknowledgeAlert(99999, "ops", now); err != ErrNotFound {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestActiveAndRecentAlerts(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	ackID, err := store.InsertAlert(testAlert("Pune", models.AlertHighTemperature, now.Add(-2*time.Hour)))
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if _, err := store.InsertAlert(testAlert("Pune", models.AlertHighHumidity, now.Add(-30*time.Minute))); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if _, err := store.InsertAlert(testAlert("Mumbai", models.AlertHighTemperature, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := store.AcknowledgeAlert(ackID, "ops", now); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}

	active, err := store.ActiveAlerts("Pune", 50)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 1 || active[0].Type != models.AlertHighHumidity {
		t.Errorf("active = %+v, want single HIGH_HUMIDITY", active)
	}

	allActive, err := store.ActiveAlerts("", 50)
	if err != nil {
		t.Fatalf("ActiveAlerts all cities: %v", err)
	}
	if len(allActive) != 2 {
		t.Errorf("len(allActive) = %d, want 2", len(allActive))
	}

	recent, err := store.RecentAlerts("Pune", now.Add(-24*time.Hour), 50)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("len(recent) = %d, want 2", len(recent))
	}
	if len(recent) == 2 && recent[0].TriggeredAt.Before(recent[1].TriggeredAt) {
		t.Error("recent alerts not sorted newest first")
	}
}

func TestAlertStats(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	a := testAlert("Pune", models.AlertHighTemperature, now.Add(-30*time.Minute))
	a.Severity = models.SeverityCritical
	if _, err := store.InsertAlert(a); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	ackID, err := store.InsertAlert(testAlert("Pune", models.AlertHighHumidity, now.Add(-48*time.Hour)))
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := store.AcknowledgeAlert(ackID, "ops", now); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}

	stats, err := store.AlertStats("Pune", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("AlertStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.Recent != 1 {
		t.Errorf("Recent = %d, want 1", stats.Recent)
	}
	if stats.BySeverity["critical"] != 1 || stats.BySeverity["warning"] != 1 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if stats.ByType["HIGH_TEMPERATURE"] != 1 || stats.ByType["HIGH_HUMIDITY"] != 1 {
		t.Errorf("ByType = %v", stats.ByType)
	}
}

func TestHardDeleteAlerts(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertAlert(testAlert("Pune", models.AlertHighTemperature, now.AddDate(0, 0, -40))); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if _, err := store.InsertAlert(testAlert("Pune", models.AlertHighHumidity, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	removed, err := store.HardDeleteAlertsBefore(now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("HardDeleteAlertsBefore: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
