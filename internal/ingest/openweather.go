package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/metrics"
	"github.com/weathermon/weathermon/internal/models"
)

// Client fetches current-weather snapshots from the OpenWeatherMap API.
type Client struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchCurrent retrieves one snapshot for a city and normalizes it into the
// canonical observation shape. Failures are typed as *FetchError; a timeout
// surfaces as FetchUnavailable.
func (c *Client) FetchCurrent(ctx context.Context, city string) (*models.Observation, error) {
	q := url.Values{}
	location := city
	if c.cfg.CountryCode != "" {
		location = city + "," + c.cfg.CountryCode
	}
	q.Set("q", location)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", c.cfg.Units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fetchErr(FetchTransport, "build request", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ProviderAPILatency.WithLabelValues(city).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(err) {
			metrics.ProviderAPICallsTotal.WithLabelValues(city, "timeout").Inc()
			return nil, fetchErr(FetchUnavailable, "request timed out", err)
		}
		metrics.ProviderAPICallsTotal.WithLabelValues(city, "error").Inc()
		return nil, fetchErr(FetchTransport, "request failed", err)
	}
	defer resp.Body.Close()

	metrics.ProviderAPICallsTotal.WithLabelValues(city, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fetchErr(FetchUnavailable, fmt.Sprintf("status %d: %s", resp.StatusCode, string(b)), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(FetchTransport, "read body", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fetchErr(FetchMalformed, "decode response", err)
	}

	obs := transform(city, payload, body, time.Now().UTC())
	return &obs, nil
}

// transform maps the provider payload onto the canonical observation using
// safe coercion: missing or mistyped numeric fields become 0 rather than
// failing the whole ingestion. A degraded record beats no record.
func transform(requestedCity string, payload map[string]any, raw []byte, now time.Time) models.Observation {
	main := asMap(payload["main"])
	wind := asMap(payload["wind"])
	clouds := asMap(payload["clouds"])
	sys := asMap(payload["sys"])

	var condition models.Condition
	condition.Main = "Unknown"
	if list, ok := payload["weather"].([]any); ok && len(list) > 0 {
		w := asMap(list[0])
		condition.Main = safeString(w["main"], "Unknown")
		condition.Description = safeString(w["description"], "")
		condition.Icon = safeString(w["icon"], "")
	}

	timestamp := now
	if dt := safeFloat(payload["dt"]); dt > 0 {
		timestamp = time.Unix(int64(dt), 0).UTC()
	}

	obs := models.Observation{
		City:      safeString(payload["name"], requestedCity),
		Timestamp: timestamp,
		Temperature: models.Temperature{
			Current:   safeFloat(main["temp"]),
			FeelsLike: safeFloat(main["feels_like"]),
			Min:       safeFloat(main["temp_min"]),
			Max:       safeFloat(main["temp_max"]),
		},
		Humidity: safeFloat(main["humidity"]),
		Pressure: safeInt(main["pressure"]),
		Condition: condition,
		Wind: models.Wind{
			Speed: safeFloat(wind["speed"]),
			Deg:   safeInt(wind["deg"]),
		},
		Clouds:     safeInt(clouds["all"]),
		Visibility: safeInt(payload["visibility"]),
		RawJSON:    string(raw),
	}

	if gust, ok := numeric(wind["gust"]); ok {
		obs.Wind.Gust = sql.NullFloat64{Float64: gust, Valid: true}
	}
	if sunrise, ok := numeric(sys["sunrise"]); ok && sunrise > 0 {
		obs.Sunrise = sql.NullTime{Time: time.Unix(int64(sunrise), 0).UTC(), Valid: true}
	}
	if sunset, ok := numeric(sys["sunset"]); ok && sunset > 0 {
		obs.Sunset = sql.NullTime{Time: time.Unix(int64(sunset), 0).UTC(), Valid: true}
	}

	return obs
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func safeFloat(v any) float64 {
	f, _ := numeric(v)
	return f
}

func safeInt(v any) int {
	return int(safeFloat(v))
}

func safeString(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
