package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weathermon/weathermon/internal/metrics"
	"github.com/weathermon/weathermon/internal/models"
	"github.com/weathermon/weathermon/internal/store"
)

// Ingestor fetches one provider snapshot and appends it to the store.
// Idempotence is not guaranteed: two calls within the same tick produce two
// observations; downstream aggregation tolerates duplicate timestamps.
type Ingestor struct {
	store  *store.Store
	client *Client

	// Retry policy for transient provider failures. Exponential from
	// retryInterval, doubling, at most maxRetries retries.
	retryInterval time.Duration
	maxRetries    uint64
}

func NewIngestor(st *store.Store, client *Client) *Ingestor {
	return &Ingestor{
		store:         st,
		client:        client,
		retryInterval: time.Minute,
		maxRetries:    3,
	}
}

// FetchAndStore fetches a snapshot for the city, retrying transient provider
// failures, and appends the normalized observation. Returns the new row id.
// Malformed responses are not retried. No partial write happens on failure.
func (i *Ingestor) FetchAndStore(ctx context.Context, city string) (int64, error) {
	var obs *models.Observation

	operation := func() error {
		fetched, err := i.client.FetchCurrent(ctx, city)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				metrics.FetchFailures.WithLabelValues(city, string(fe.Kind)).Inc()
				if fe.Kind == FetchMalformed {
					return backoff.Permanent(err)
				}
			}
			log.Printf("ingest: fetch %s failed, will retry: %v", city, err)
			return err
		}
		obs = fetched
		return nil
	}

	bo := newFetchBackOff(i.retryInterval, i.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, i.maxRetries), ctx)); err != nil {
		return 0, err
	}

	id, err := i.store.InsertObservation(*obs)
	if err != nil {
		return 0, fmt.Errorf("insert observation: %w", err)
	}

	metrics.ObservationsIngested.WithLabelValues(obs.City).Inc()
	log.Printf("ingest: stored observation %d for %s at %s", id, obs.City, obs.Timestamp.Format(time.RFC3339))
	return id, nil
}

// newFetchBackOff builds the transient-failure retry policy: delays start at
// initial and double on every attempt. MaxInterval is raised past the last
// delay so the doubling is never truncated within maxRetries attempts.
func newFetchBackOff(initial time.Duration, maxRetries uint64) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.MaxInterval = initial * time.Duration(uint64(1)<<maxRetries)
	bo.Reset()
	return bo
}
