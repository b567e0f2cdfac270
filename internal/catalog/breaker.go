package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/metrics"
	"mediatrack/internal/models"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker in front of a provider.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // trial requests while half-open
	Interval    time.Duration // closed-state count reset
	Timeout     time.Duration // open before half-open
	MinRequests uint32
	FailureRate float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "tmdb",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MinRequests: 10,
		FailureRate: 0.6,
	}
}

// BreakerProvider rejects calls with ErrUnavailable while the catalog keeps
// failing. A not-found answer is a healthy response.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
	name string
	log  *zerolog.Logger
}

func NewBreakerProvider(next Provider, s BreakerSettings) *BreakerProvider {
	log := logging.Component("catalog-breaker")
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			rate := float64(counts.TotalFailures) / float64(counts.Requests)
			return rate >= s.FailureRate
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerProvider{next: next, cb: cb, name: s.Name, log: log}
}

func (p *BreakerProvider) Lookup(ctx context.Context, id int64, kind models.MediaKind) (*models.MediaItem, error) {
	res, err := p.execute("lookup", func() (any, error) {
		return p.next.Lookup(ctx, id, kind)
	})
	if err != nil {
		return nil, err
	}
	item, ok := res.(*models.MediaItem)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return item, nil
}

func (p *BreakerProvider) Search(ctx context.Context, query string) ([]models.MediaItem, error) {
	res, err := p.execute("search", func() (any, error) {
		return p.next.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	items, ok := res.([]models.MediaItem)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return items, nil
}

// State reports the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerProvider) execute(op string, fn func() (any, error)) (any, error) {
	res, err := p.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CatalogRequests.WithLabelValues(op, "rejected").Inc()
		p.log.Debug().Err(err).Str("op", op).Msg("request rejected")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case err != nil:
		metrics.CatalogRequests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	metrics.CatalogRequests.WithLabelValues(op, "ok").Inc()
	return res, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
