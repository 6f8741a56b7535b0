package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/metrics"
	"github.com/mediassist/backend/pkg/circuitbreaker"
	"github.com/mediassist/backend/pkg/logger"
	"github.com/mediassist/backend/pkg/utils"
)

// Validator checks a symptom list before it reaches the classifier.
type Validator interface {
	Validate(symptoms []string) error
}

// Cache stores classifier results by symptom-set key.
type Cache interface {
	GetPrediction(ctx context.Context, key string) (*Result, bool, error)
	SetPrediction(ctx context.Context, key string, result *Result, ttl time.Duration) error
}

// Gateway is the Predictor the rest of the service uses: it validates the
// request, consults the cache, and calls the transport through a circuit
// breaker. Failures are returned as-is; nothing is retried.
type Gateway struct {
	validator Validator
	transport Predictor
	name      string
	breaker   *circuitbreaker.CircuitBreaker
	cache     Cache
	cacheTTL  time.Duration
}

type Option func(*Gateway)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(g *Gateway) {
		g.cache = cache
		g.cacheTTL = ttl
	}
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Gateway) {
		g.breaker = cb
	}
}

// NewGateway wraps transport. name labels metrics and logs ("http", "process").
func NewGateway(validator Validator, transport Predictor, name string, opts ...Option) *Gateway {
	g := &Gateway{
		validator: validator,
		transport: transport,
		name:      name,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breaker == nil {
		g.breaker = NewBreaker(5, 30*time.Second)
	}
	return g
}

// NewBreaker builds the classifier circuit breaker. Only transport failures
// count; rejected input does not.
func NewBreaker(failureThreshold uint32, openFor time.Duration) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker("classifier", circuitbreaker.Config{
		FailureThreshold: failureThreshold,
		Timeout:          openFor,
		IsFailure:        apperrors.IsGatewayFailure,
		Logger:           logger.Named("classifier"),
		OnStateChange: func(_ string, _ circuitbreaker.State, to circuitbreaker.State) {
			if to == circuitbreaker.StateOpen {
				metrics.BreakerState.Set(1)
			} else {
				metrics.BreakerState.Set(0)
			}
		},
	})
}

func (g *Gateway) Predict(ctx context.Context, symptoms []string) (*Result, error) {
	if err := g.validator.Validate(symptoms); err != nil {
		metrics.PredictionTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	key := utils.HashSymptomSet(symptoms)
	if cached := g.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	start := time.Now()
	var result *Result
	err := g.breaker.Execute(func() error {
		var callErr error
		result, callErr = g.transport.Predict(ctx, symptoms)
		return callErr
	})
	elapsed := time.Since(start)

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%v: %w", err, apperrors.ErrUnreachable)
	}

	metrics.PredictionDuration.WithLabelValues(g.name).Observe(elapsed.Seconds())
	metrics.PredictionTotal.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		logger.Error("Prediction failed",
			zap.String("transport", g.name),
			zap.Strings("symptoms", symptoms),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Info("Prediction completed",
		zap.String("transport", g.name),
		zap.String("predicted", result.Predicted),
		zap.Int("labels", len(result.Scores)),
		zap.Duration("elapsed", elapsed),
	)

	g.store(ctx, key, result)
	return result, nil
}

func (g *Gateway) lookup(ctx context.Context, key string) *Result {
	if g.cache == nil {
		return nil
	}
	cached, ok, err := g.cache.GetPrediction(ctx, key)
	if err != nil {
		logger.Warn("Prediction cache read failed", zap.Error(err))
		return nil
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil
	}
	metrics.CacheHits.Inc()
	metrics.PredictionTotal.WithLabelValues("cached").Inc()
	return cached
}

func (g *Gateway) store(ctx context.Context, key string, result *Result) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetPrediction(ctx, key, result, g.cacheTTL); err != nil {
		logger.Warn("Prediction cache write failed", zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, apperrors.ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
