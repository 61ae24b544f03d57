package listbot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// observer logs and counts SDK calls. A nil observer, or one without a
// logger or registerer, silently skips that half.
type observer struct {
	logger *slog.Logger

	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	answers  *prometheus.CounterVec
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}

	o.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listbot", Subsystem: "sdk", Name: "operations_total",
		Help: "SDK calls by operation and status.",
	}, []string{"operation", "status"})
	o.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "listbot", Subsystem: "sdk", Name: "operation_duration_seconds",
		Help:    "SDK call duration in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
	o.tokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listbot", Subsystem: "sdk", Name: "tokens_total",
		Help: "Provider tokens spent by Ask, by kind.",
	}, []string{"kind"}) // "embedding" / "completion"
	o.answers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listbot", Subsystem: "sdk", Name: "answers_total",
		Help: "Answers returned by Ask, by evidence source and whether the model produced them.",
	}, []string{"evidence", "generated"})

	for _, c := range []**prometheus.CounterVec{&o.calls, &o.tokens, &o.answers} {
		if err := adopt(reg, c); err != nil {
			return nil, err
		}
	}
	if err := adopt(reg, &o.duration); err != nil {
		return nil, err
	}
	return o, nil
}

// adopt registers *c, or points it at an identical collector registered by
// an earlier Client sharing the registerer.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("listbot: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("listbot: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// begin starts timing op; the returned func records the outcome.
func (o *observer) begin(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		if o == nil {
			return
		}
		dur := time.Since(start)

		if o.calls != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			o.calls.WithLabelValues(op, status).Inc()
			o.duration.WithLabelValues(op).Observe(dur.Seconds())
		}

		if o.logger == nil {
			return
		}
		if err != nil {
			o.logger.Warn("listbot call failed", "op", op, "duration", dur, "error", err)
			return
		}
		o.logger.Debug("listbot call completed", "op", op, "duration", dur)
	}
}

// answered records the outcome of a successful Ask.
func (o *observer) answered(a Answer) {
	if o == nil || o.answers == nil {
		return
	}
	o.answers.WithLabelValues(a.Evidence, fmt.Sprint(a.Generated)).Inc()
	o.tokens.WithLabelValues("embedding").Add(float64(a.EmbeddingTokens))
	o.tokens.WithLabelValues("completion").Add(float64(a.CompletionTokens))
}
