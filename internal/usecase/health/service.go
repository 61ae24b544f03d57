package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates some components fail. The pipeline still answers.
	Degraded Status = "degraded"
	// Unhealthy indicates every component fails.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

const defaultProbeTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name string
	run  func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	probes  []probe
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. embedding and generation can be nil.
func New(db Pinger, embedding, generation Checker, logger *zap.Logger) *Service {
	s := &Service{timeout: defaultProbeTimeout, logger: logger}
	s.probes = append(s.probes, probe{name: ComponentDatabase, run: db.Ping})
	if embedding != nil {
		s.probes = append(s.probes, probe{name: ComponentEmbedding, run: embedding.HealthCheck})
	}
	if generation != nil {
		s.probes = append(s.probes, probe{name: ComponentGeneration, run: generation.HealthCheck})
	}
	return s
}

// Check runs every probe with its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.probes))
	failed := 0

	for _, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.run(pctx)
		cancel()

		if err != nil {
			failed++
			checks[p.name] = CheckError
			s.logger.Warn("Health probe failed", zap.String("component", p.name), zap.Error(err))
			continue
		}
		checks[p.name] = CheckOK
	}

	status := Healthy
	switch {
	case failed == len(s.probes):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
