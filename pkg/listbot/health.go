package listbot

import (
	"context"

	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
)

// HealthStatus is the aggregated state of the document store.
type HealthStatus struct {
	Status    string            // ok, degraded or error
	Checks    map[string]string // component name to ok or error
	Documents int               // indexed corpus rows, -1 when unknown
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes the document store and counts the corpus. Providers are
// not probed: they are the caller's.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)

	out := HealthStatus{
		Status:    string(report.Status),
		Checks:    make(map[string]string, len(report.Checks)),
		Documents: -1,
	}
	for name, res := range report.Checks {
		out.Checks[name] = string(res)
	}
	if report.Status != healthuc.Unhealthy {
		if n, err := c.store.Count(ctx); err == nil {
			out.Documents = n
		}
	}
	return out
}
