package health

import "context"

// Pinger checks document store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker is any provider exposing a health probe (embedding, generation).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
