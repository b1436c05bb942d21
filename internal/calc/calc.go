// Package calc is a calculation service whose operations are func slots, so
// tests can replace them one at a time.
package calc

import (
	"context"

	"github.com/Versent/go-mockfn/future"
)

// DefaultResult is what Calculate resolves to unless it is replaced.
const DefaultResult = 5

// Service performs calculations.
type Service struct {
	// Calculate resolves the result of a calculation over args.
	Calculate func(args ...int) *future.Future[int]
	// Get returns the service, for chained calls.
	Get func() *Service
}

// New returns a Service with its default operations.
func New() *Service {
	s := &Service{}
	s.Calculate = func(...int) *future.Future[int] {
		return future.Resolve(DefaultResult)
	}
	s.Get = func() *Service {
		return s
	}
	return s
}

// CalculateSomething awaits the calculation of a and b on s.
func CalculateSomething(ctx context.Context, s *Service, a, b int) (int, error) {
	return s.Calculate(a, b).Await(ctx)
}
