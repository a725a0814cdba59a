// Package health tracks the dependencies the engine needs to serve traffic.
package health

import "context"

// Provider is a dependency that can report its availability
type Provider interface {
	// Type returns the dependency type name
	Type() string

	// HealthCheck checks if the dependency is available
	HealthCheck(ctx context.Context) error
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the dependency type
func (p *BaseProvider) Type() string {
	return p.serviceType
}

// FuncProvider adapts a check function to a Provider
type FuncProvider struct {
	BaseProvider
	check func(ctx context.Context) error
}

// NewFuncProvider creates a provider backed by check
func NewFuncProvider(serviceType string, check func(ctx context.Context) error) *FuncProvider {
	return &FuncProvider{
		BaseProvider: BaseProvider{serviceType: serviceType},
		check:        check,
	}
}

// HealthCheck runs the check function
func (p *FuncProvider) HealthCheck(ctx context.Context) error {
	return p.check(ctx)
}
