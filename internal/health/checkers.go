package health

import (
	"context"
	"time"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/config"
)

// ConfigChecker verifies the coordinates the query path needs to reach the
// managed backends. It cannot flap at runtime, but keeps a misconfigured
// instance from ever reporting ready.
type ConfigChecker struct {
	cfg *config.Config
}

// NewConfigChecker creates a configuration checker.
func NewConfigChecker(cfg *config.Config) *ConfigChecker {
	return &ConfigChecker{cfg: cfg}
}

func (c *ConfigChecker) Name() string           { return "config" }
func (c *ConfigChecker) IsCritical() bool       { return true }
func (c *ConfigChecker) Timeout() time.Duration { return time.Second }

func (c *ConfigChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: c.Name(), Critical: true}
	if c.cfg == nil {
		result.Status = StatusUnhealthy
		result.Message = "configuration not loaded"
		return result
	}
	if err := c.cfg.ValidateService(); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "configuration incomplete"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "configuration complete"
	return result
}

// BreakerChecker reports the state of an upstream circuit breaker without
// issuing traffic. Open means the dependency has been failing; half-open
// means a probe is in flight.
type BreakerChecker struct {
	name     string
	critical bool
	state    func() circuitbreaker.State
}

// NewBreakerChecker wraps a breaker state accessor as a health check.
func NewBreakerChecker(name string, critical bool, state func() circuitbreaker.State) *BreakerChecker {
	return &BreakerChecker{name: name, critical: critical, state: state}
}

func (b *BreakerChecker) Name() string           { return b.name }
func (b *BreakerChecker) IsCritical() bool       { return b.critical }
func (b *BreakerChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Component: b.name,
		Critical:  b.critical,
	}

	state := b.state()
	result.Details = map[string]interface{}{"circuit_breaker": state.String()}

	switch state {
	case circuitbreaker.StateOpen:
		result.Status = StatusUnhealthy
		result.Message = "circuit breaker open"
	case circuitbreaker.StateHalfOpen:
		result.Status = StatusDegraded
		result.Message = "circuit breaker probing"
	default:
		result.Status = StatusHealthy
		result.Message = "circuit breaker closed"
	}
	return result
}

// FuncChecker adapts a plain function into a Checker. The startup
// deployed-index validation is surfaced through one of these.
type FuncChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	fn       func(ctx context.Context) CheckResult
}

// NewFuncChecker creates a checker from a function.
func NewFuncChecker(name string, critical bool, timeout time.Duration, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, critical: critical, timeout: timeout, fn: fn}
}

func (f *FuncChecker) Name() string           { return f.name }
func (f *FuncChecker) IsCritical() bool       { return f.critical }
func (f *FuncChecker) Timeout() time.Duration { return f.timeout }

func (f *FuncChecker) Check(ctx context.Context) CheckResult {
	return f.fn(ctx)
}
