package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/wikivec/wikivec/internal/circuitbreaker"
	"github.com/wikivec/wikivec/internal/config"
)

func TestConfigChecker(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProjectID = "demo"
	cfg.Location = "us-central1"
	cfg.IndexEndpointID = "123"
	cfg.DeployedIndexID = "wiki_deployed"

	checker := NewConfigChecker(&cfg)
	assert.True(t, checker.IsCritical())

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)

	cfg.ProjectID = ""
	result = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "PROJECT_ID")
}

func TestConfigCheckerNilConfig(t *testing.T) {
	result := NewConfigChecker(nil).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestBreakerChecker(t *testing.T) {
	state := circuitbreaker.StateClosed
	checker := NewBreakerChecker("vector_index", true, func() circuitbreaker.State { return state })

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "closed", result.Details["circuit_breaker"])

	state = circuitbreaker.StateHalfOpen
	assert.Equal(t, StatusDegraded, checker.Check(context.Background()).Status)

	state = circuitbreaker.StateOpen
	result = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "open")
}

func TestBreakerCheckerOverRedisWrapper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	wrapper := circuitbreaker.NewRedisWrapper(client, zaptest.NewLogger(t))
	defer wrapper.Close()

	checker := NewBreakerChecker("redis_cache", false, wrapper.State)
	assert.False(t, checker.IsCritical())

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestFuncChecker(t *testing.T) {
	called := false
	checker := NewFuncChecker("index_layout", true, 0, func(ctx context.Context) CheckResult {
		called = true
		return CheckResult{Status: StatusHealthy}
	})

	result := checker.Check(context.Background())
	assert.True(t, called)
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "index_layout", checker.Name())
}
