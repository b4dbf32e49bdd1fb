package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubChecker struct {
	name     string
	critical bool
	status   CheckStatus
	block    bool
}

func (s *stubChecker) Name() string           { return s.name }
func (s *stubChecker) IsCritical() bool       { return s.critical }
func (s *stubChecker) Timeout() time.Duration { return 50 * time.Millisecond }

func (s *stubChecker) Check(ctx context.Context) CheckResult {
	if s.block {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}
	return CheckResult{Status: s.status, Message: "stub"}
}

func TestManagerAllHealthy(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "a", critical: true, status: StatusHealthy}))
	require.NoError(t, m.Register(&stubChecker{name: "b", status: StatusHealthy}))

	report := m.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.True(t, report.Ready)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Healthy)
	assert.True(t, m.IsReady(context.Background()))
}

func TestManagerCriticalFailureBlocksReadiness(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "vector_index", critical: true, status: StatusUnhealthy}))
	require.NoError(t, m.Register(&stubChecker{name: "redis_cache", status: StatusHealthy}))

	report := m.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.False(t, report.Ready)
	assert.Contains(t, report.Message, "critical")
	assert.False(t, m.IsReady(context.Background()))
}

func TestManagerNonCriticalFailureDegrades(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "core", critical: true, status: StatusHealthy}))
	require.NoError(t, m.Register(&stubChecker{name: "redis_cache", status: StatusUnhealthy}))

	report := m.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Ready, "non-critical failures must not block readiness")
}

func TestManagerDegradedComponentDegradesReport(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "core", critical: true, status: StatusDegraded}))

	report := m.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Ready)
}

func TestManagerEmptyIsUnknownAndNotReady(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	report := m.Check(context.Background())
	assert.Equal(t, StatusUnknown, report.Status)
	assert.False(t, report.Ready)
}

func TestManagerRejectsDuplicateAndUnnamed(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "a"}))
	assert.Error(t, m.Register(&stubChecker{name: "a"}))
	assert.Error(t, m.Register(&stubChecker{name: ""}))
}

func TestManagerAppliesCheckerTimeout(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "slow", critical: true, block: true}))

	start := time.Now()
	report := m.Check(context.Background())
	elapsed := time.Since(start)

	assert.False(t, report.Ready)
	assert.Less(t, elapsed, 2*time.Second, "check must be cut off by its timeout")

	result := report.Components["slow"]
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "slow", result.Component)
	assert.True(t, result.Critical)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestManagerRemembersLastResults(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.Register(&stubChecker{name: "a", status: StatusHealthy}))

	assert.Empty(t, m.LastResults())
	m.Check(context.Background())

	last := m.LastResults()
	require.Contains(t, last, "a")
	assert.Equal(t, StatusHealthy, last["a"].Status)
}
