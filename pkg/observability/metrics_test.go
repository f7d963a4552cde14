package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics("")
	hooks := m.Hooks()

	// 1. Two spawns
	for _, name := range []string{"p1", "p2"} {
		hooks.OnSpawn(ctx, domain.NewProcessEvent(domain.EventSpawn, name, domain.BackingInProcess))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Spawned.WithLabelValues("inprocess")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Alive.WithLabelValues("inprocess")))

	// 2. One disposal fails
	hooks.OnTaskDisposed(ctx, domain.NewTaskEvent("p1", "a", nil))
	hooks.OnTaskDisposed(ctx, domain.NewTaskEvent("p1", "b", errors.New("stuck")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DisposeFailures))

	// 3. One death
	dead := domain.NewProcessEvent(domain.EventDead, "p1", domain.BackingInProcess)
	status := domain.ExitCode(0)
	dead.Status = &status
	hooks.OnDead(ctx, dead)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alive.WithLabelValues("inprocess")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dead.WithLabelValues("inprocess", "0")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics("robot")
	m.Hooks().OnSpawn(context.Background(), domain.NewProcessEvent(domain.EventSpawn, "p1", domain.BackingExternal))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `robot_deployments_spawned_total{backing="external"} 1`)
	assert.Contains(t, rec.Body.String(), "robot_task_dispose_failures_total 0")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnSpawn(ctx, domain.NewProcessEvent(domain.EventSpawn, "p1", domain.BackingInProcess))
	hooks.OnTaskDisposed(ctx, domain.NewTaskEvent("p1", "a", errors.New("stuck")))
	hooks.OnDead(ctx, domain.NewProcessEvent(domain.EventDead, "p1", domain.BackingInProcess))

	out := buf.String()
	assert.Contains(t, out, "msg=deployment_spawn")
	assert.Contains(t, out, "err=stuck")
	assert.Contains(t, out, "status=unknown")
}
