package store

import (
	"context"
	"testing"

	"mediatrack/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumented_RecordsResults(t *testing.T) {
	ctx := context.Background()
	s := Instrumented(NewMemoryStore())

	okBefore := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "ok"))
	missBefore := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "not_found"))
	errBefore := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "error"))

	_ = s.Set(ctx, "users/u1", Data{"a": 1})
	_, _ = s.Get(ctx, "users/u1")
	_, _ = s.Get(ctx, "users/u2")
	_, _ = s.Get(ctx, "bad")

	if d := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "ok")) - okBefore; d != 1 {
		t.Errorf("expected 1 ok get, got %v", d)
	}
	if d := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "not_found")) - missBefore; d != 1 {
		t.Errorf("expected 1 not_found get, got %v", d)
	}
	if d := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("get", "error")) - errBefore; d != 1 {
		t.Errorf("expected 1 error get, got %v", d)
	}
}
