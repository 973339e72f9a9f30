package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/recurra/pkg/errs"
	"gorm.io/gorm"
)

func TestClassifySchedulerReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, SchedulerReasonDeadlineExceeded},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, SchedulerReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, SchedulerReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, SchedulerReasonUniqueViolation},
		{"gateway_timeout", fmt.Errorf("create: %w", errs.New(errs.KindTimeout, "gateway_timeout")), SchedulerReasonGatewayTimeout},
		{"upstream", errs.New(errs.KindUpstream, "bad_gateway"), SchedulerReasonUpstream},
		{"not_supported", errs.New(errs.KindNotSupported, "nope"), SchedulerReasonNotSupported},
		{"unknown", errors.New("boom"), SchedulerReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "recurra", Environment: "test"})

	m.IncTickRun()
	m.AddItems(ItemOutcomeProcessed, 3)
	m.AddItems(ItemOutcomeFailed, 1)
	m.AddItems(ItemOutcomeSkipped, 0)
	m.IncItemError(errs.New(errs.KindUpstream, "bad_gateway"))
	m.AddOverdueMarked(2)
	m.IncTickSkipped(TickSkipOverlap)

	if got := testutil.ToFloat64(m.tickRuns); got != 1 {
		t.Fatalf("expected 1 tick run, got %v", got)
	}
	if got := testutil.ToFloat64(m.items.WithLabelValues(ItemOutcomeProcessed)); got != 3 {
		t.Fatalf("expected 3 processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.items.WithLabelValues(ItemOutcomeFailed)); got != 1 {
		t.Fatalf("expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(m.itemErrors.WithLabelValues(SchedulerReasonUpstream)); got != 1 {
		t.Fatalf("expected 1 upstream item error, got %v", got)
	}
	if got := testutil.ToFloat64(m.overdueMarked); got != 2 {
		t.Fatalf("expected 2 overdue, got %v", got)
	}
	if got := testutil.ToFloat64(m.tickSkipped.WithLabelValues(TickSkipOverlap)); got != 1 {
		t.Fatalf("expected 1 skipped tick, got %v", got)
	}
}
