package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/recurra/pkg/errs"
	"gorm.io/gorm"
)

const (
	SchedulerReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerReasonGatewayTimeout       = "gateway_timeout"
	SchedulerReasonUpstream             = "upstream"
	SchedulerReasonNotSupported         = "not_supported"
	SchedulerReasonValidation           = "validation"
	SchedulerReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerReasonSerializationFailure = "serialization_failure"
	SchedulerReasonUniqueViolation      = "unique_violation"
	SchedulerReasonUnknown              = "unknown"
)

const (
	ItemOutcomeProcessed = "processed"
	ItemOutcomeSkipped   = "skipped"
	ItemOutcomeFailed    = "failed"

	TickSkipOverlap = "overlap"
	TickSkipLocked  = "locked"
)

// SchedulerMetrics captures recurring charge tick health.
type SchedulerMetrics struct {
	tickRuns      prometheus.Counter
	tickDuration  prometheus.Histogram
	tickTimeouts  prometheus.Counter
	tickErrors    *prometheus.CounterVec
	tickSkipped   *prometheus.CounterVec
	items         *prometheus.CounterVec
	itemErrors    *prometheus.CounterVec
	overdueMarked prometheus.Counter
	runLoopLag    prometheus.Observer
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	tickRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "recurra_scheduler_tick_runs_total",
		Help:        "Recurring charge ticks started.",
		ConstLabels: constLabels,
	})
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "recurra_scheduler_tick_duration_seconds",
		Help:        "Recurring charge tick latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})
	tickTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "recurra_scheduler_tick_timeouts_total",
		Help:        "Ticks that hit their deadline before finishing the batch.",
		ConstLabels: constLabels,
	})
	tickErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "recurra_scheduler_tick_errors_total",
		Help:        "Tick-level failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	tickSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "recurra_scheduler_tick_skipped_total",
		Help:        "Ticks skipped because another run was in flight.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "recurra_scheduler_items_total",
		Help:        "Due subscriptions handled per outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	itemErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "recurra_scheduler_item_errors_total",
		Help:        "Per-subscription failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	overdueMarked := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "recurra_scheduler_overdue_marked_total",
		Help:        "Charges moved from pending to overdue.",
		ConstLabels: constLabels,
	})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "recurra_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		tickRuns,
		tickDuration,
		tickTimeouts,
		tickErrors,
		tickSkipped,
		items,
		itemErrors,
		overdueMarked,
		runLoopLag,
	)

	return &SchedulerMetrics{
		tickRuns:      tickRuns,
		tickDuration:  tickDuration,
		tickTimeouts:  tickTimeouts,
		tickErrors:    tickErrors,
		tickSkipped:   tickSkipped,
		items:         items,
		itemErrors:    itemErrors,
		overdueMarked: overdueMarked,
		runLoopLag:    runLoopLag,
	}
}

func (m *SchedulerMetrics) IncTickRun() {
	if m == nil {
		return
	}
	m.tickRuns.Inc()
}

func (m *SchedulerMetrics) ObserveTickDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncTickTimeout() {
	if m == nil {
		return
	}
	m.tickTimeouts.Inc()
}

func (m *SchedulerMetrics) IncTickError(err error) {
	if m == nil || err == nil {
		return
	}
	m.tickErrors.WithLabelValues(ClassifySchedulerReason(err)).Inc()
}

func (m *SchedulerMetrics) IncTickSkipped(reason string) {
	if m == nil {
		return
	}
	m.tickSkipped.WithLabelValues(reason).Inc()
}

func (m *SchedulerMetrics) AddItems(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(outcome).Add(float64(n))
}

func (m *SchedulerMetrics) IncItemError(err error) {
	if m == nil || err == nil {
		return
	}
	m.itemErrors.WithLabelValues(ClassifySchedulerReason(err)).Inc()
}

func (m *SchedulerMetrics) AddOverdueMarked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.runLoopLag.Observe(d.Seconds())
}

// ClassifySchedulerReason maps an error to a bounded label value.
func ClassifySchedulerReason(err error) string {
	if err == nil {
		return SchedulerReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerReasonDeadlineExceeded
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return SchedulerReasonDBLockTimeout
		case "40001":
			return SchedulerReasonSerializationFailure
		case "23505":
			return SchedulerReasonUniqueViolation
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return SchedulerReasonUniqueViolation
	}

	switch errs.KindOf(err) {
	case errs.KindTimeout:
		return SchedulerReasonGatewayTimeout
	case errs.KindUpstream:
		return SchedulerReasonUpstream
	case errs.KindNotSupported:
		return SchedulerReasonNotSupported
	case errs.KindValidation, errs.KindNotFound:
		return SchedulerReasonValidation
	}
	return SchedulerReasonUnknown
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "recurra"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
