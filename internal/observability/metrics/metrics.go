// Package metrics exposes Prometheus instruments for payment and
// scheduler health.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
)

const (
	JobErrorReasonDeadlineExceeded = "deadline_exceeded"
	JobErrorReasonNotDue           = "not_due"
	JobErrorReasonPrice            = "price"
	JobErrorReasonDB               = "db"
	JobErrorReasonBusinessRule     = "business_rule"
)

// PaymentMetrics tracks settlement throughput and value flow.
type PaymentMetrics struct {
	executed    prometheus.Counter
	failed      *prometheus.CounterVec
	amount      prometheus.Counter
	protocolFee prometheus.Counter
	duration    prometheus.Histogram
}

var (
	paymentOnce    sync.Once
	paymentMetrics *PaymentMetrics
)

// Payment returns the singleton payment metrics registry.
func Payment() *PaymentMetrics {
	paymentOnce.Do(func() {
		paymentMetrics = newPaymentMetrics(prometheus.DefaultRegisterer)
	})
	return paymentMetrics
}

// ResetPaymentMetricsForTest resets the payment metrics singleton.
func ResetPaymentMetricsForTest() {
	paymentOnce = sync.Once{}
	paymentMetrics = nil
}

func newPaymentMetrics(registerer prometheus.Registerer) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	executed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subly_payments_executed_total",
		Help: "Settled billing cycles.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subly_payments_failed_total",
		Help: "Failed payment executions by low-cardinality reason.",
	}, []string{"reason"})
	amount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subly_payments_amount_native_total",
		Help: "Total settled value in smallest native units.",
	})
	protocolFee := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subly_payments_protocol_fee_native_total",
		Help: "Total protocol fee captured in smallest native units.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "subly_payment_duration_seconds",
		Help:    "Payment execution latency.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	registerer.MustRegister(executed, failed, amount, protocolFee, duration)

	return &PaymentMetrics{
		executed:    executed,
		failed:      failed,
		amount:      amount,
		protocolFee: protocolFee,
		duration:    duration,
	}
}

// ObserveExecuted records one settled payment.
func (m *PaymentMetrics) ObserveExecuted(amountNative, protocolFee int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.executed.Inc()
	m.amount.Add(float64(amountNative))
	m.protocolFee.Add(float64(protocolFee))
	m.duration.Observe(duration.Seconds())
}

// IncFailed records a failed execution with a classified reason.
func (m *PaymentMetrics) IncFailed(err error) {
	if m == nil || err == nil {
		return
	}
	m.failed.WithLabelValues(ClassifyPaymentReason(err)).Inc()
}

// ClassifyPaymentReason maps payment errors to low-cardinality reasons.
func ClassifyPaymentReason(err error) string {
	switch {
	case err == nil:
		return JobErrorReasonBusinessRule
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobErrorReasonDeadlineExceeded
	case errors.Is(err, paymentdomain.ErrPaymentNotDue):
		return JobErrorReasonNotDue
	case errors.Is(err, oracledomain.ErrPriceNotAvailable), errors.Is(err, oracledomain.ErrInvalidPrice):
		return JobErrorReasonPrice
	case isDBError(err):
		return JobErrorReasonDB
	default:
		return JobErrorReasonBusinessRule
	}
}

// SchedulerMetrics captures batch-driver health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
}

var (
	schedulerOnce    sync.Once
	schedulerMetrics *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton.
func ResetSchedulerMetricsForTest() {
	schedulerOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subly_scheduler_job_runs_total",
		Help: "Scheduler job runs by name.",
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subly_scheduler_job_duration_seconds",
		Help:    "Scheduler job latency.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subly_scheduler_job_timeouts_total",
		Help: "Scheduler job timeouts.",
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subly_scheduler_job_errors_total",
		Help: "Scheduler job errors by low-cardinality reason.",
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subly_scheduler_batch_processed_total",
		Help: "Scheduler batch items processed by job and resource.",
	}, []string{"job", "resource"})

	registerer.MustRegister(jobRuns, jobDuration, jobTimeouts, jobErrors, batchProcessed)

	return &SchedulerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		batchProcessed: batchProcessed,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the scheduler job.
func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyPaymentReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter by count.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || m.batchProcessed == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}
