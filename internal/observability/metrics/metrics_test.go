package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
)

func TestClassifyPaymentReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, JobErrorReasonBusinessRule},
		{"deadline", context.DeadlineExceeded, JobErrorReasonDeadlineExceeded},
		{"canceled", context.Canceled, JobErrorReasonDeadlineExceeded},
		{"not due", paymentdomain.ErrPaymentNotDue, JobErrorReasonNotDue},
		{"price missing", oracledomain.ErrPriceNotAvailable, JobErrorReasonPrice},
		{"price invalid", oracledomain.ErrInvalidPrice, JobErrorReasonPrice},
		{"db", gorm.ErrInvalidTransaction, JobErrorReasonDB},
		{"record not found is business", gorm.ErrRecordNotFound, JobErrorReasonBusinessRule},
		{"other", errors.New("boom"), JobErrorReasonBusinessRule},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyPaymentReason(tc.err))
		})
	}
}

func TestPaymentMetrics_NilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.ObserveExecuted(100, 1, 0)
	m.IncFailed(errors.New("boom"))

	var s *SchedulerMetrics
	s.IncJobRun("x")
	s.ObserveJobDuration("x", 0)
	s.IncJobTimeout("x")
	s.IncJobError("x", errors.New("boom"))
	s.AddBatchProcessed("x", "y", 1)
}

func TestMetricsRegisterOnPrivateRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	pm := newPaymentMetrics(registry)
	pm.ObserveExecuted(50_000_000, 500_000, 0)
	pm.IncFailed(paymentdomain.ErrPaymentNotDue)

	sm := newSchedulerMetrics(prometheus.NewRegistry())
	sm.IncJobRun("process_payments")
	sm.AddBatchProcessed("process_payments", "subscriptions", 2)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
