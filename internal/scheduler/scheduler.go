// Package scheduler drives the recurring payment batch and the
// certificate issuance queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	certificatedomain "github.com/sublyhq/subly/internal/certificate/domain"
	"github.com/sublyhq/subly/internal/clock"
	eventsdomain "github.com/sublyhq/subly/internal/events/domain"
	obsmetrics "github.com/sublyhq/subly/internal/observability/metrics"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	ProtocolSvc     protocoldomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	CertificateSvc  certificatedomain.Service
	EventsConsumer  eventsdomain.Consumer
	Locker          *Locker `optional:"true"`
	Config          Config  `optional:"true"`
}

type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	protocolSvc     protocoldomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	certificateSvc  certificatedomain.Service
	eventsConsumer  eventsdomain.Consumer
	locker          *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil ||
		p.ProtocolSvc == nil || p.SubscriptionSvc == nil || p.PaymentSvc == nil ||
		p.CertificateSvc == nil || p.EventsConsumer == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             cfg,
		genID:           p.GenID,
		clock:           p.Clock,
		protocolSvc:     p.ProtocolSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		certificateSvc:  p.CertificateSvc,
		eventsConsumer:  p.EventsConsumer,
		locker:          p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	token, acquired, err := s.locker.TryLock(ctx, name, timeout)
	if err != nil {
		s.log.Warn("job lock unavailable", zap.String("job", name), zap.Error(err))
		return nil
	}
	if !acquired {
		s.log.Debug("job held by another instance", zap.String("job", name))
		return nil
	}
	defer func() {
		if relErr := s.locker.Release(context.WithoutCancel(ctx), name, token); relErr != nil {
			s.log.Warn("job lock release failed", zap.String("job", name), zap.Error(relErr))
		}
	}()

	log := s.log.With(zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err = fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"process_payments", func(ctx context.Context) error {
			return s.runJob(ctx, "process_payments", s.cfg.JobTimeout, s.ProcessPaymentsJob)
		}},
		{"issue_certificates", func(ctx context.Context) error {
			return s.runJob(ctx, "issue_certificates", s.cfg.JobTimeout, s.IssueCertificatesJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ProcessPaymentsJob settles every due subscription once. Retryable
// conditions (stale oracle, paused protocol, races on due dates) are
// logged and left for the next run.
func (s *Scheduler) ProcessPaymentsJob(ctx context.Context) error {
	now := s.clock.Now().UTC()
	schedMetrics := obsmetrics.Scheduler()
	payMetrics := obsmetrics.Payment()

	var jobErr error
	processed := 0
	attempted := make(map[snowflake.ID]struct{})

	for {
		if ctx.Err() != nil {
			jobErr = errors.Join(jobErr, ctx.Err())
			break
		}

		due, err := s.subscriptionSvc.ListDue(ctx, now, s.cfg.PaymentBatchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}

		progress := false
		for _, sub := range due {
			if _, seen := attempted[sub.ID]; seen {
				continue
			}
			attempted[sub.ID] = struct{}{}
			progress = true

			if ctx.Err() != nil {
				jobErr = errors.Join(jobErr, ctx.Err())
				break
			}

			start := s.clock.Now()
			record, err := s.paymentSvc.ExecutePayment(ctx, paymentdomain.ExecuteRequest{SubscriptionID: sub.ID})
			if err != nil {
				payMetrics.IncFailed(err)
				if isRetryablePaymentError(err) {
					s.log.Warn("payment deferred",
						zap.String("subscription_id", sub.ID.String()),
						zap.Error(err),
					)
					continue
				}
				jobErr = errors.Join(jobErr, err)
				s.log.Error("payment failed",
					zap.String("subscription_id", sub.ID.String()),
					zap.Error(err),
				)
				continue
			}

			payMetrics.ObserveExecuted(record.AmountNative, record.ProtocolFee, time.Since(start))
			processed++
		}

		if !progress || len(due) < s.cfg.PaymentBatchSize {
			break
		}
	}

	if processed > 0 {
		schedMetrics.AddBatchProcessed("process_payments", "subscriptions", processed)
		if err := s.protocolSvc.MarkBatchProcessed(ctx, now); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}

	return jobErr
}

// IssueCertificatesJob drains registration and subscription events into
// certificate rows.
func (s *Scheduler) IssueCertificatesJob(ctx context.Context) error {
	types := []eventsdomain.EventType{
		eventsdomain.EventProviderRegistered,
		eventsdomain.EventServiceRegistered,
		eventsdomain.EventSubscribed,
	}
	schedMetrics := obsmetrics.Scheduler()

	var jobErr error
	issued := 0

	for {
		if ctx.Err() != nil {
			jobErr = errors.Join(jobErr, ctx.Err())
			break
		}

		batch, err := s.eventsConsumer.PollUnprocessed(ctx, types, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(batch) == 0 {
			break
		}

		passIssued := 0
		for _, ev := range batch {
			if _, err := s.certificateSvc.IssueFromEvent(ctx, ev); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.log.Error("certificate issuance failed",
					zap.String("event_id", ev.ID.String()),
					zap.String("event_type", string(ev.Type)),
					zap.Error(err),
				)
				continue
			}
			if err := s.eventsConsumer.MarkProcessed(ctx, ev.ID); err != nil {
				jobErr = errors.Join(jobErr, err)
				continue
			}
			issued++
			passIssued++
		}

		if passIssued == 0 || len(batch) < s.cfg.BatchSize {
			break
		}
	}

	if issued > 0 {
		schedMetrics.AddBatchProcessed("issue_certificates", "events", issued)
	}

	return jobErr
}

func isRetryablePaymentError(err error) bool {
	return errors.Is(err, paymentdomain.ErrPaymentNotDue) ||
		errors.Is(err, protocoldomain.ErrProtocolPaused) ||
		errors.Is(err, oracledomain.ErrPriceNotAvailable) ||
		errors.Is(err, oracledomain.ErrInvalidPrice)
}
