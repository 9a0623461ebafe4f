package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

const (
	defaultMaxLinkAttempts = 8
	firstLinkBackoff       = time.Minute
	maxLinkBackoff         = 6 * time.Hour
	storeTimeout           = 5 * time.Second
)

var errNoPaymentLink = errors.New("gateway returned no payment link")

// InvoiceRegistrar registers a pending payment with the external gateway and
// stores the gateway's invoice id and payment link on it.
type InvoiceRegistrar struct {
	gw          domain.PaymentGateway
	payments    domain.PaymentRepository
	timeout     time.Duration
	maxAttempts int
	now         Clock
}

func NewInvoiceRegistrar(gw domain.PaymentGateway, payments domain.PaymentRepository, timeout time.Duration) *InvoiceRegistrar {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InvoiceRegistrar{
		gw:          gw,
		payments:    payments,
		timeout:     timeout,
		maxAttempts: defaultMaxLinkAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithMaxAttempts sets how many failed gateway calls a payment gets before
// it is abandoned.
func (r *InvoiceRegistrar) WithMaxAttempts(n int) *InvoiceRegistrar {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *InvoiceRegistrar) WithClock(c Clock) *InvoiceRegistrar {
	r.now = c
	return r
}

// Lease outlives one gateway call, so a claim is never taken over while the
// holder can still attach its invoice.
func (r *InvoiceRegistrar) Lease() time.Duration { return 2*r.timeout + storeTimeout }

func (r *InvoiceRegistrar) claimUntil() time.Time { return r.now().Add(r.Lease()) }

// Register expects p to be claimed by the caller and no database transaction
// to be open. On success p is updated in place with the gateway invoice id
// and URL. A failed call is recorded on the payment and releases the claim.
func (r *InvoiceRegistrar) Register(ctx context.Context, p *domain.Payment) error {
	if p.Amount <= 0 {
		return r.failed(ctx, p, fmt.Errorf("payment %d amount %s: %w", p.ID, p.Amount, domain.ErrInvoiceRejected))
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	inv, err := r.gw.CreateInvoice(gctx, p.Amount, p.InvoiceID)
	cancel()
	if err == nil && strings.TrimSpace(inv.PaymentURL) == "" {
		err = errNoPaymentLink
	}
	if err != nil {
		return r.failed(ctx, p, fmt.Errorf("create invoice for payment %d: %w", p.ID, err))
	}
	if strings.TrimSpace(inv.InvoiceID) == "" {
		// keep our own reference when the gateway does not return one
		inv.InvoiceID = p.InvoiceID
	}

	// the invoice exists now; store it even if the caller went away
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := r.payments.AttachInvoice(sctx, p.ID, inv); err != nil {
		return fmt.Errorf("attach invoice %s to payment %d: %w", inv.InvoiceID, p.ID, err)
	}
	p.InvoiceID = inv.InvoiceID
	p.PaymentURL = inv.PaymentURL
	p.LinkUnavailable = false
	p.ClaimedUntil = time.Time{}
	return nil
}

func (r *InvoiceRegistrar) failed(ctx context.Context, p *domain.Payment, cause error) error {
	p.LinkAttempts++
	p.LinkUnavailable = true
	p.ClaimedUntil = time.Time{}
	p.NextAttemptAt = r.now().Add(linkBackoff(p.LinkAttempts))
	p.LinkAbandoned = errors.Is(cause, domain.ErrInvoiceRejected) || p.LinkAttempts >= r.maxAttempts

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := r.payments.RecordLinkFailure(sctx, p.ID, p.NextAttemptAt, p.LinkAbandoned); err != nil {
		log.Error().Err(err).Int64("payment_id", p.ID).Msg("recording invoice failure")
	}
	if p.LinkAbandoned {
		log.Error().Err(cause).
			Int64("payment_id", p.ID).
			Int("attempts", p.LinkAttempts).
			Msg("payment link abandoned")
	}
	return cause
}

// linkBackoff doubles from firstLinkBackoff per failed attempt.
func linkBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		return maxLinkBackoff
	}
	d := firstLinkBackoff << (attempts - 1)
	if d > maxLinkBackoff {
		return maxLinkBackoff
	}
	return d
}

type PaymentService struct {
	repo domain.PaymentRepository
}

func NewPaymentService(r domain.PaymentRepository) *PaymentService {
	return &PaymentService{repo: r}
}

// UpdateStatus applies a gateway callback. Only the status column changes;
// delivering the same status twice is a harmless overwrite.
func (s *PaymentService) UpdateStatus(ctx context.Context, invoiceID, status string) (domain.Payment, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" || strings.TrimSpace(status) == "" {
		return domain.Payment{}, domain.BadRequest("Missing invoiceId or status")
	}
	st, ok := domain.ParsePaymentStatus(status)
	if !ok {
		observability.ObserveWebhook("invalid")
		return domain.Payment{}, domain.BadRequest("Unknown payment status %q", status)
	}
	p, err := s.repo.UpdatePaymentStatus(ctx, invoiceID, st)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			observability.ObserveWebhook("unknown_invoice")
			return domain.Payment{}, domain.NotFound("Payment not found")
		}
		return domain.Payment{}, err
	}
	observability.ObserveWebhook(string(st))
	log.Info().Str("invoice_id", invoiceID).Str("status", string(st)).Msg("payment status updated")
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (domain.Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Payment{}, domain.NotFound("Payment not found")
	}
	return p, err
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx)
}

// InvoiceRetrier re-registers pending payments whose gateway call failed
// while booking.
type InvoiceRetrier struct {
	payments  domain.PaymentRepository
	registrar *InvoiceRegistrar
	workers   int
	batch     int
}

func NewInvoiceRetrier(p domain.PaymentRepository, r *InvoiceRegistrar, workers, batch int) *InvoiceRetrier {
	if workers <= 0 {
		workers = 4
	}
	if batch <= 0 {
		batch = 100
	}
	return &InvoiceRetrier{payments: p, registrar: r, workers: workers, batch: batch}
}

type SweepStats struct {
	Claimed    int
	Registered int
	Failed     int
}

// Sweep claims one batch of due payments and registers them. Claimed is
// zero once nothing is due.
func (t *InvoiceRetrier) Sweep(ctx context.Context) (SweepStats, error) {
	claimed, err := t.payments.ClaimUnlinked(ctx, t.registrar.now(), t.registrar.Lease(), t.batch)
	if err != nil {
		return SweepStats{}, err
	}
	stats := SweepStats{Claimed: len(claimed)}
	if len(claimed) == 0 {
		return stats, nil
	}

	sem := semaphore.NewWeighted(int64(t.workers))
	var wg sync.WaitGroup
	var ok, failed int64

	for i := range claimed {
		p := claimed[i]

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := t.registrar.Register(ctx, &p); err != nil {
				atomic.AddInt64(&failed, 1)
				result := "failed"
				if p.LinkAbandoned {
					result = "abandoned"
				}
				observability.ObserveInvoiceRetry(result)
				log.Warn().Err(err).
					Str("error_type", observability.LabelErr(err)).
					Int64("payment_id", p.ID).
					Int("attempts", p.LinkAttempts).
					Time("next_attempt_at", p.NextAttemptAt).
					Msg("invoice retry failed")
				return
			}
			atomic.AddInt64(&ok, 1)
			observability.ObserveInvoiceRetry("ok")
			log.Info().Int64("payment_id", p.ID).Str("invoice_id", p.InvoiceID).Msg("invoice registered")
		}()
	}
	wg.Wait()
	stats.Registered = int(ok)
	stats.Failed = int(failed)
	return stats, ctx.Err()
}
