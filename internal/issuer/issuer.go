// Package issuer runs batches of credential requests through the Atlas client.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-sanctum/vrc-issuer/internal/domain"
	"github.com/atlas-sanctum/vrc-issuer/internal/logger"
	"github.com/atlas-sanctum/vrc-issuer/internal/metrics"
	"github.com/atlas-sanctum/vrc-issuer/pkg/atlas"
	"github.com/atlas-sanctum/vrc-issuer/pkg/publishers"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Service coordinates issuing, publishing and dedupe for a batch of requests.
type Service struct {
	client      CredentialClient
	publisher   EventPublisher
	deduper     Deduper
	log         logger.Logger
	metrics     metrics.Recorder
	concurrency int
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	Concurrency int
	Metrics     metrics.Recorder
}

// NewService wires an issuer. publisher and deduper may be nil.
func NewService(client CredentialClient, publisher EventPublisher, deduper Deduper, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &Service{
		client:      client,
		publisher:   publisher,
		deduper:     deduper,
		log:         log,
		metrics:     opts.Metrics,
		concurrency: opts.Concurrency,
	}
}

// Summary counts what one Run did.
type Summary struct {
	Issued   int
	Rejected int
	Failed   int
	Skipped  int
}

// Run issues every request not already recorded in the dedupe store. Transport
// and publish failures are collected and returned together; a cancelled
// context stops new requests from starting.
func (s *Service) Run(ctx context.Context, reqs []domain.CredentialRequest) (Summary, error) {
	if s == nil || s.client == nil {
		return Summary{}, fmt.Errorf("issuer service is not initialized")
	}
	if len(reqs) == 0 {
		return Summary{}, fmt.Errorf("no credential requests to issue")
	}

	fresh, skipped := s.filterNewRequests(reqs)
	summary := Summary{Skipped: skipped}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(fn func(*Summary), err error) {
		mu.Lock()
		defer mu.Unlock()
		fn(&summary)
		if err != nil {
			errs = append(errs, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, req := range fresh {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := s.issueOne(gctx, req)
			record(func(sum *Summary) {
				switch outcome {
				case metrics.OutcomeIssued:
					sum.Issued++
				case metrics.OutcomeRejected:
					sum.Rejected++
				case metrics.OutcomeFailed:
					sum.Failed++
				}
			}, err)
			return nil
		})
	}
	_ = g.Wait()

	return summary, errors.Join(errs...)
}

// filterNewRequests drops requests the store has already seen. A store
// lookup error keeps the request.
func (s *Service) filterNewRequests(reqs []domain.CredentialRequest) ([]domain.CredentialRequest, int) {
	if s.deduper == nil {
		return reqs, 0
	}
	fresh := make([]domain.CredentialRequest, 0, len(reqs))
	skipped := 0
	for _, req := range reqs {
		seen, err := s.deduper.SeenRequest(req.DedupeKey())
		if err != nil {
			s.log.WarnObj("dedupe lookup failed", "dedupe_error", map[string]any{
				"request_id": req.ID,
				"error":      err.Error(),
			})
			fresh = append(fresh, req)
			continue
		}
		if seen {
			skipped++
			s.metrics.RequestSkipped()
			continue
		}
		fresh = append(fresh, req)
	}
	return fresh, skipped
}

// issueOne sends a single request and handles its result.
func (s *Service) issueOne(ctx context.Context, req domain.CredentialRequest) (string, error) {
	start := time.Now()
	resp, err := s.client.IssueCredentialResponse(ctx, req.Payload)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveIssue(metrics.OutcomeFailed, elapsed)
		s.log.ErrorObj("credential issue failed", "issue_error", map[string]any{
			"request_id": req.ID,
			"elapsed_ms": elapsed.Milliseconds(),
			"error":      err.Error(),
		})
		return metrics.OutcomeFailed, fmt.Errorf("issue request %s: %w", req.ID, err)
	}

	outcome := metrics.OutcomeIssued
	if !resp.IsSuccess() {
		outcome = metrics.OutcomeRejected
		s.log.WarnObj("credential issue returned non-2xx", "issue_rejected", map[string]any{
			"request_id": req.ID,
			"status":     resp.StatusCode,
			"summary":    SummarizeBody(resp.Header.Get("Content-Type"), resp.Body),
		})
	} else {
		s.log.InfoObj("credential issued", "issue_result", map[string]any{
			"request_id": req.ID,
			"status":     resp.StatusCode,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}
	s.metrics.ObserveIssue(outcome, elapsed)

	var errs []error
	if err := s.publish(ctx, req, resp); err != nil {
		errs = append(errs, err)
	}
	if s.deduper != nil {
		if err := s.deduper.MarkRequest(req.DedupeKey()); err != nil {
			errs = append(errs, fmt.Errorf("mark request %s: %w", req.ID, err))
		}
	}
	return outcome, errors.Join(errs...)
}

// publish fans the event out. Delivery failures do not undo the issue.
func (s *Service) publish(ctx context.Context, req domain.CredentialRequest, resp *atlas.Response) error {
	if s.publisher == nil {
		return nil
	}
	evt := publishers.NewEvent(req.ID, req.Fingerprint(), resp.StatusCode, resp.Body, req.Labels)
	delivered, err := s.publisher.Publish(ctx, evt)
	if err != nil {
		s.metrics.PublishFailed()
		s.log.ErrorObj("issuance event publish failed", "publish_error", map[string]any{
			"request_id": req.ID,
			"event_id":   evt.ID,
			"delivered":  delivered,
			"error":      err.Error(),
		})
		return fmt.Errorf("publish request %s: %w", req.ID, err)
	}
	return nil
}
