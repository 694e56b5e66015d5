// Package webhook ingests the payment provider's subscription event stream.
// It is the only writer of membership subscription state.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/membership/metrics"
	"carebridge/internal/membership/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

const maxEventBody = 64 << 10

// Service is the slice of the membership service the webhook needs.
type Service interface {
	ApplySubscription(ctx context.Context, m *models.Membership) error
}

// event is the provider's envelope. Only the fields this handler reads are
// declared; the rest of the payload is ignored.
type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object subscriptionObject `json:"object"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Metadata struct {
		AccountID string `json:"account_id"`
	} `json:"metadata"`
	Plan struct {
		ID       string `json:"id"`
		Interval string `json:"interval"`
	} `json:"plan"`
	CurrentPeriodEnd int64 `json:"current_period_end"`
}

type Handler struct {
	logger   *slog.Logger
	service  Service
	dedup    Dedup
	metrics  *metrics.Metrics
	verifier *SignatureVerifier
}

func New(service Service, dedup Dedup, logger *slog.Logger, m *metrics.Metrics, verifier *SignatureVerifier) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		dedup:    dedup,
		metrics:  m,
		verifier: verifier,
	}
}

// Register mounts the webhook route. No auth middleware: the payment provider
// authenticates via the signature header, not a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/billing/webhook", h.handleEvent)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		h.logger.WarnContext(ctx, "unreadable webhook body", "request_id", requestID, "error", err)
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header.Get("Stripe-Signature"), body, requestcontext.Now(ctx)); err != nil {
			h.logger.WarnContext(ctx, "webhook signature rejected", "request_id", requestID, "error", err)
			h.metrics.RecordWebhookEvent("unknown", "bad_signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil || evt.ID == "" {
		h.logger.WarnContext(ctx, "malformed webhook event", "request_id", requestID, "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	fresh, err := h.dedup.MarkProcessed(ctx, evt.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook dedup check failed", "request_id", requestID, "error", err)
		// Fail closed: the provider retries, and dedup will catch replays then.
		http.Error(w, "dedup unavailable", http.StatusInternalServerError)
		return
	}
	if !fresh {
		h.metrics.RecordWebhookEvent(evt.Type, "duplicate")
		writeReceived(w)
		return
	}

	switch evt.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.applySubscription(ctx, evt, mapProviderStatus(evt.Data.Object.Status))
	case "customer.subscription.deleted":
		err = h.applySubscription(ctx, evt, models.StatusCanceled)
	case "invoice.payment_failed":
		err = h.applySubscription(ctx, evt, models.StatusPastDue)
	default:
		h.metrics.RecordWebhookEvent(evt.Type, "ignored")
		writeReceived(w)
		return
	}

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply webhook event",
			"request_id", requestID,
			"event_id", evt.ID,
			"event_type", evt.Type,
			"error", err,
		)
		// The membership write never happened. Release the dedup key so the
		// provider's retry is not swallowed as a duplicate.
		if ferr := h.dedup.Forget(ctx, evt.ID); ferr != nil {
			h.logger.ErrorContext(ctx, "failed to release webhook dedup key",
				"request_id", requestID,
				"event_id", evt.ID,
				"error", ferr,
			)
		}
		h.metrics.RecordWebhookEvent(evt.Type, "error")
		http.Error(w, "failed to apply event", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordWebhookEvent(evt.Type, "processed")
	writeReceived(w)
}

func (h *Handler) applySubscription(ctx context.Context, evt event, status models.Status) error {
	obj := evt.Data.Object
	accountID, err := id.ParseAccountID(obj.Metadata.AccountID)
	if err != nil {
		return err
	}
	m := &models.Membership{
		AccountID:            accountID,
		Status:               status,
		Plan:                 obj.Plan.ID,
		StripeCustomerID:     obj.Customer,
		StripeSubscriptionID: obj.ID,
		BillingCycle:         obj.Plan.Interval,
	}
	if obj.CurrentPeriodEnd > 0 {
		t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		m.CurrentPeriodEndsAt = &t
	}
	return h.service.ApplySubscription(ctx, m)
}

// mapProviderStatus translates the provider's subscription status vocabulary
// onto ours. Unknown values degrade to free rather than fail the event.
func mapProviderStatus(s string) models.Status {
	switch s {
	case "active":
		return models.StatusActive
	case "trialing":
		return models.StatusTrialing
	case "past_due":
		return models.StatusPastDue
	case "canceled", "unpaid", "incomplete_expired":
		return models.StatusCanceled
	default:
		return models.StatusFree
	}
}

func writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}
