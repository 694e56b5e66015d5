// Package service orchestrates entitlement decisions around the pure gate in
// models. The gate itself stays free of I/O; this layer fetches membership
// state and owns quota consumption.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carebridge/internal/membership/metrics"
	"carebridge/internal/membership/models"
	"carebridge/internal/membership/store"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
)

// Store is re-exported so callers wire against the service package only.
type Store = store.Store

type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// MembershipFor loads the account's membership. Absence is a valid gate input
// and returns (nil, nil), not an error.
func (s *Service) MembershipFor(ctx context.Context, accountID id.AccountID) (*models.Membership, error) {
	m, err := s.store.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}

// Entitlement is one row of the introspection response.
type Entitlement struct {
	Action  models.Action `json:"action"`
	Allowed bool          `json:"allowed"`
}

// Entitlements evaluates the gate for every action plus the free-quota
// remainder (nil meaning unlimited).
func (s *Service) Entitlements(ctx context.Context, accountID id.AccountID, profileType id.ProfileType) ([]Entitlement, *int, error) {
	m, err := s.MembershipFor(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Entitlement, 0, len(models.AllActions))
	for _, action := range models.AllActions {
		out = append(out, Entitlement{Action: action, Allowed: models.CanEngage(profileType, m, action)})
	}
	return out, models.FreeRemaining(m), nil
}

// Authorize returns nil when the actor may perform the action, or a coded
// error the caller can surface directly. It performs no side effects.
func (s *Service) Authorize(ctx context.Context, accountID id.AccountID, profileType id.ProfileType, action models.Action) error {
	m, err := s.MembershipFor(ctx, accountID)
	if err != nil {
		return err
	}
	if models.CanEngage(profileType, m, action) {
		return nil
	}
	if m == nil || m.Status == models.StatusCanceled {
		s.metrics.RecordGateDenial(string(action), "membership_required")
		return dErrors.New(dErrors.CodeForbidden, "an active membership is required for this action")
	}
	s.metrics.RecordGateDenial(string(action), "quota_exhausted")
	return dErrors.New(dErrors.CodeQuotaExceeded, "free response allotment used up; upgrade to continue")
}

// Reserve authorizes the action and, when it draws on the free quota,
// consumes one unit atomically. It returns true when a unit was consumed so
// the caller can roll it back if the action itself subsequently fails -
// keeping the counter at exactly one increment per successful action.
func (s *Service) Reserve(ctx context.Context, accountID id.AccountID, profileType id.ProfileType, action models.Action) (bool, error) {
	m, err := s.MembershipFor(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !models.CanEngage(profileType, m, action) {
		if m == nil || m.Status == models.StatusCanceled {
			s.metrics.RecordGateDenial(string(action), "membership_required")
			return false, dErrors.New(dErrors.CodeForbidden, "an active membership is required for this action")
		}
		s.metrics.RecordGateDenial(string(action), "quota_exhausted")
		return false, dErrors.New(dErrors.CodeQuotaExceeded, "free response allotment used up; upgrade to continue")
	}
	if !models.ConsumesQuota(profileType, m, action) {
		return false, nil
	}
	err = s.store.ConsumeFreeResponse(ctx, accountID, models.FreeResponseLimit)
	if err != nil {
		// The conditional increment lost a race with a concurrent action.
		if errors.Is(err, sentinel.ErrQuotaExhausted) {
			s.metrics.RecordGateDenial(string(action), "quota_exhausted")
			return false, dErrors.New(dErrors.CodeQuotaExceeded, "free response allotment used up; upgrade to continue")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume free response")
	}
	s.metrics.RecordQuotaConsumed()
	return true, nil
}

// Release rolls back one reserved free-quota unit after a failed action.
func (s *Service) Release(ctx context.Context, accountID id.AccountID) {
	if err := s.store.ReleaseFreeResponse(ctx, accountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release free response reservation",
			"account_id", accountID.String(),
			"error", err,
		)
	}
}

// ApplySubscription writes webhook-derived subscription state.
func (s *Service) ApplySubscription(ctx context.Context, m *models.Membership) error {
	if err := s.store.Upsert(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist membership")
	}
	return nil
}
