// Package service implements the connection lifecycle: create, respond,
// withdraw, end, message, hide, and the participant-scoped reads. Every
// transition on an existing row goes through the store's compare-and-swap so
// concurrent calls cannot double-apply.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"carebridge/internal/connection/metrics"
	"carebridge/internal/connection/models"
	"carebridge/internal/connection/store"
	membership "carebridge/internal/membership/models"
	"carebridge/internal/notify"
	profile "carebridge/internal/profile/models"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

var tracer = otel.Tracer("carebridge/internal/connection")

// endedThreadNote is the system message appended when a connection is ended.
const endedThreadNote = "You ended this connection"

// Decision is the recipient's answer to a pending connection.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision constructs a Decision from external input.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionAccept, DecisionDecline:
		return Decision(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be accept or decline")
}

// ProfileDirectory resolves actors and participants.
type ProfileDirectory interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profile.Profile, error)
	FindActiveByAccount(ctx context.Context, accountID id.AccountID) (*profile.Profile, error)
}

// Gate is the entitlement decision point. Reserve consumes a free-quota unit
// when the action draws on it; Release rolls that unit back after a failed
// action.
type Gate interface {
	Authorize(ctx context.Context, accountID id.AccountID, profileType id.ProfileType, action membership.Action) error
	Reserve(ctx context.Context, accountID id.AccountID, profileType id.ProfileType, action membership.Action) (bool, error)
	Release(ctx context.Context, accountID id.AccountID)
}

// Notifier receives lifecycle events for downstream delivery.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}

// TxRunner executes fn atomically. The context handed to fn carries the
// transaction for stores that honor it, so a connection insert and its outbox
// event commit together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	store    store.Store
	profiles ProfileDirectory
	gate     Gate
	notifier Notifier
	tx       TxRunner
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store store.Store, profiles ProfileDirectory, gate Gate, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("connection store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile directory is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("entitlement gate is required")
	}
	svc := &Service{store: store, profiles: profiles, gate: gate}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.notifier == nil {
		svc.notifier = notify.NopPublisher{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tx == nil {
		svc.tx = passthroughTx{}
	}
	return svc, nil
}

// CreateInput carries the fields of a connection request.
type CreateInput struct {
	ToProfileID id.ProfileID
	Type        models.Type
	Message     string
}

// Create inserts a new connection. Dismissals skip pending and land directly
// on archived; they record "not interested" and expect no response. Provider
// initiators must have a shareable profile and pass the entitlement gate.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.create")
	defer span.End()

	actor, err := s.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	if input.ToProfileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipient profile is required")
	}
	if input.ToProfileID == actor.ID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cannot create a connection with your own profile")
	}
	recipient, err := s.profiles.FindByID(ctx, input.ToProfileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recipient profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recipient profile")
	}

	status := models.StatusPending
	if input.Type == models.TypeDismiss {
		status = models.StatusArchived
	}

	var reserved bool
	if actor.Type.IsProvider() && input.Type != models.TypeDismiss {
		if !actor.IsShareable() {
			return nil, dErrors.New(dErrors.CodeForbidden, "complete your profile before initiating contact")
		}
		reserved, err = s.gate.Reserve(ctx, actor.AccountID, actor.Type, membership.ActionInitiateContact)
		if err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx).UTC()
	conn := &models.Connection{
		ID:            id.NewConnectionID(),
		FromProfileID: actor.ID,
		ToProfileID:   recipient.ID,
		Type:          input.Type,
		Status:        status,
		Message:       strings.TrimSpace(input.Message),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, conn); err != nil {
			return err
		}
		if status != models.StatusPending {
			return nil
		}
		return s.notifier.Emit(ctx, notify.Event{
			Action:             notify.ActionConnectionCreated,
			ConnectionID:       conn.ID,
			ActorProfileID:     actor.ID,
			RecipientProfileID: recipient.ID,
		})
	})
	if err != nil {
		if reserved {
			s.gate.Release(ctx, actor.AccountID)
		}
		s.metrics.RecordTransition("create", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create connection")
	}
	span.SetAttributes(attribute.String("connection.id", conn.ID.String()))
	s.metrics.RecordTransition("create", "success")
	return conn, nil
}

// Respond records the recipient's decision on a pending connection. Only the
// recipient may call; provider recipients pass the entitlement gate first.
func (s *Service) Respond(ctx context.Context, connID id.ConnectionID, decision Decision) (*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.respond")
	defer span.End()

	actor, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	if actor.ID != conn.ToProfileID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the recipient can respond")
	}
	if !conn.CanRespond() {
		s.metrics.RecordTransition("respond", "invalid_state")
		return nil, dErrors.New(dErrors.CodeInvalidState, "connection is not awaiting a response")
	}

	reserved, err := s.gate.Reserve(ctx, actor.AccountID, actor.Type, membership.ActionRespondToInquiry)
	if err != nil {
		return nil, err
	}

	next := models.StatusAccepted
	if decision == DecisionDecline {
		next = models.StatusDeclined
	}
	// Respond changes no metadata. Passing nil keeps the stored document, so
	// a message appended between the load and this write survives.
	updated, err := s.store.CompareAndSwap(ctx, connID, models.StatusPending, next, nil)
	if err != nil {
		if reserved {
			s.gate.Release(ctx, actor.AccountID)
		}
		s.metrics.RecordTransition("respond", outcomeOf(err))
		return nil, mapSwapErr(err, "connection is not awaiting a response")
	}
	s.metrics.RecordTransition("respond", "success")
	s.emit(ctx, notify.ActionConnectionResponded, updated, actor.ID, updated.FromProfileID)
	return updated, nil
}

// Withdraw retracts a pending connection. Only the initiator may call. The
// recipient is not notified; withdrawal before a response stays invisible.
func (s *Service) Withdraw(ctx context.Context, connID id.ConnectionID) (*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.withdraw")
	defer span.End()

	actor, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	if actor.ID != conn.FromProfileID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the initiator can withdraw")
	}
	if !conn.CanWithdraw() {
		s.metrics.RecordTransition("withdraw", "invalid_state")
		return nil, dErrors.New(dErrors.CodeInvalidState, "only pending connections can be withdrawn")
	}

	now := requestcontext.Now(ctx).UTC()
	meta := conn.Metadata
	meta.Withdrawn = true
	meta.WithdrawnAt = &now

	updated, err := s.store.CompareAndSwap(ctx, connID, models.StatusPending, models.StatusExpired, &meta)
	if err != nil {
		s.metrics.RecordTransition("withdraw", outcomeOf(err))
		return nil, mapSwapErr(err, "only pending connections can be withdrawn")
	}
	s.metrics.RecordTransition("withdraw", "success")
	return updated, nil
}

// End closes an accepted connection. Either participant may call. A system
// note lands on the thread and the counterpart is notified.
func (s *Service) End(ctx context.Context, connID id.ConnectionID) (*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.end")
	defer span.End()

	actor, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	if !conn.CanEnd() {
		s.metrics.RecordTransition("end", "invalid_state")
		return nil, dErrors.New(dErrors.CodeInvalidState, "only accepted connections can be ended")
	}

	now := requestcontext.Now(ctx).UTC()
	meta := conn.Metadata.AppendThread(models.ThreadMessage{
		FromProfileID: actor.ID,
		Text:          endedThreadNote,
		CreatedAt:     now,
		Type:          models.ThreadMessageSystem,
	})
	meta.Ended = true
	meta.EndedAt = &now
	meta.NextStepRequest = nil

	updated, err := s.store.CompareAndSwap(ctx, connID, models.StatusAccepted, models.StatusExpired, &meta)
	if err != nil {
		s.metrics.RecordTransition("end", outcomeOf(err))
		return nil, mapSwapErr(err, "only accepted connections can be ended")
	}
	s.metrics.RecordTransition("end", "success")

	counterpart, _ := updated.OtherParticipant(actor.ID)
	s.emit(ctx, notify.ActionConnectionEnded, updated, actor.ID, counterpart)
	return updated, nil
}

// Message appends to the connection thread. Either participant may call while
// the connection is pending or accepted.
//
// The append is a read-modify-write on the metadata document guarded only by
// the status compare-and-swap: a concurrent transition makes the write fail,
// but two simultaneous appends can still race and the later write wins. The
// window is one fetch-to-update round trip.
func (s *Service) Message(ctx context.Context, connID id.ConnectionID, text string) ([]models.ThreadMessage, error) {
	ctx, span := tracer.Start(ctx, "connection.message")
	defer span.End()

	actor, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	trimmed, err := models.ValidateMessageText(text)
	if err != nil {
		return nil, err
	}
	if !conn.CanMessage() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "messaging is closed for this connection")
	}

	meta := conn.Metadata.AppendThread(models.ThreadMessage{
		FromProfileID: actor.ID,
		Text:          trimmed,
		CreatedAt:     requestcontext.Now(ctx).UTC(),
	})
	updated, err := s.store.CompareAndSwap(ctx, connID, conn.Status, conn.Status, &meta)
	if err != nil {
		return nil, mapSwapErr(err, "messaging is closed for this connection")
	}
	s.metrics.RecordThreadAppend()
	return updated.Metadata.Thread, nil
}

// Hide flags a resolved connection as hidden from the actor's list. It does
// not affect the counterpart's view.
func (s *Service) Hide(ctx context.Context, connID id.ConnectionID) (*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.hide")
	defer span.End()

	_, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	if !conn.CanHide() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only resolved connections can be hidden")
	}

	meta := conn.Metadata
	meta.Hidden = true
	updated, err := s.store.CompareAndSwap(ctx, connID, conn.Status, conn.Status, &meta)
	if err != nil {
		return nil, mapSwapErr(err, "only resolved connections can be hidden")
	}
	s.metrics.RecordTransition("hide", "success")
	return updated, nil
}

// View is a connection joined with both participants' profile summaries.
type View struct {
	Connection  *models.Connection
	FromProfile profile.Summary
	ToProfile   profile.Summary
}

// Get returns the participant view of one connection. Provider recipients of
// a still-pending inquiry pass the view entitlement check first; the check
// never consumes quota.
func (s *Service) Get(ctx context.Context, connID id.ConnectionID) (*View, error) {
	ctx, span := tracer.Start(ctx, "connection.get")
	defer span.End()

	actor, conn, err := s.loadForParticipant(ctx, connID)
	if err != nil {
		return nil, err
	}
	if actor.Type.IsProvider() && actor.ID == conn.ToProfileID &&
		conn.Type == models.TypeInquiry && conn.Status == models.StatusPending {
		if err := s.gate.Authorize(ctx, actor.AccountID, actor.Type, membership.ActionViewInquiryDetails); err != nil {
			return nil, err
		}
	}

	from, err := s.profiles.FindByID(ctx, conn.FromProfileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant profile")
	}
	to, err := s.profiles.FindByID(ctx, conn.ToProfileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant profile")
	}
	return &View{Connection: conn, FromProfile: from.Summary(), ToProfile: to.Summary()}, nil
}

// ListInput narrows the actor's connection list.
type ListInput struct {
	Status        *models.Status
	Role          store.Role
	IncludeHidden bool
}

// List returns the actor's connections, newest first.
func (s *Service) List(ctx context.Context, input ListInput) ([]*models.Connection, error) {
	ctx, span := tracer.Start(ctx, "connection.list")
	defer span.End()

	actor, err := s.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := s.store.ListByProfile(ctx, actor.ID, store.ListFilter{
		Status:        input.Status,
		Role:          input.Role,
		IncludeHidden: input.IncludeHidden,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connections")
	}
	return conns, nil
}

func (s *Service) actorProfile(ctx context.Context) (*profile.Profile, error) {
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	p, err := s.profiles.FindActiveByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "no active profile")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active profile")
	}
	return p, nil
}

func (s *Service) loadForParticipant(ctx context.Context, connID id.ConnectionID) (*profile.Profile, *models.Connection, error) {
	actor, err := s.actorProfile(ctx)
	if err != nil {
		return nil, nil, err
	}
	conn, err := s.store.FindByID(ctx, connID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "connection not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
	}
	if !conn.HasParticipant(actor.ID) {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "you are not part of this connection")
	}
	return actor, conn, nil
}

func (s *Service) emit(ctx context.Context, action notify.Action, conn *models.Connection, actorID, recipientID id.ProfileID) {
	err := s.notifier.Emit(ctx, notify.Event{
		Action:             action,
		ConnectionID:       conn.ID,
		ActorProfileID:     actorID,
		RecipientProfileID: recipientID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit lifecycle event",
			"action", string(action),
			"connection_id", conn.ID.String(),
			"error", err,
		)
	}
}

// mapSwapErr translates store sentinels from a failed compare-and-swap. A
// guard failure means someone else already transitioned the row.
func mapSwapErr(err error, invalidStateMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "connection not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, invalidStateMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update connection")
}

func outcomeOf(err error) string {
	if errors.Is(err, sentinel.ErrInvalidState) {
		return "invalid_state"
	}
	return "error"
}
