// Package handler exposes the connection lifecycle over HTTP. Authorization
// beyond bearer auth (participant checks, entitlement) lives in the service;
// this layer decodes, validates, and maps errors to the JSON envelope.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/connection/models"
	"carebridge/internal/connection/service"
	"carebridge/internal/connection/store"
	"carebridge/internal/platform/middleware"
	"carebridge/internal/transport/http/shared"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
)

// Service is the slice of the connection service this handler consumes.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.Connection, error)
	Respond(ctx context.Context, connID id.ConnectionID, decision service.Decision) (*models.Connection, error)
	Withdraw(ctx context.Context, connID id.ConnectionID) (*models.Connection, error)
	End(ctx context.Context, connID id.ConnectionID) (*models.Connection, error)
	Message(ctx context.Context, connID id.ConnectionID, text string) ([]models.ThreadMessage, error)
	Hide(ctx context.Context, connID id.ConnectionID) (*models.Connection, error)
	Get(ctx context.Context, connID id.ConnectionID) (*service.View, error)
	List(ctx context.Context, input service.ListInput) ([]*models.Connection, error)
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      svc,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the connection routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Post("/", h.handleCreate)
	router.Get("/", h.handleList)
	router.Get("/{id}", h.handleGet)
	router.Post("/{id}/respond", h.handleRespond)
	router.Post("/{id}/withdraw", h.handleWithdraw)
	router.Post("/{id}/end", h.handleEnd)
	router.Post("/{id}/message", h.handleMessage)
	router.Post("/{id}/hide", h.handleHide)

	r.Mount("/connections", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := shared.DecodeAndPrepare[CreateRequest](w, r)
	if !ok {
		return
	}
	conn, err := h.service.Create(ctx, service.CreateInput{
		ToProfileID: req.parsedTo,
		Type:        req.parsedType,
		Message:     req.Message,
	})
	if err != nil {
		h.logFailure(ctx, "create connection failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, fromConnection(conn))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connID, ok := h.connectionID(w, r)
	if !ok {
		return
	}
	req, ok := shared.DecodeAndPrepare[RespondRequest](w, r)
	if !ok {
		return
	}
	conn, err := h.service.Respond(ctx, connID, req.parsedDecision)
	if err != nil {
		h.logFailure(ctx, "respond failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromConnection(conn))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "withdraw failed", h.service.Withdraw)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "end failed", h.service.End)
}

func (h *Handler) handleHide(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "hide failed", h.service.Hide)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, logMsg string,
	op func(context.Context, id.ConnectionID) (*models.Connection, error)) {
	ctx := r.Context()
	connID, ok := h.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := op(ctx, connID)
	if err != nil {
		h.logFailure(ctx, logMsg, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromConnection(conn))
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connID, ok := h.connectionID(w, r)
	if !ok {
		return
	}
	req, ok := shared.DecodeAndPrepare[MessageRequest](w, r)
	if !ok {
		return
	}
	thread, err := h.service.Message(ctx, connID, req.Text)
	if err != nil {
		h.logFailure(ctx, "message failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ThreadResponse{Thread: thread})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connID, ok := h.connectionID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(ctx, connID)
	if err != nil {
		h.logFailure(ctx, "get connection failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromView(view))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input service.ListInput
	switch role := store.Role(r.URL.Query().Get("role")); role {
	case store.RoleAny, store.RoleSent, store.RoleReceived:
		input.Role = role
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "role must be sent or received"))
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		input.Status = &status
	}
	if raw := r.URL.Query().Get("include_hidden"); raw != "" {
		includeHidden, err := strconv.ParseBool(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "include_hidden must be a boolean"))
			return
		}
		input.IncludeHidden = includeHidden
	}

	conns, err := h.service.List(ctx, input)
	if err != nil {
		h.logFailure(ctx, "list connections failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromConnections(conns))
}

func (h *Handler) connectionID(w http.ResponseWriter, r *http.Request) (id.ConnectionID, bool) {
	connID, err := id.ParseConnectionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid connection id"))
		return id.ConnectionID{}, false
	}
	return connID, true
}

// logFailure keeps handler logs to unexpected failures; coded client errors
// already carry their own story back to the caller.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
