// Package handler exposes entitlement introspection for the authenticated
// actor. The webhook intake lives in the webhook package because it carries
// no bearer auth.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/membership/service"
	"carebridge/internal/platform/middleware"
	profilemodels "carebridge/internal/profile/models"
	"carebridge/internal/transport/http/shared"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

// Service is the slice of the membership service this handler consumes.
type Service interface {
	Entitlements(ctx context.Context, accountID id.AccountID, profileType id.ProfileType) ([]service.Entitlement, *int, error)
}

// ProfileResolver resolves the actor's single active profile.
type ProfileResolver interface {
	FindActiveByAccount(ctx context.Context, accountID id.AccountID) (*profilemodels.Profile, error)
}

type Handler struct {
	logger       *slog.Logger
	service      Service
	profiles     ProfileResolver
	jwtValidator middleware.JWTValidator
}

func New(svc Service, profiles ProfileResolver, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      svc,
		profiles:     profiles,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the entitlement routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/entitlement", h.handleEntitlement)

	r.Mount("/membership", router)
}

type entitlementResponse struct {
	Entitlements  []service.Entitlement `json:"entitlements"`
	FreeRemaining *int                  `json:"free_remaining"`
}

func (h *Handler) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		h.logger.ErrorContext(ctx, "account missing from context despite auth middleware",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	profile, err := h.profiles.FindActiveByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no active profile"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to resolve active profile",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to resolve profile"))
		return
	}

	entitlements, remaining, err := h.service.Entitlements(ctx, accountID, profile.Type)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to evaluate entitlements",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entitlementResponse{
		Entitlements:  entitlements,
		FreeRemaining: remaining,
	})
}

