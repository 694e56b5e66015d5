// Package handler exposes profile introspection for the authenticated actor.
// Profile creation and editing belong to the onboarding flow, which lives
// outside this service.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/platform/middleware"
	"carebridge/internal/profile/models"
	"carebridge/internal/transport/http/shared"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

// ProfileResolver resolves the actor's single active profile.
type ProfileResolver interface {
	FindActiveByAccount(ctx context.Context, accountID id.AccountID) (*models.Profile, error)
}

type Handler struct {
	profiles     ProfileResolver
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(profiles ProfileResolver, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		profiles:     profiles,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the profile routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/profile/completion", h.handleCompletion)

	r.Mount("/me", router)
}

type completionResponse struct {
	Shareable bool     `json:"shareable"`
	Gaps      []string `json:"gaps"`
}

func (h *Handler) handleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.profiles.FindActiveByAccount(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no active profile"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to resolve active profile",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to resolve profile"))
		return
	}

	gaps := profile.CompletionGaps()
	if gaps == nil {
		gaps = []string{}
	}
	shared.WriteJSON(w, http.StatusOK, completionResponse{
		Shareable: profile.IsShareable(),
		Gaps:      gaps,
	})
}
