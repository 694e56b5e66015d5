package handler

import (
	"strings"

	"carebridge/internal/connection/models"
	"carebridge/internal/connection/service"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

const maxMessageLength = 4000

// CreateRequest is the HTTP request body for POST /connections.
type CreateRequest struct {
	ToProfileID string `json:"to_profile_id"`
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`

	parsedTo   id.ProfileID
	parsedType models.Type
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ToProfileID = strings.TrimSpace(r.ToProfileID)
	if r.ToProfileID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "to_profile_id is required")
	}
	to, err := id.ParseProfileID(r.ToProfileID)
	if err != nil {
		return err
	}
	r.parsedTo = to

	connType, err := models.ParseType(strings.TrimSpace(r.Type))
	if err != nil {
		return err
	}
	r.parsedType = connType

	if len(r.Message) > maxMessageLength {
		return dErrors.New(dErrors.CodeInvalidInput, "message is too long")
	}
	return nil
}

// RespondRequest is the HTTP request body for POST /connections/{id}/respond.
type RespondRequest struct {
	Decision string `json:"decision"`

	parsedDecision service.Decision
}

func (r *RespondRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	decision, err := service.ParseDecision(strings.TrimSpace(r.Decision))
	if err != nil {
		return err
	}
	r.parsedDecision = decision
	return nil
}

// MessageRequest is the HTTP request body for POST /connections/{id}/message.
type MessageRequest struct {
	Text string `json:"text"`
}

func (r *MessageRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Text) > maxMessageLength {
		return dErrors.New(dErrors.CodeInvalidInput, "message is too long")
	}
	if strings.TrimSpace(r.Text) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "message text cannot be empty")
	}
	return nil
}
