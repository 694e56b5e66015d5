package handler

import (
	"time"

	"carebridge/internal/connection/models"
	"carebridge/internal/connection/service"
	profile "carebridge/internal/profile/models"
)

// ConnectionResponse is the wire view of a connection.
type ConnectionResponse struct {
	ID            string          `json:"id"`
	FromProfileID string          `json:"from_profile_id"`
	ToProfileID   string          `json:"to_profile_id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Message       string          `json:"message,omitempty"`
	Metadata      models.Metadata `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func fromConnection(conn *models.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:            conn.ID.String(),
		FromProfileID: conn.FromProfileID.String(),
		ToProfileID:   conn.ToProfileID.String(),
		Type:          string(conn.Type),
		Status:        string(conn.Status),
		Message:       conn.Message,
		Metadata:      conn.Metadata,
		CreatedAt:     conn.CreatedAt,
		UpdatedAt:     conn.UpdatedAt,
	}
}

// ViewResponse is the HTTP response for GET /connections/{id}.
type ViewResponse struct {
	Connection  ConnectionResponse `json:"connection"`
	FromProfile profile.Summary    `json:"from_profile"`
	ToProfile   profile.Summary    `json:"to_profile"`
}

func fromView(view *service.View) ViewResponse {
	return ViewResponse{
		Connection:  fromConnection(view.Connection),
		FromProfile: view.FromProfile,
		ToProfile:   view.ToProfile,
	}
}

// ListResponse is the HTTP response for GET /connections.
type ListResponse struct {
	Connections []ConnectionResponse `json:"connections"`
}

func fromConnections(conns []*models.Connection) ListResponse {
	out := ListResponse{Connections: make([]ConnectionResponse, 0, len(conns))}
	for _, conn := range conns {
		out.Connections = append(out.Connections, fromConnection(conn))
	}
	return out
}

// ThreadResponse is the HTTP response for POST /connections/{id}/message.
type ThreadResponse struct {
	Thread []models.ThreadMessage `json:"thread"`
}
