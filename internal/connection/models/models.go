// Package models holds the connection record: a directed relationship request
// between two profiles, its status machine, and its embedded conversation
// thread.
package models

import (
	"encoding/json"
	"strings"
	"time"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// Status is the state-machine variable. Statuses form a closed enumeration;
// transition legality lives in the CanX helpers so every rule sits in one
// place.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusAccepted: true,
	StatusDeclined: true,
	StatusExpired:  true,
	StatusArchived: true,
}

// ParseStatus constructs a Status from stored or external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported connection status: "+s)
	}
	return st, nil
}

// Type classifies a connection at creation and never changes.
type Type string

const (
	TypeInquiry     Type = "inquiry"
	TypeApplication Type = "application"
	TypeInvitation  Type = "invitation"
	TypeDismiss     Type = "dismiss"
)

var validTypes = map[Type]bool{
	TypeInquiry:     true,
	TypeApplication: true,
	TypeInvitation:  true,
	TypeDismiss:     true,
}

// ParseType constructs a Type from external input.
func ParseType(s string) (Type, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "connection type cannot be empty")
	}
	t := Type(s)
	if !validTypes[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported connection type: "+s)
	}
	return t, nil
}

// ThreadMessageSystem marks machine-appended thread entries (the end note).
const ThreadMessageSystem = "system"

// ThreadMessage is one entry of the append-only conversation log. Immutable
// once appended.
type ThreadMessage struct {
	FromProfileID id.ProfileID `json:"from_profile_id"`
	Text          string       `json:"text"`
	CreatedAt     time.Time    `json:"created_at"`
	Type          string       `json:"type,omitempty"`
}

// Metadata is the extensible state attached to a connection. Modeled as an
// explicit struct rather than an open map so flag handling is type-checked.
type Metadata struct {
	Thread          []ThreadMessage `json:"thread,omitempty"`
	Withdrawn       bool            `json:"withdrawn,omitempty"`
	WithdrawnAt     *time.Time      `json:"withdrawn_at,omitempty"`
	Ended           bool            `json:"ended,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Hidden          bool            `json:"hidden,omitempty"`
	NextStepRequest json.RawMessage `json:"next_step_request,omitempty"`
}

// Connection is the authoritative record of a relationship request.
type Connection struct {
	ID            id.ConnectionID
	FromProfileID id.ProfileID
	ToProfileID   id.ProfileID
	Type          Type
	Status        Status
	Message       string
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasParticipant reports whether the profile is one of the two parties.
func (c *Connection) HasParticipant(profileID id.ProfileID) bool {
	return c.FromProfileID == profileID || c.ToProfileID == profileID
}

// OtherParticipant returns the counterpart of the given profile.
func (c *Connection) OtherParticipant(profileID id.ProfileID) (id.ProfileID, bool) {
	if c.FromProfileID == profileID {
		return c.ToProfileID, true
	}
	if c.ToProfileID == profileID {
		return c.FromProfileID, true
	}
	return id.ProfileID{}, false
}

// CanRespond: only pending connections accept a decision.
func (c *Connection) CanRespond() bool { return c.Status == StatusPending }

// CanWithdraw: the initiator may retract only while pending.
func (c *Connection) CanWithdraw() bool { return c.Status == StatusPending }

// CanEnd: only accepted connections can be ended.
func (c *Connection) CanEnd() bool { return c.Status == StatusAccepted }

// CanMessage: the thread is open only while the relationship is live.
func (c *Connection) CanMessage() bool {
	return c.Status == StatusPending || c.Status == StatusAccepted
}

// CanHide: resolved or past connections may be hidden from the actor's list.
func (c *Connection) CanHide() bool {
	switch c.Status {
	case StatusDeclined, StatusExpired, StatusArchived:
		return true
	case StatusPending, StatusAccepted:
		return false
	}
	return false
}

// AppendThread returns a copy of the metadata with one message appended. The
// receiver is untouched; the thread is append-only and order-preserving.
func (m Metadata) AppendThread(msg ThreadMessage) Metadata {
	thread := make([]ThreadMessage, len(m.Thread), len(m.Thread)+1)
	copy(thread, m.Thread)
	m.Thread = append(thread, msg)
	return m
}

// ValidateMessageText trims and checks a thread message body.
func ValidateMessageText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "message text cannot be empty")
	}
	return trimmed, nil
}
