// Package domain holds typed identifiers and shared domain values. IDs are
// distinct types over uuid.UUID so the compiler rejects cross-assignment
// (passing a ProfileID where a ConnectionID is expected).
//
// Construct IDs via the Parse* functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "carebridge/pkg/domain-errors"
)

type (
	// AccountID identifies an authenticated account (the identity boundary).
	AccountID uuid.UUID
	// ProfileID identifies a marketplace party (family, organization, caregiver).
	ProfileID uuid.UUID
	// ConnectionID identifies a connection record.
	ConnectionID uuid.UUID
)

func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }
func NewProfileID() ProfileID       { return ProfileID(uuid.New()) }
func NewAccountID() AccountID       { return AccountID(uuid.New()) }

func (id AccountID) String() string    { return uuid.UUID(id).String() }
func (id ProfileID) String() string    { return uuid.UUID(id).String() }
func (id ConnectionID) String() string { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ConnectionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IDs embedded in JSON documents (thread metadata, outbox events) serialize
// as canonical UUID strings. Defined types do not inherit uuid.UUID's
// marshalers, so these are spelled out.

func (id AccountID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ProfileID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ConnectionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProfileID) UnmarshalText(b []byte) error {
	parsed, err := ParseProfileID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ConnectionID) UnmarshalText(b []byte) error {
	parsed, err := ParseConnectionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// ParseAccountID constructs an AccountID from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account")
	return AccountID(u), err
}

// ParseProfileID constructs a ProfileID from external input.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s, "profile")
	return ProfileID(u), err
}

// ParseConnectionID constructs a ConnectionID from external input.
func ParseConnectionID(s string) (ConnectionID, error) {
	u, err := parseUUID(s, "connection")
	return ConnectionID(u), err
}
