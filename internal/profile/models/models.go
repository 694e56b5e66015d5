// Package models holds the profile domain model and the shareability gate.
// Profiles are created by the onboarding flow, which lives outside this
// service; the connection engine only reads them.
package models

import (
	"time"

	id "carebridge/pkg/domain"
)

// Profile is a marketplace party. One account owns one active profile.
type Profile struct {
	ID          id.ProfileID
	AccountID   id.AccountID
	Type        id.ProfileType
	DisplayName string
	City        string
	State       string
	CareTypes   []string
	Description string
	Phone       string
	Email       string
	Website     string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary is the participant view embedded in connection reads.
type Summary struct {
	ID          id.ProfileID   `json:"id"`
	Type        id.ProfileType `json:"type"`
	DisplayName string         `json:"display_name"`
	City        string         `json:"city,omitempty"`
	State       string         `json:"state,omitempty"`
}

func (p *Profile) Summary() Summary {
	return Summary{
		ID:          p.ID,
		Type:        p.Type,
		DisplayName: p.DisplayName,
		City:        p.City,
		State:       p.State,
	}
}

// HasContactMethod reports whether at least one contact surface is set.
func (p *Profile) HasContactMethod() bool {
	return p.Phone != "" || p.Email != "" || p.Website != ""
}

func (p *Profile) hasLocation() bool {
	return p.City != "" || p.State != ""
}

// IsShareable reports whether the profile meets the minimum completeness
// required before it may initiate contact. Providers additionally need a
// description and a contact method; families do not.
func (p *Profile) IsShareable() bool {
	if p.DisplayName == "" || !p.hasLocation() || len(p.CareTypes) == 0 {
		return false
	}
	if p.Type.IsProvider() {
		return p.Description != "" && p.HasContactMethod()
	}
	return true
}

// CompletionGaps enumerates human-readable labels for the missing fields, in
// a fixed order: display name, location, care types, description, contact
// method. Provider-only requirements are omitted for families.
func (p *Profile) CompletionGaps() []string {
	var gaps []string
	if p.DisplayName == "" {
		gaps = append(gaps, "display name")
	}
	if !p.hasLocation() {
		gaps = append(gaps, "location")
	}
	if len(p.CareTypes) == 0 {
		gaps = append(gaps, "care types")
	}
	if p.Type.IsProvider() {
		if p.Description == "" {
			gaps = append(gaps, "description")
		}
		if !p.HasContactMethod() {
			gaps = append(gaps, "contact method")
		}
	}
	return gaps
}
