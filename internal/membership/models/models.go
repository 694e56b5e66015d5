// Package models holds the membership record and the entitlement gate.
// Membership rows are mutated exclusively by the billing webhook handler,
// except for the free-usage counter which gated actions consume.
package models

import (
	"time"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// Status mirrors the payment provider's subscription lifecycle.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusFree     Status = "free"
	StatusTrialing Status = "trialing"
)

var validStatuses = map[Status]bool{
	StatusActive:   true,
	StatusPastDue:  true,
	StatusCanceled: true,
	StatusFree:     true,
	StatusTrialing: true,
}

// ParseStatus constructs a Status from external input (webhook payloads).
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "membership status cannot be empty")
	}
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported membership status: "+s)
	}
	return st, nil
}

// Membership is one account's subscription state. FreeResponsesUsed is a
// lifetime counter; it never resets except by plan change.
type Membership struct {
	AccountID            id.AccountID
	Status               Status
	Plan                 string
	FreeResponsesUsed    int
	StripeCustomerID     string
	StripeSubscriptionID string
	BillingCycle         string
	CurrentPeriodEndsAt  *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Action is a contact-surface operation the gate rules on.
type Action string

const (
	ActionSave               Action = "save"
	ActionReceiveInquiry     Action = "receive_inquiry"
	ActionViewInquiryMeta    Action = "view_inquiry_metadata"
	ActionViewInquiryDetails Action = "view_inquiry_details"
	ActionRespondToInquiry   Action = "respond_to_inquiry"
	ActionInitiateContact    Action = "initiate_contact"
)

// AllActions lists every gated action, in a stable order for introspection
// responses.
var AllActions = []Action{
	ActionSave,
	ActionReceiveInquiry,
	ActionViewInquiryMeta,
	ActionViewInquiryDetails,
	ActionRespondToInquiry,
	ActionInitiateContact,
}

// meteredActions are the provider actions that expose a contact surface and
// therefore count against the free allotment.
var meteredActions = map[Action]bool{
	ActionViewInquiryDetails: true,
	ActionRespondToInquiry:   true,
	ActionInitiateContact:    true,
}

// IsMetered reports whether the action counts against the free quota.
func (a Action) IsMetered() bool { return meteredActions[a] }
