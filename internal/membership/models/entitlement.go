package models

import id "carebridge/pkg/domain"

// FreeResponseLimit is the fixed lifetime allotment of metered actions for
// non-paying providers. It never replenishes except by upgrading.
const FreeResponseLimit = 3

// CanEngage decides whether an actor may perform an action. This is pure
// domain logic - no I/O, no side effects - so the rules stay centralized and
// testable.
//
// Rule chain:
//  1. Families are the demand side and never pay.
//  2. Saving a provider and receiving/listing inquiries are always free.
//  3. Contact-surface actions require a paid membership; past_due is a grace
//     period while billing retries.
//  4. Free and trialing providers spend the lifetime free allotment.
//  5. No membership record means no contact-surface access.
func CanEngage(profileType id.ProfileType, m *Membership, action Action) bool {
	if !profileType.IsProvider() {
		return true
	}
	if !action.IsMetered() {
		return true
	}
	if m == nil {
		return false
	}
	switch m.Status {
	case StatusActive, StatusPastDue:
		return true
	case StatusFree, StatusTrialing:
		return m.FreeResponsesUsed < FreeResponseLimit
	case StatusCanceled:
		return false
	}
	return false
}

// FreeRemaining returns nil to mean "unlimited" (paid or grace membership),
// otherwise the number of free metered actions left.
func FreeRemaining(m *Membership) *int {
	if m != nil && (m.Status == StatusActive || m.Status == StatusPastDue) {
		return nil
	}
	remaining := 0
	if m != nil {
		if left := FreeResponseLimit - m.FreeResponsesUsed; left > 0 {
			remaining = left
		}
	}
	return &remaining
}

// ConsumesQuota reports whether a permitted action must decrement the free
// allotment: only metered actions performed on a free-tier membership do.
func ConsumesQuota(profileType id.ProfileType, m *Membership, action Action) bool {
	if !profileType.IsProvider() || !action.IsMetered() || m == nil {
		return false
	}
	return m.Status == StatusFree || m.Status == StatusTrialing
}
