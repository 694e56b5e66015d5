package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "carebridge/pkg/domain"
)

func TestCanEngage_FamilyAlwaysAllowed(t *testing.T) {
	// Families never pay, regardless of membership state.
	for _, m := range []*Membership{
		nil,
		{Status: StatusCanceled},
		{Status: StatusFree, FreeResponsesUsed: FreeResponseLimit},
	} {
		for _, action := range AllActions {
			assert.True(t, CanEngage(id.ProfileTypeFamily, m, action),
				"family blocked on %s", action)
		}
	}
}

func TestCanEngage_UnmeteredProviderActions(t *testing.T) {
	for _, action := range []Action{ActionSave, ActionReceiveInquiry, ActionViewInquiryMeta} {
		assert.True(t, CanEngage(id.ProfileTypeOrganization, nil, action),
			"%s should not require membership", action)
	}
}

func TestCanEngage_MeteredProviderActions(t *testing.T) {
	metered := []Action{ActionViewInquiryDetails, ActionRespondToInquiry, ActionInitiateContact}

	t.Run("paid membership allowed", func(t *testing.T) {
		for _, action := range metered {
			assert.True(t, CanEngage(id.ProfileTypeCaregiver, &Membership{Status: StatusActive}, action))
		}
	})

	t.Run("past_due is a grace period", func(t *testing.T) {
		for _, action := range metered {
			assert.True(t, CanEngage(id.ProfileTypeCaregiver, &Membership{Status: StatusPastDue}, action))
		}
	})

	t.Run("free tier allowed under quota", func(t *testing.T) {
		m := &Membership{Status: StatusFree, FreeResponsesUsed: 2}
		assert.True(t, CanEngage(id.ProfileTypeOrganization, m, ActionRespondToInquiry))
	})

	t.Run("free tier denied at quota", func(t *testing.T) {
		m := &Membership{Status: StatusFree, FreeResponsesUsed: 3}
		assert.False(t, CanEngage(id.ProfileTypeOrganization, m, ActionRespondToInquiry))
	})

	t.Run("trialing follows the free quota", func(t *testing.T) {
		assert.True(t, CanEngage(id.ProfileTypeCaregiver, &Membership{Status: StatusTrialing, FreeResponsesUsed: 0}, ActionInitiateContact))
		assert.False(t, CanEngage(id.ProfileTypeCaregiver, &Membership{Status: StatusTrialing, FreeResponsesUsed: 3}, ActionInitiateContact))
	})

	t.Run("canceled denied", func(t *testing.T) {
		assert.False(t, CanEngage(id.ProfileTypeOrganization, &Membership{Status: StatusCanceled}, ActionViewInquiryDetails))
	})

	t.Run("absent membership denied", func(t *testing.T) {
		for _, action := range metered {
			assert.False(t, CanEngage(id.ProfileTypeOrganization, nil, action))
		}
	})
}

func TestFreeRemaining(t *testing.T) {
	t.Run("unlimited for paid and grace", func(t *testing.T) {
		assert.Nil(t, FreeRemaining(&Membership{Status: StatusActive}))
		assert.Nil(t, FreeRemaining(&Membership{Status: StatusPastDue}))
	})

	t.Run("counts down and floors at zero", func(t *testing.T) {
		m := &Membership{Status: StatusFree, FreeResponsesUsed: 1}
		remaining := FreeRemaining(m)
		assert.NotNil(t, remaining)
		assert.Equal(t, 2, *remaining)

		m.FreeResponsesUsed = 5
		remaining = FreeRemaining(m)
		assert.NotNil(t, remaining)
		assert.Equal(t, 0, *remaining)
	})

	t.Run("absent membership has zero remaining", func(t *testing.T) {
		remaining := FreeRemaining(nil)
		assert.NotNil(t, remaining)
		assert.Equal(t, 0, *remaining)
	})
}

func TestConsumesQuota(t *testing.T) {
	free := &Membership{Status: StatusFree}
	paid := &Membership{Status: StatusActive}

	assert.True(t, ConsumesQuota(id.ProfileTypeCaregiver, free, ActionRespondToInquiry))
	assert.True(t, ConsumesQuota(id.ProfileTypeOrganization, &Membership{Status: StatusTrialing}, ActionInitiateContact))
	assert.False(t, ConsumesQuota(id.ProfileTypeCaregiver, paid, ActionRespondToInquiry))
	assert.False(t, ConsumesQuota(id.ProfileTypeFamily, free, ActionRespondToInquiry))
	assert.False(t, ConsumesQuota(id.ProfileTypeCaregiver, free, ActionSave))
	assert.False(t, ConsumesQuota(id.ProfileTypeCaregiver, nil, ActionRespondToInquiry))
}
