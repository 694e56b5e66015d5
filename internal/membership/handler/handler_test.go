package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebridge/internal/membership/models"
	"carebridge/internal/membership/service"
	"carebridge/internal/membership/store"
	profilemodels "carebridge/internal/profile/models"
	profilestore "carebridge/internal/profile/store"
	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

type fixture struct {
	handler     *Handler
	memberships *store.InMemoryStore
	profiles    *profilestore.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	memberships := store.NewInMemoryStore()
	profiles := profilestore.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(memberships, service.WithLogger(logger))
	require.NoError(t, err)
	return &fixture{
		handler:     New(svc, profiles, logger, nil),
		memberships: memberships,
		profiles:    profiles,
	}
}

func (f *fixture) addProfile(t *testing.T, profileType id.ProfileType) *profilemodels.Profile {
	t.Helper()
	p := &profilemodels.Profile{
		ID:        id.NewProfileID(),
		AccountID: id.NewAccountID(),
		Type:      profileType,
		Active:    true,
	}
	require.NoError(t, f.profiles.Upsert(context.Background(), p))
	return p
}

func (f *fixture) get(accountID id.AccountID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/membership/entitlement", nil)
	req = req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
	w := httptest.NewRecorder()
	f.handler.handleEntitlement(w, req)
	return w
}

func allowedByAction(t *testing.T, body []byte) (map[models.Action]bool, *int) {
	t.Helper()
	var resp entitlementResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	out := make(map[models.Action]bool, len(resp.Entitlements))
	for _, e := range resp.Entitlements {
		out[e.Action] = e.Allowed
	}
	return out, resp.FreeRemaining
}

func TestHandleEntitlementFreeProvider(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, id.ProfileTypeCaregiver)
	require.NoError(t, f.memberships.Upsert(context.Background(), &models.Membership{
		AccountID:         p.AccountID,
		Status:            models.StatusFree,
		FreeResponsesUsed: 1,
	}))

	w := f.get(p.AccountID)
	require.Equal(t, http.StatusOK, w.Code)

	allowed, remaining := allowedByAction(t, w.Body.Bytes())
	assert.True(t, allowed[models.ActionSave])
	assert.True(t, allowed[models.ActionReceiveInquiry])
	assert.True(t, allowed[models.ActionRespondToInquiry])
	require.NotNil(t, remaining)
	assert.Equal(t, 2, *remaining)
}

func TestHandleEntitlementExhaustedProvider(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, id.ProfileTypeCaregiver)
	require.NoError(t, f.memberships.Upsert(context.Background(), &models.Membership{
		AccountID:         p.AccountID,
		Status:            models.StatusFree,
		FreeResponsesUsed: models.FreeResponseLimit,
	}))

	w := f.get(p.AccountID)
	require.Equal(t, http.StatusOK, w.Code)

	allowed, remaining := allowedByAction(t, w.Body.Bytes())
	assert.True(t, allowed[models.ActionViewInquiryMeta])
	assert.False(t, allowed[models.ActionViewInquiryDetails])
	assert.False(t, allowed[models.ActionRespondToInquiry])
	assert.False(t, allowed[models.ActionInitiateContact])
	require.NotNil(t, remaining)
	assert.Equal(t, 0, *remaining)
}

func TestHandleEntitlementPaidProvider(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, id.ProfileTypeOrganization)
	require.NoError(t, f.memberships.Upsert(context.Background(), &models.Membership{
		AccountID: p.AccountID,
		Status:    models.StatusActive,
		Plan:      "pro",
	}))

	w := f.get(p.AccountID)
	require.Equal(t, http.StatusOK, w.Code)

	allowed, remaining := allowedByAction(t, w.Body.Bytes())
	for _, action := range models.AllActions {
		assert.True(t, allowed[action], "action %s", action)
	}
	assert.Nil(t, remaining)
}

func TestHandleEntitlementFamilyNeverGated(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, id.ProfileTypeFamily)

	w := f.get(p.AccountID)
	require.Equal(t, http.StatusOK, w.Code)

	allowed, remaining := allowedByAction(t, w.Body.Bytes())
	for _, action := range models.AllActions {
		assert.True(t, allowed[action], "action %s", action)
	}
	require.NotNil(t, remaining)
	assert.Equal(t, 0, *remaining)
}

func TestHandleEntitlementNoActiveProfile(t *testing.T) {
	f := newFixture(t)

	w := f.get(id.NewAccountID())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
