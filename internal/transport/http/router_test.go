package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	connectionhandler "carebridge/internal/connection/handler"
	connectionservice "carebridge/internal/connection/service"
	connectionstore "carebridge/internal/connection/store"
	jwttoken "carebridge/internal/jwt_token"
	membershiphandler "carebridge/internal/membership/handler"
	membershipmodels "carebridge/internal/membership/models"
	membershipservice "carebridge/internal/membership/service"
	membershipstore "carebridge/internal/membership/store"
	"carebridge/internal/notify"
	profilehandler "carebridge/internal/profile/handler"
	profilemodels "carebridge/internal/profile/models"
	profilestore "carebridge/internal/profile/store"
	httptransport "carebridge/internal/transport/http"
	id "carebridge/pkg/domain"
)

// RouterSuite drives the assembled HTTP surface end to end: real router,
// middleware, JWT validation, services, and in-memory stores.
type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	jwt    *jwttoken.JWTService

	profiles    *profilestore.InMemoryStore
	memberships *membershipstore.InMemoryStore

	family   *profilemodels.Profile
	provider *profilemodels.Profile
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.profiles = profilestore.NewInMemoryStore()
	s.memberships = membershipstore.NewInMemoryStore()

	memberSvc, err := membershipservice.New(s.memberships, membershipservice.WithLogger(logger))
	s.Require().NoError(err)

	connSvc, err := connectionservice.New(connectionstore.NewInMemory(), s.profiles, memberSvc,
		connectionservice.WithNotifier(notify.NewPublisher(notify.NewMemoryStore())),
		connectionservice.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("router-test-key", "carebridge", "carebridge-api")
	validator := jwttoken.NewJWTServiceAdapter(s.jwt)

	router := httptransport.NewRouter(nil,
		connectionhandler.New(connSvc, logger, validator),
		membershiphandler.New(memberSvc, s.profiles, logger, validator),
		profilehandler.New(s.profiles, logger, validator),
	)
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	s.family = s.addProfile(id.ProfileTypeFamily, "The Okafors")
	s.provider = s.addProfile(id.ProfileTypeCaregiver, "Lena K.")
	s.Require().NoError(s.memberships.Upsert(context.Background(), &membershipmodels.Membership{
		AccountID: s.provider.AccountID,
		Status:    membershipmodels.StatusFree,
	}))
}

func (s *RouterSuite) addProfile(profileType id.ProfileType, name string) *profilemodels.Profile {
	p := &profilemodels.Profile{
		ID:          id.NewProfileID(),
		AccountID:   id.NewAccountID(),
		Type:        profileType,
		DisplayName: name,
		City:        "Spokane",
		State:       "WA",
		CareTypes:   []string{"companion_care"},
		Description: "Weekend and overnight availability.",
		Phone:       "509-555-0115",
		Active:      true,
	}
	s.Require().NoError(s.profiles.Upsert(context.Background(), p))
	return p
}

func (s *RouterSuite) do(accountID id.AccountID, method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	token, err := s.jwt.GenerateAccessToken(uuid.UUID(accountID), "someone@example.com", time.Hour)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *RouterSuite) TestConnectionLifecycleOverHTTP() {
	// Family opens an inquiry.
	resp := s.do(s.family.AccountID, http.MethodPost, "/connections", map[string]string{
		"to_profile_id": s.provider.ID.String(),
		"type":          "inquiry",
		"message":       "Looking for overnight help twice a week.",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	created := decode[connectionhandler.ConnectionResponse](s.T(), resp)
	s.Equal("pending", created.Status)
	connPath := "/connections/" + created.ID

	// Provider recipient may inspect the pending inquiry without spending quota.
	resp = s.do(s.provider.AccountID, http.MethodGet, connPath, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	view := decode[connectionhandler.ViewResponse](s.T(), resp)
	s.Equal(s.family.DisplayName, view.FromProfile.DisplayName)

	// Accepting is a metered action for a free provider.
	resp = s.do(s.provider.AccountID, http.MethodPost, connPath+"/respond", map[string]string{"decision": "accept"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("accepted", decode[connectionhandler.ConnectionResponse](s.T(), resp).Status)

	resp = s.do(s.provider.AccountID, http.MethodGet, "/membership/entitlement", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	entitlement := decode[struct {
		FreeRemaining *int `json:"free_remaining"`
	}](s.T(), resp)
	s.Require().NotNil(entitlement.FreeRemaining)
	s.Equal(membershipmodels.FreeResponseLimit-1, *entitlement.FreeRemaining)

	// Thread messages flow both ways once accepted.
	resp = s.do(s.family.AccountID, http.MethodPost, connPath+"/message", map[string]string{
		"text": "Could you start next Monday?",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	thread := decode[connectionhandler.ThreadResponse](s.T(), resp)
	s.Require().Len(thread.Thread, 1)

	// Either side can end it; the closing note lands in the thread.
	resp = s.do(s.provider.AccountID, http.MethodPost, connPath+"/end", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	ended := decode[connectionhandler.ConnectionResponse](s.T(), resp)
	s.Equal("expired", ended.Status)
	s.Require().Len(ended.Metadata.Thread, 2)
	s.Equal("You ended this connection", ended.Metadata.Thread[1].Text)

	resp = s.do(s.family.AccountID, http.MethodGet, "/connections?role=sent", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	list := decode[connectionhandler.ListResponse](s.T(), resp)
	s.Require().Len(list.Connections, 1)
	s.Equal(created.ID, list.Connections[0].ID)
}

func (s *RouterSuite) TestProfileCompletionOverHTTP() {
	resp := s.do(s.provider.AccountID, http.MethodGet, "/me/profile/completion", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	completion := decode[struct {
		Shareable bool     `json:"shareable"`
		Gaps      []string `json:"gaps"`
	}](s.T(), resp)
	s.True(completion.Shareable)
	s.Empty(completion.Gaps)
}

func (s *RouterSuite) TestRejectsMissingToken() {
	resp, err := s.server.Client().Get(s.server.URL + "/connections")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestHealthz() {
	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
