package handler

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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carebridge/internal/connection/handler/mocks"
	"carebridge/internal/connection/models"
	"carebridge/internal/connection/service"
	"carebridge/internal/connection/store"
	profile "carebridge/internal/profile/models"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/connection-mocks.go -package=mocks Service
type ConnectionHandlerSuite struct {
	suite.Suite
	accountID id.AccountID
}

func (s *ConnectionHandlerSuite) SetupSuite() {
	s.accountID = id.NewAccountID()
}

func TestConnectionHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConnectionHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mockService, logger, nil), mockService
}

func (s *ConnectionHandlerSuite) request(method, target string, body any, connID *id.ConnectionID) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := requestcontext.WithAccountID(req.Context(), s.accountID)
	if connID != nil {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", connID.String())
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func sampleConnection(status models.Status) *models.Connection {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return &models.Connection{
		ID:            id.NewConnectionID(),
		FromProfileID: id.NewProfileID(),
		ToProfileID:   id.NewProfileID(),
		Type:          models.TypeInquiry,
		Status:        status,
		Message:       "Looking for memory care",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *ConnectionHandlerSuite) TestHandleCreate() {
	handler, mockService := newTestHandler(s.T())
	conn := sampleConnection(models.StatusPending)

	mockService.EXPECT().Create(gomock.Any(), service.CreateInput{
		ToProfileID: conn.ToProfileID,
		Type:        models.TypeInquiry,
		Message:     "Looking for memory care",
	}).Return(conn, nil)

	req := s.request(http.MethodPost, "/connections", CreateRequest{
		ToProfileID: conn.ToProfileID.String(),
		Type:        "inquiry",
		Message:     "Looking for memory care",
	}, nil)
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp ConnectionResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), conn.ID.String(), resp.ID)
	assert.Equal(s.T(), "pending", resp.Status)
}

func (s *ConnectionHandlerSuite) TestHandleCreateRejectsUnknownType() {
	handler, _ := newTestHandler(s.T())

	req := s.request(http.MethodPost, "/connections", CreateRequest{
		ToProfileID: id.NewProfileID().String(),
		Type:        "referral",
	}, nil)
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConnectionHandlerSuite) TestHandleCreateRejectsMalformedBody() {
	handler, _ := newTestHandler(s.T())

	req := s.request(http.MethodPost, "/connections", nil, nil)
	req.Body = io.NopCloser(bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.handleCreate(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConnectionHandlerSuite) TestHandleRespond() {
	handler, mockService := newTestHandler(s.T())
	conn := sampleConnection(models.StatusAccepted)

	mockService.EXPECT().Respond(gomock.Any(), conn.ID, service.DecisionAccept).Return(conn, nil)

	req := s.request(http.MethodPost, "/connections/"+conn.ID.String()+"/respond",
		RespondRequest{Decision: "accept"}, &conn.ID)
	w := httptest.NewRecorder()
	handler.handleRespond(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ConnectionResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "accepted", resp.Status)
}

func (s *ConnectionHandlerSuite) TestHandleRespondRejectsUnknownDecision() {
	handler, _ := newTestHandler(s.T())
	connID := id.NewConnectionID()

	req := s.request(http.MethodPost, "/connections/"+connID.String()+"/respond",
		RespondRequest{Decision: "maybe"}, &connID)
	w := httptest.NewRecorder()
	handler.handleRespond(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConnectionHandlerSuite) TestErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid state", dErrors.New(dErrors.CodeInvalidState, "connection is not awaiting a response"), http.StatusConflict},
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "only the recipient can respond"), http.StatusForbidden},
		{"quota", dErrors.New(dErrors.CodeQuotaExceeded, "free response allotment used up; upgrade to continue"), http.StatusPaymentRequired},
		{"not found", dErrors.New(dErrors.CodeNotFound, "connection not found"), http.StatusNotFound},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			handler, mockService := newTestHandler(s.T())
			connID := id.NewConnectionID()
			mockService.EXPECT().Respond(gomock.Any(), connID, service.DecisionAccept).Return(nil, tc.err)

			req := s.request(http.MethodPost, "/connections/"+connID.String()+"/respond",
				RespondRequest{Decision: "accept"}, &connID)
			w := httptest.NewRecorder()
			handler.handleRespond(w, req)

			assert.Equal(s.T(), tc.status, w.Code)
			var resp map[string]string
			require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(s.T(), resp["error"])
			assert.NotEmpty(s.T(), resp["message"])
		})
	}
}

func (s *ConnectionHandlerSuite) TestHandleWithdraw() {
	handler, mockService := newTestHandler(s.T())
	conn := sampleConnection(models.StatusExpired)
	conn.Metadata.Withdrawn = true

	mockService.EXPECT().Withdraw(gomock.Any(), conn.ID).Return(conn, nil)

	req := s.request(http.MethodPost, "/connections/"+conn.ID.String()+"/withdraw", nil, &conn.ID)
	w := httptest.NewRecorder()
	handler.handleWithdraw(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ConnectionResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "expired", resp.Status)
	assert.True(s.T(), resp.Metadata.Withdrawn)
}

func (s *ConnectionHandlerSuite) TestHandleMessage() {
	handler, mockService := newTestHandler(s.T())
	connID := id.NewConnectionID()
	author := id.NewProfileID()
	thread := []models.ThreadMessage{{FromProfileID: author, Text: "When can we visit?"}}

	mockService.EXPECT().Message(gomock.Any(), connID, "When can we visit?").Return(thread, nil)

	req := s.request(http.MethodPost, "/connections/"+connID.String()+"/message",
		MessageRequest{Text: "When can we visit?"}, &connID)
	w := httptest.NewRecorder()
	handler.handleMessage(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ThreadResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp.Thread, 1)
	assert.Equal(s.T(), "When can we visit?", resp.Thread[0].Text)
}

func (s *ConnectionHandlerSuite) TestHandleMessageRejectsBlankText() {
	handler, _ := newTestHandler(s.T())
	connID := id.NewConnectionID()

	req := s.request(http.MethodPost, "/connections/"+connID.String()+"/message",
		MessageRequest{Text: "   "}, &connID)
	w := httptest.NewRecorder()
	handler.handleMessage(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConnectionHandlerSuite) TestHandleGet() {
	handler, mockService := newTestHandler(s.T())
	conn := sampleConnection(models.StatusPending)
	view := &service.View{
		Connection:  conn,
		FromProfile: profile.Summary{ID: conn.FromProfileID, Type: id.ProfileTypeFamily, DisplayName: "The Harpers"},
		ToProfile:   profile.Summary{ID: conn.ToProfileID, Type: id.ProfileTypeOrganization, DisplayName: "Cedar Grove"},
	}

	mockService.EXPECT().Get(gomock.Any(), conn.ID).Return(view, nil)

	req := s.request(http.MethodGet, "/connections/"+conn.ID.String(), nil, &conn.ID)
	w := httptest.NewRecorder()
	handler.handleGet(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ViewResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), conn.ID.String(), resp.Connection.ID)
	assert.Equal(s.T(), "The Harpers", resp.FromProfile.DisplayName)
	assert.Equal(s.T(), "Cedar Grove", resp.ToProfile.DisplayName)
}

func (s *ConnectionHandlerSuite) TestHandleGetRejectsMalformedID() {
	handler, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodGet, "/connections/not-a-uuid", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	w := httptest.NewRecorder()
	handler.handleGet(w, req.WithContext(ctx))

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *ConnectionHandlerSuite) TestHandleList() {
	handler, mockService := newTestHandler(s.T())
	pending := models.StatusPending

	mockService.EXPECT().List(gomock.Any(), service.ListInput{Status: &pending, Role: store.RoleReceived, IncludeHidden: true}).
		Return([]*models.Connection{sampleConnection(models.StatusPending)}, nil)

	req := s.request(http.MethodGet, "/connections?status=pending&role=received&include_hidden=true", nil, nil)
	w := httptest.NewRecorder()
	handler.handleList(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp ListResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp.Connections, 1)
}

func (s *ConnectionHandlerSuite) TestHandleListRejectsUnknownStatus() {
	handler, _ := newTestHandler(s.T())

	req := s.request(http.MethodGet, "/connections?status=open", nil, nil)
	w := httptest.NewRecorder()
	handler.handleList(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}
