package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/portal-service/internal/handler"
	"github.com/psds-microservice/portal-service/internal/identity"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/service"
	"github.com/psds-microservice/portal-service/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenTable map[string]*identity.Identity

func (t tokenTable) Verify(raw string) (*identity.Identity, error) {
	id, ok := t[raw]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return id, nil
}

type testServer struct {
	h     http.Handler
	store *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for _, u := range []*model.User{
		{ID: "u-tourist", ExternalIdentityID: "ext-tourist", Email: "tina@example.com", FirstName: "Tina", LastName: "Traveller", Role: model.RoleTourist},
		{ID: "u-other", ExternalIdentityID: "ext-other", Email: "otto@example.com", FirstName: "Otto", Role: model.RoleTourist},
		{ID: "u-admin", ExternalIdentityID: "ext-admin", Email: "adam@example.com", FirstName: "Adam", LastName: "Desk", Role: model.RoleAdmin},
		{ID: "u-super", ExternalIdentityID: "ext-super", Email: "sue@example.com", FirstName: "Sue", Role: model.RoleSuperAdmin},
	} {
		u.CreatedAt, u.UpdatedAt = now, now
		require.NoError(t, st.CreateUser(context.Background(), u))
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []service.Option{service.WithLogger(log)}
	users := service.NewUserService(st, opts...)
	convs := service.NewConversationService(st, users, opts...)
	support := service.NewSupportService(st, users, opts...)
	leads := service.NewLeadService(st, opts...)

	tokens := tokenTable{
		"tourist": {Subject: "ext-tourist"},
		"other":   {Subject: "ext-other"},
		"admin":   {Subject: "ext-admin"},
		"super":   {Subject: "ext-super"},
		"newbie":  {Subject: "ext-newbie", Email: "nora@example.com", FirstName: "Nora"},
	}
	h := New(Deps{
		Log:           log,
		Verifier:      tokens,
		Directory:     users,
		Users:         handler.NewUserHandler(users),
		Conversations: handler.NewConversationHandler(convs, users),
		Tickets:       handler.NewTicketHandler(support, nil),
		Leads:         handler.NewLeadHandler(leads),
	})
	return &testServer{h: h, store: st}
}

func (s *testServer) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	var out map[string]interface{}
	if rec.Body.Len() > 0 && rec.Body.String() != "null" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealthAndSwagger(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodGet, paths.PathHealth, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = s.call(t, http.MethodGet, paths.PathReady, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	code, body = s.call(t, http.MethodGet, paths.PathSwagger+"/openapi.json", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3.0.3", body["openapi"])
}

func TestMe(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	code, _ = s.call(t, http.MethodGet, "/api/v1/me", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.call(t, http.MethodGet, "/api/v1/me", "newbie", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.call(t, http.MethodGet, "/api/v1/me", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u-admin", body["id"])
	assert.Equal(t, "admin", body["role"])
}

func TestSync_CreatesTourist(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodPost, "/api/v1/me/sync", "newbie", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tourist", body["role"])
	assert.Equal(t, "nora@example.com", body["email"])
	assert.Equal(t, "Nora", body["first_name"])

	code, again := s.call(t, http.MethodPost, "/api/v1/me/sync", "newbie", map[string]string{"last_name": "North"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, body["id"], again["id"])
	assert.Equal(t, "North", again["last_name"])
}

func TestSync_ChunkedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/sync", strings.NewReader(`{"first_name":"Nadia","last_name":"North"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer newbie")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Nadia", body["first_name"])
	assert.Equal(t, "North", body["last_name"])
}

func TestStaffRoutes_Gated(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "/login", body["redirect"])

	code, body = s.call(t, http.MethodGet, "/api/v1/users", "tourist", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "/portal", body["redirect"])

	code, body = s.call(t, http.MethodGet, "/api/v1/users?role=tourist", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])

	code, _ = s.call(t, http.MethodGet, "/api/v1/tickets", "tourist", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestUpdateRole(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodPut, "/api/v1/users/u-tourist/role", "admin", map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", body["role"])

	code, body = s.call(t, http.MethodPut, "/api/v1/users/u-other/role", "admin", map[string]string{"role": "super_admin"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PERMISSION_DENIED", body["code"])

	code, _ = s.call(t, http.MethodPut, "/api/v1/users/u-other/role", "super", map[string]string{"role": "pilot"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.call(t, http.MethodPut, "/api/v1/users/nobody/role", "super", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAccess(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		token, query, state, redirect string
	}{
		{"", "", "denied", "/login"},
		{"tourist", "", "allowed", ""},
		{"tourist", "?require_admin=true", "denied", "/portal"},
		{"admin", "?require_admin=true", "allowed", ""},
		{"admin", "?require_super_admin=true", "denied", "/portal"},
		{"super", "?require_super_admin=1", "allowed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.token+tt.query, func(t *testing.T) {
			code, body := s.call(t, http.MethodGet, "/api/v1/access"+tt.query, tt.token, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.state, body["state"])
			if tt.redirect == "" {
				assert.NotContains(t, body, "redirect")
			} else {
				assert.Equal(t, tt.redirect, body["redirect"])
			}
		})
	}
}

func TestConversationFlow(t *testing.T) {
	s := newTestServer(t)

	code, conv := s.call(t, http.MethodPost, "/api/v1/conversations", "tourist", map[string]string{"user_id": "u-admin"})
	require.Equal(t, http.StatusOK, code)
	convID := conv["id"].(string)
	assert.ElementsMatch(t, []interface{}{"u-tourist", "u-admin"}, conv["participant_ids"])

	code, again := s.call(t, http.MethodPost, "/api/v1/conversations", "admin", map[string]string{"user_id": "u-tourist"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, convID, again["id"])

	code, msg := s.call(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "tourist", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "u-tourist", msg["sender_id"])

	code, _ = s.call(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "admin", map[string]string{"content": "Hi there"})
	require.Equal(t, http.StatusCreated, code)

	code, body := s.call(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", "tourist", nil)
	require.Equal(t, http.StatusOK, code)
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]interface{})
	second := msgs[1].(map[string]interface{})
	assert.Equal(t, "Hello", first["content"])
	assert.Equal(t, "Tina Traveller", first["sender_name"])
	assert.Equal(t, "tourist", first["sender_role"])
	assert.Equal(t, "Hi there", second["content"])
	assert.Equal(t, "Adam Desk", second["sender_name"])

	code, body = s.call(t, http.MethodGet, "/api/v1/conversations", "tourist", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, _ = s.call(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "other", map[string]string{"content": "let me in"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.call(t, http.MethodGet, "/api/v1/conversations?user_id=u-tourist", "other", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestConversation_InvalidPairing(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodPost, "/api/v1/conversations", "tourist", map[string]string{"user_id": "u-other"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_PAIRING", body["code"])

	code, _ = s.call(t, http.MethodPost, "/api/v1/conversations", "tourist", map[string]string{"user_id": "u-tourist"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.call(t, http.MethodPost, "/api/v1/conversations", "tourist", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.call(t, http.MethodGet, "/api/v1/conversations/missing/messages", "tourist", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodGet, "/api/v1/bookings/BK-7/ticket", "tourist", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body)

	code, body = s.call(t, http.MethodPost, "/api/v1/bookings/BK-7/ticket", "tourist", map[string]string{"subject": "Refund", "message": "My tour was cancelled"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["created"])
	ticketID := body["ticket_id"].(string)

	code, body = s.call(t, http.MethodPost, "/api/v1/bookings/BK-7/ticket", "tourist", map[string]string{"subject": "ignored", "message": "Any news?"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, ticketID, body["ticket_id"])
	assert.Equal(t, 1, s.store.TicketCount("BK-7"))

	code, _ = s.call(t, http.MethodGet, "/api/v1/bookings/BK-7/ticket", "other", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.call(t, http.MethodPost, "/api/v1/tickets/"+ticketID+"/messages", "admin", map[string]string{"content": "Refund issued"})
	require.Equal(t, http.StatusCreated, code)

	code, body = s.call(t, http.MethodGet, "/api/v1/bookings/BK-7/ticket", "tourist", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Refund", body["subject"])
	assert.Len(t, body["messages"], 3)

	code, body = s.call(t, http.MethodPost, "/api/v1/tickets/"+ticketID+"/close", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closed", body["status"])
	closedAt := body["closed_at"]
	require.NotNil(t, closedAt)

	code, body = s.call(t, http.MethodPost, "/api/v1/tickets/"+ticketID+"/close", "tourist", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, closedAt, body["closed_at"])

	code, body = s.call(t, http.MethodGet, "/api/v1/tickets?status=closed", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, _ = s.call(t, http.MethodGet, "/api/v1/tickets?status=pending", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.call(t, http.MethodPost, "/api/v1/tickets/missing/close", "admin", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTicket_OverlongInputIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	code, body := s.call(t, http.MethodPost, "/api/v1/bookings/"+strings.Repeat("9", 65)+"/ticket", "tourist", map[string]string{"message": "help"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	code, body = s.call(t, http.MethodPost, "/api/v1/bookings/BK-8/ticket", "tourist", map[string]string{"subject": strings.Repeat("s", 256), "message": "help"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	code, _ = s.call(t, http.MethodPost, "/api/v1/contact", "", map[string]string{
		"name": "Ivan", "email": "ivan@example.com", "phone": strings.Repeat("7", 65), "message": "call me",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLeads(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.call(t, http.MethodPost, "/api/v1/newsletter", "", map[string]string{"email": "Fan@Example.com"})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = s.call(t, http.MethodPost, "/api/v1/newsletter", "", map[string]string{"email": "fan@example.com"})
	assert.Equal(t, http.StatusOK, code)
	code, body := s.call(t, http.MethodPost, "/api/v1/newsletter", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	code, body = s.call(t, http.MethodPost, "/api/v1/contact", "", map[string]string{
		"name": "Ivan", "email": "ivan@example.com", "message": "Group tour for 12?",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["id"])
	assert.Len(t, s.store.ContactRequests(), 1)

	code, _ = s.call(t, http.MethodPost, "/api/v1/contact", "", map[string]string{"name": "Ivan"})
	assert.Equal(t, http.StatusBadRequest, code)
}
