package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/classifier"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/delivery"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/lifecycle"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/sla"
)

type testServer struct {
	app        *fiber.App
	tokens     *auth.TokenManager
	dispatcher *events.AsyncDispatcher
	handlers   *repository.MemoryHandlerRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tickets := repository.NewMemoryTicketRepository()
	handlerRepo := repository.NewMemoryHandlerRepository(tickets)
	dispatcher := events.NewAsyncDispatcher(logger)
	t.Cleanup(dispatcher.Close)

	notifications := service.NewNotificationService(dispatcher, delivery.NewMemoryTransport(), logger, metrics, config.NotificationConfig{MaxAttempts: 1})
	notifications.RegisterHandlers()

	calc := sla.NewCalculator(sla.DefaultConfig())
	complaints := service.NewComplaintService(service.ComplaintDependencies{
		TicketRepo: tickets,
		Assignment: service.NewAssignmentService(handlerRepo),
		Classifier: classifier.NewKeywordClassifier(),
		Machine:    lifecycle.NewMachine(calc),
		SLA:        calc,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	roster := service.NewRosterService(config.AssignmentConfig{DefaultCapacity: 5}, handlerRepo)
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("complaint-service", "test", nil),
		Complaints:     handlers.NewComplaintsHandler(complaints),
		Roster:         handlers.NewRosterHandler(roster),
		Notifications:  handlers.NewNotificationsHandler(notifications, complaints),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
	})
	return &testServer{app: app, tokens: tokens, dispatcher: dispatcher, handlers: handlerRepo}
}

func (s *testServer) token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(domain.Actor{ID: id, Role: role})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, _ = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/complaints", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestComplaintFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", domain.RoleUser)
	bob := s.token(t, "bob", domain.RoleUser)
	sue := s.token(t, "sue", domain.RoleSupervisor)

	status, body := s.do(t, fiber.MethodPost, "/complaints", alice, map[string]string{
		"title":       "App crash",
		"description": "The app shows an error after login",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, "TECHNICAL", data["category"])
	assert.Equal(t, "OPEN", data["status"])
	assert.Len(t, data["updates"], 1)

	status, body = s.do(t, fiber.MethodPost, "/complaints", alice, map[string]string{"title": " ", "description": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "EMPTY_TITLE", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/complaints/"+id, bob, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "NOT_TICKET_OWNER", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/complaints/missing", alice, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "TICKET_NOT_FOUND", errorCode(body))

	status, _ = s.do(t, fiber.MethodPatch, "/complaints/"+id+"/status", alice, map[string]string{"status": "RESOLVED"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/feedback", alice, map[string]int{"rating": 5})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "FEEDBACK_NOT_ALLOWED", errorCode(body))

	status, body = s.do(t, fiber.MethodPatch, "/complaints/"+id+"/status", sue, map[string]string{"status": "RESOLVED"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "RESOLVED", body["data"].(map[string]any)["status"])

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/feedback", alice, map[string]int{"rating": 5})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = s.do(t, fiber.MethodGet, "/complaints/"+id+"/sla", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]any)["breached"])

	status, body = s.do(t, fiber.MethodGet, "/complaints/stats", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["resolved"])

	s.dispatcher.Flush()
	status, body = s.do(t, fiber.MethodGet, "/notifications", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user:alice", body["audience"])
	assert.NotEmpty(t, body["data"])

	status, _ = s.do(t, fiber.MethodGet, "/notifications?ticket_id="+id, bob, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestAssignmentErrorsMapToStatuses(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", domain.RoleUser)
	sue := s.token(t, "sue", domain.RoleSupervisor)

	status, body := s.do(t, fiber.MethodPut, "/roster/handlers/anna", sue, map[string]any{
		"name":         "Anna",
		"categories":   []string{"BILLING"},
		"availability": "BUSY",
	})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = s.do(t, fiber.MethodPost, "/complaints", alice, map[string]string{
		"title":       "Refund",
		"description": "Still waiting for my refund",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, "anna", data["assigned_to"])

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/assign", sue, map[string]string{"handler_id": "anna"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "HANDLER_UNAVAILABLE", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/assign", sue, map[string]string{"handler_id": "ghost"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "HANDLER_NOT_FOUND", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/escalate", sue, map[string]string{"reason": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "EMPTY_REASON", errorCode(body))

	status, _ = s.do(t, fiber.MethodGet, "/roster/handlers", alice, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	handler, err := s.handlers.GetByID(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, 1, handler.ActiveLoad)
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "alice", domain.RoleUser)

	status, body := s.do(t, fiber.MethodPost, "/classify", token, map[string]string{"text": "URGENT: the server is down"})
	require.Equal(t, fiber.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "URGENT", data["priority"])
	assert.Equal(t, "TECHNICAL", data["category"])

	status, body = s.do(t, fiber.MethodPost, "/classify", token, map[string]string{"text": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestInternalNotesAndBacklogAutoAssign(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", domain.RoleUser)
	sue := s.token(t, "sue", domain.RoleSupervisor)
	anna := s.token(t, "anna", domain.RoleHandler)
	ben := s.token(t, "ben", domain.RoleHandler)

	status, body := s.do(t, fiber.MethodPost, "/complaints", alice, map[string]string{
		"title":       "Refund",
		"description": "Still waiting for my refund",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.Nil(t, data["assigned_to"])

	status, body = s.do(t, fiber.MethodPut, "/roster/handlers/anna", sue, map[string]any{
		"name":       "Anna",
		"categories": []string{"BILLING"},
	})
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = s.do(t, fiber.MethodPost, "/complaints/auto-assign", alice, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodPost, "/complaints/auto-assign", sue, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["assigned"])

	status, body = s.do(t, fiber.MethodGet, "/complaints/"+id, sue, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "anna", body["data"].(map[string]any)["assigned_to"])

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/internal-notes", ben, map[string]string{"note": "not mine"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "NOT_ASSIGNEE", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/internal-notes", anna, map[string]string{"note": "customer is a VIP"})
	require.Equal(t, fiber.StatusCreated, status, body)
	updates := body["data"].(map[string]any)["updates"].([]any)
	last := updates[len(updates)-1].(map[string]any)
	assert.Equal(t, true, last["internal"])
	assert.Equal(t, "customer is a VIP", last["message"])

	status, body = s.do(t, fiber.MethodGet, "/complaints/"+id, alice, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	for _, raw := range body["data"].(map[string]any)["updates"].([]any) {
		u := raw.(map[string]any)
		assert.Equal(t, false, u["internal"])
		assert.NotEqual(t, "customer is a VIP", u["message"])
	}

	status, _ = s.do(t, fiber.MethodGet, "/complaints/"+id+"/internal-notes", alice, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodGet, "/complaints/"+id+"/internal-notes", sue, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, fiber.MethodPost, "/complaints/"+id+"/auto-assign", sue, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "anna", body["data"].(map[string]any)["assigned_to"])
}
