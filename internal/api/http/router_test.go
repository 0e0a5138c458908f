package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/gateway/gatewaytest"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/store"
	"github.com/spec-kit/field-service/internal/worker"
)

type testEnv struct {
	app   *fiber.App
	fake  *gatewaytest.Fake
	store *store.RequestStore

	studentToken    string
	technicianToken string
	adminToken      string
}

func newTestEnv(t *testing.T, seed ...domain.Request) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	fake := gatewaytest.New()
	fake.Seed(seed...)
	dispatcher := events.NewInMemoryDispatcher()

	pool, err := worker.NewPool(context.Background(), 1, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	requestStore, err := store.New(context.Background(), store.Dependencies{
		Gateway:    fake,
		Dispatcher: dispatcher,
		Pool:       pool,
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(requestStore.Close)

	tokens := auth.NewTokenManager("test-secret", 60)
	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("field-service", "test", map[string]handlers.Pinger{}),
		Requests:       handlers.NewRequestsHandler(requestStore),
		Technician:     handlers.NewTechnicianRequestsHandler(requestStore),
		Admin:          handlers.NewAdminRequestsHandler(requestStore),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	env := &testEnv{app: app, fake: fake, store: requestStore}
	env.studentToken = mintToken(t, tokens, "s1", domain.RoleStudent)
	env.technicianToken = mintToken(t, tokens, "t1", domain.RoleTechnician)
	env.adminToken = mintToken(t, tokens, "a1", domain.RoleAdmin)
	return env
}

func mintToken(t *testing.T, tokens *auth.TokenManager, subject string, role domain.Role) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(subject, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) awaitCall(t *testing.T, op string) {
	t.Helper()
	select {
	case call := <-e.fake.Calls:
		require.Equal(t, op, call.Op)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for gateway %s", op)
	}
}

func decodeRequest(t *testing.T, resp *http.Response) dto.RequestResponse {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Data dto.RequestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Data
}

func seedPending(id, createdBy string) domain.Request {
	return domain.Request{
		ID:          id,
		Title:       "projector flickering",
		Status:      domain.RequestStatusPending,
		Priority:    domain.RequestPriorityMedium,
		CreatedBy:   createdBy,
		DateCreated: time.Now(),
	}
}

func TestCreateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/requests", "", map[string]string{"title": "x", "description": "y"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateRequestFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/requests", env.studentToken, dto.CreateRequestRequest{
		Title:       "projector flickering",
		Description: "room 204, intermittent",
		Location:    "building B",
		Category:    "electrical",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	created := decodeRequest(t, resp)
	require.NotEmpty(t, created.ID)
	require.Equal(t, domain.RequestStatusPending, created.Status)
	require.Equal(t, "s1", created.CreatedBy)

	// the cache fills once the change stream confirms the write
	env.awaitCall(t, "create")
	env.fake.EmitSnapshot()

	listResp := env.do(t, http.MethodGet, "/requests", env.studentToken, nil)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	defer listResp.Body.Close()
	var list struct {
		Data []dto.RequestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	require.Equal(t, created.ID, list.Data[0].ID)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/requests", env.studentToken, dto.CreateRequestRequest{Title: "only a title"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStudentCannotUseTechnicianRoutes(t *testing.T) {
	env := newTestEnv(t, seedPending("r1", "s1"))

	resp := env.do(t, http.MethodPost, "/technician/requests/r1/claim", env.studentToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTechnicianClaimAndWorkflow(t *testing.T) {
	env := newTestEnv(t, seedPending("r1", "s1"))

	resp := env.do(t, http.MethodPost, "/technician/requests/r1/claim", env.technicianToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claimed := decodeRequest(t, resp)
	require.Equal(t, domain.RequestStatusAssigned, claimed.Status)
	require.Equal(t, "t1", *claimed.AssignedTechnicianID)
	require.Equal(t, domain.AssignmentSourceTechnician, *claimed.AssignmentSource)
	env.awaitCall(t, "update")

	resp = env.do(t, http.MethodPost, "/technician/requests/r1/start", env.technicianToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, domain.RequestStatusActive, decodeRequest(t, resp).Status)
	env.awaitCall(t, "update")

	resp = env.do(t, http.MethodPost, "/technician/requests/r1/complete", env.technicianToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, domain.RequestStatusCompleted, decodeRequest(t, resp).Status)
	env.awaitCall(t, "update")
}

func TestReleaseAdminAssignmentForbidden(t *testing.T) {
	env := newTestEnv(t, seedPending("r1", "s1"))

	resp := env.do(t, http.MethodPost, "/admin/requests/r1/assign", env.adminToken, dto.AssignRequestRequest{TechnicianID: "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assigned := decodeRequest(t, resp)
	require.Equal(t, domain.AssignmentSourceAdmin, *assigned.AssignmentSource)
	env.awaitCall(t, "update")

	resp = env.do(t, http.MethodPost, "/technician/requests/r1/release", env.technicianToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRatingConflictOnSecondSubmission(t *testing.T) {
	completed := seedPending("r1", "s1")
	completed.Status = domain.RequestStatusCompleted
	env := newTestEnv(t, completed)

	resp := env.do(t, http.MethodPost, "/requests/r1/rating", env.studentToken, dto.RateRequestRequest{Rating: 5, Comment: "Great"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.awaitCall(t, "submit_rating")
	env.fake.EmitSnapshot()

	resp = env.do(t, http.MethodPost, "/requests/r1/rating", env.studentToken, dto.RateRequestRequest{Rating: 2})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdminStatusRejectsIllegalTransition(t *testing.T) {
	env := newTestEnv(t, seedPending("r1", "s1"))

	resp := env.do(t, http.MethodPost, "/admin/requests/r1/status", env.adminToken, dto.UpdateStatusRequest{Status: domain.RequestStatusCompleted})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStudentSeesOnlyOwnRequests(t *testing.T) {
	env := newTestEnv(t, seedPending("r1", "s1"), seedPending("r2", "someone-else"))

	resp := env.do(t, http.MethodGet, "/requests", env.studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var list struct {
		Data []dto.RequestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	require.Equal(t, "r1", list.Data[0].ID)

	forbidden := env.do(t, http.MethodGet, "/requests/r2", env.studentToken, nil)
	require.Equal(t, http.StatusForbidden, forbidden.StatusCode)
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
