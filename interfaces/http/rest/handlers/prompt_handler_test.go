package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowde-backend/application/orchestration"
	"knowde-backend/application/ports"
	"knowde-backend/infrastructure/persistence/docstore"
	"knowde-backend/pkg/auth"
)

// stubModel answers every completion the pipeline asks for
type stubModel struct{}

func (m *stubModel) Generate(ctx context.Context, prompt string, schemaKind string) (string, error) {
	switch schemaKind {
	case "intent":
		if strings.Contains(prompt, "hello") {
			return `{"intent": "none"}`, nil
		}
		return `{"intent": "new_topic", "topic": "linear algebra"}`, nil
	case "planDraft":
		return `{
			"title": "Linear Algebra",
			"description": "From vectors to linear maps.",
			"lessons": [
				{"title": "Vectors", "objectives": ["understand vectors"], "content": "Vectors are arrows in space."},
				{"title": "Matrices", "objectives": ["understand matrices"], "content": "Matrices are tables of numbers."},
				{"title": "Linear Maps", "objectives": ["understand linear maps"], "content": "Linear maps transform vectors."}
			]
		}`, nil
	default:
		return `{
			"concepts": [
				{"name": "Vector", "description": "an arrow in space", "lessonId": ""},
				{"name": "Matrix", "description": "a table of numbers", "lessonId": ""}
			],
			"relations": [
				{"source": "Vector", "target": "Matrix", "relationship": "prerequisiteFor"}
			]
		}`, nil
	}
}

type stubSearch struct{}

func (s *stubSearch) Search(ctx context.Context, query string, maxResults int) ([]ports.SearchResult, error) {
	return []ports.SearchResult{{Title: "Tutorial", URL: "https://example.com/tutorial"}}, nil
}

func newTestPromptHandler() *PromptHandler {
	cfg := orchestration.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	coordinator := orchestration.NewCoordinator(
		&stubModel{},
		&stubSearch{},
		docstore.NewMemoryStore(),
		nil,
		docstore.NewLocalRunLocker(),
		zap.NewNop(),
		nil,
		nil,
		cfg,
	)
	return NewPromptHandler(coordinator, zap.NewNop())
}

func authenticated(r *http.Request, userID string) *http.Request {
	ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{UserID: userID})
	return r.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestSubmitPrompt_Success(t *testing.T) {
	handler := newTestPromptHandler()
	body := `{"userId": "carl", "prompt": "I want to learn about linear algebra"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader(body)), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "carl", data["userId"])
	result := data["result"].(map[string]interface{})
	assert.Equal(t, "completed", result["status"])
	assert.NotEmpty(t, result["planId"])
}

func TestSubmitPrompt_DefaultsToAuthenticatedUser(t *testing.T) {
	handler := newTestPromptHandler()
	body := `{"prompt": "I want to learn about linear algebra"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader(body)), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "carl", data["userId"])
}

func TestSubmitPrompt_ForbiddenForOtherUser(t *testing.T) {
	handler := newTestPromptHandler()
	body := `{"userId": "dana", "prompt": "I want to learn about linear algebra"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader(body)), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmitPrompt_InvalidBody(t *testing.T) {
	handler := newTestPromptHandler()
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader("{not json")), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitPrompt_NoActionableIntent(t *testing.T) {
	handler := newTestPromptHandler()
	body := `{"userId": "carl", "prompt": "hello there"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader(body)), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errorInfo := envelope["error"].(map[string]interface{})
	assert.Equal(t, "NO_ACTIONABLE_INTENT", errorInfo["code"])
}

func TestSubmitPromptQuery_Success(t *testing.T) {
	handler := newTestPromptHandler()
	req := authenticated(httptest.NewRequest(http.MethodGet,
		"/api/user-prompt?userId=carl&prompt=I+want+to+learn+about+linear+algebra", nil), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPromptQuery(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	result := data["result"].(map[string]interface{})
	assert.Equal(t, "completed", result["status"])
}

func TestSubmitPrompt_MissingPrompt(t *testing.T) {
	handler := newTestPromptHandler()
	body := `{"userId": "carl", "prompt": "   "}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/user-prompt", strings.NewReader(body)), "carl")
	rec := httptest.NewRecorder()

	handler.SubmitPrompt(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
