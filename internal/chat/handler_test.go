package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/medassist-ai-platform/internal/http/middleware"
)

func newTestHandler(t *testing.T, store *memoryStore, orch *stubOrchestrator) http.Handler {
	t.Helper()
	svc := NewService(store, nil, orch, nil, nil)
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Route("/chat", h.Routes)
	return r
}

func authedRequest(method, target, body string, identity middleware.Identity) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func patientIdentity() middleware.Identity {
	return middleware.Identity{
		UserID: uuid.New(),
		Name:   "Jane Roe",
		Email:  "jane@example.com",
		Role:   middleware.RolePatient,
	}
}

func TestHandlerMessage(t *testing.T) {
	store := newMemoryStore()
	orch := &stubOrchestrator{result: InferenceResult{
		Content:     "Rest and drink fluids.",
		Explanation: "General guidance.",
		Success:     true,
	}}
	handler := newTestHandler(t, store, orch)

	req := authedRequest(http.MethodPost, "/chat/message",
		`{"sessionId":"sess-1","message":"I have a headache","messageType":"text"}`,
		patientIdentity())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Rest and drink fluids.", resp.AIResponse)
	assert.Equal(t, "General guidance.", resp.Explanation)
}

func TestHandlerMessageValidation(t *testing.T) {
	handler := newTestHandler(t, newMemoryStore(), &stubOrchestrator{})

	cases := []struct {
		name string
		body string
	}{
		{"missing session", `{"message":"hi"}`},
		{"missing message", `{"sessionId":"sess-1"}`},
		{"file without message", `{"sessionId":"sess-1","messageType":"image","fileUrl":"/uploads/a.jpg"}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/chat/message", tc.body, patientIdentity())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerMessageRequiresIdentity(t *testing.T) {
	handler := newTestHandler(t, newMemoryStore(), &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/chat/message",
		strings.NewReader(`{"sessionId":"sess-1","message":"hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerStartAndSessions(t *testing.T) {
	store := newMemoryStore()
	handler := newTestHandler(t, store, &stubOrchestrator{})
	identity := patientIdentity()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/chat/start", "", identity))
	require.Equal(t, http.StatusCreated, rec.Code)

	var startResp struct {
		Success bool    `json:"success"`
		Session Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &startResp))
	assert.True(t, startResp.Success)
	assert.NotEmpty(t, startResp.Session.SessionID)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/chat/sessions", "", identity))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Success  bool             `json:"success"`
		Sessions []SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Sessions, 1)
	assert.Equal(t, startResp.Session.SessionID, listResp.Sessions[0].SessionID)
}

func TestHandlerHistoryNotFound(t *testing.T) {
	handler := newTestHandler(t, newMemoryStore(), &stubOrchestrator{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/chat/history/unknown", "", patientIdentity()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerHistoryReturnsMessages(t *testing.T) {
	store := newMemoryStore()
	orch := &stubOrchestrator{result: InferenceResult{Content: "Rest.", Success: true}}
	handler := newTestHandler(t, store, orch)
	identity := patientIdentity()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/chat/message",
		`{"sessionId":"sess-1","message":"hi"}`, identity))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/chat/history/sess-1", "", identity))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool      `json:"success"`
		Messages []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, SenderPatient, resp.Messages[0].Sender)
	assert.Equal(t, SenderAI, resp.Messages[1].Sender)
}

func TestHandlerDeleteSession(t *testing.T) {
	store := newMemoryStore()
	orch := &stubOrchestrator{result: InferenceResult{Content: "ok", Success: true}}
	handler := newTestHandler(t, store, orch)
	identity := patientIdentity()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/chat/message",
		`{"sessionId":"sess-1","message":"hi"}`, identity))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/chat/session/sess-1", "", identity))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/chat/session/sess-1", "", identity))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
