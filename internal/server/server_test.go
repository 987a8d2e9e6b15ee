package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/gateway"
	"github.com/nulzo/prism-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockService implements gateway.Service for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Stream(ctx context.Context, req *api.ChatRequest) (*gateway.Stream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Stream), args.Error(1)
}

func (m *MockService) Execute(ctx context.Context, req *api.ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockService) IsSandbox(providerID string) (bool, error) {
	args := m.Called(providerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) ListModels(ctx context.Context, providerID string) ([]string, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) Providers() []api.ProviderInfo {
	args := m.Called()
	return args.Get(0).([]api.ProviderInfo)
}

func setup(t *testing.T) (*MockService, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := new(MockService)
	s := New(&config.Config{Server: config.ServerConfig{Port: "0", Env: "test"}}, zap.NewNop(), svc)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return svc, ts
}

func deltas(results ...api.StreamResult) <-chan api.StreamResult {
	ch := make(chan api.StreamResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func text(s string) api.StreamResult {
	return api.StreamResult{Delta: &api.TextDelta{Text: s}}
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

const chatBody = `{"provider":"groq","model":"llama","messages":[{"role":"user","content":"hi"}]}`

func TestChat_StreamsPlainText(t *testing.T) {
	svc, ts := setup(t)

	svc.On("IsSandbox", "groq").Return(false, nil)
	matches := mock.MatchedBy(func(r *api.ChatRequest) bool {
		return r.Provider == "groq" && r.Model == "llama" && len(r.Messages) == 1
	})
	for range 2 {
		svc.On("Stream", mock.Anything, matches).
			Return(&gateway.Stream{ProviderID: "openrouter", Deltas: deltas(text("Hel"), text("lo"))}, nil).
			Once()
	}

	for _, path := range []string{"/api/chat", "/v1/chat"} {
		resp, body := post(t, ts.URL+path, chatBody)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))
		assert.Equal(t, "openrouter", resp.Header.Get("X-Provider"))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		assert.Equal(t, "Hello", body)
	}
	svc.AssertExpectations(t)
}

func TestChat_MidStreamErrorEndsBody(t *testing.T) {
	svc, ts := setup(t)

	svc.On("IsSandbox", "groq").Return(false, nil)
	svc.On("Stream", mock.Anything, mock.Anything).Return(&gateway.Stream{
		ProviderID: "groq",
		Deltas:     deltas(text("partial"), api.StreamResult{Err: errors.New("connection reset")}, text("never")),
	}, nil)

	resp, body := post(t, ts.URL+"/api/chat", chatBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "partial", body)
}

func TestChat_FailuresArePlainText(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"exhausted", api.ExhaustionError("llama", errors.New("upstream error: 500")), http.StatusServiceUnavailable, "Model unavailable: all providers for llama failed"},
		{"unauthorized", api.UnauthorizedError("API key not configured"), http.StatusUnauthorized, "API key not configured"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ts := setup(t)
			svc.On("IsSandbox", "groq").Return(false, nil)
			svc.On("Stream", mock.Anything, mock.Anything).Return(nil, tt.err)

			resp, body := post(t, ts.URL+"/api/chat", chatBody)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestChat_UnknownProvider(t *testing.T) {
	svc, ts := setup(t)
	svc.On("IsSandbox", "ghost").Return(false, api.NotFoundError("Provider not found"))

	resp, body := post(t, ts.URL+"/api/chat", `{"provider":"ghost","model":"m","messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Provider not found", body)
	svc.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestChat_RejectsMalformedRequests(t *testing.T) {
	bodies := []string{
		`{"model":"llama","messages":[{"role":"user","content":"hi"}]}`,
		`{"provider":"groq","messages":[{"role":"user","content":"hi"}]}`,
		`{"provider":"groq","model":"llama","messages":[]}`,
		`{"provider":"groq","model":"llama","messages":[{"role":"robot","content":"hi"}]}`,
		`{not json`,
	}

	svc, ts := setup(t)
	for _, b := range bodies {
		resp, body := post(t, ts.URL+"/api/chat", b)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, b)
		assert.Equal(t, "Missing required fields", body)
	}
	svc.AssertNotCalled(t, "IsSandbox", mock.Anything)
}

func TestChat_Sandbox(t *testing.T) {
	svc, ts := setup(t)
	svc.On("IsSandbox", "sandbox").Return(true, nil)
	svc.On("Execute", mock.Anything, mock.Anything).Return("42", nil).Once()
	svc.On("Execute", mock.Anything, mock.Anything).Return("", api.SandboxInputError("No executable code found")).Once()

	body := `{"provider":"sandbox","model":"sandbox-js-executor","messages":[{"role":"user","content":"x"}]}`

	resp, raw := post(t, ts.URL+"/api/chat", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"result":"42"}`, raw)

	resp, raw = post(t, ts.URL+"/api/chat", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No executable code found", raw)

	svc.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestListModels(t *testing.T) {
	svc, ts := setup(t)
	svc.On("ListModels", mock.Anything, "groq").Return([]string{"a", "b"}, nil)
	svc.On("ListModels", mock.Anything, "ghost").Return(nil, api.NotFoundError("Provider not found"))

	resp, body := get(t, ts.URL+"/api/models?provider=groq")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"models":["a","b"]}`, body)

	resp, body = get(t, ts.URL+"/v1/models?provider=ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Provider not found"}`, body)

	resp, body = get(t, ts.URL+"/api/models")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Provider parameter required"}`, body)
}

func TestListProviders(t *testing.T) {
	svc, ts := setup(t)
	svc.On("Providers").Return([]api.ProviderInfo{
		{ID: "groq", Name: "Groq", Kind: "openai-compatible", Configured: true},
		{ID: "gemini", Name: "Gemini", Kind: "gemini", Configured: false},
	})

	resp, body := get(t, ts.URL+"/api/providers")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.ProvidersResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Providers, 2)
	assert.Equal(t, "groq", out.Providers[0].ID)
	assert.False(t, out.Providers[1].Configured)
}

func TestHealth(t *testing.T) {
	_, ts := setup(t)

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"healthy"`)
}

func TestRequestID_Propagates(t *testing.T) {
	_, ts := setup(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}
