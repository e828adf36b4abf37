package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/config"
	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/runtime"
)

// --- Mock handler ---
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, req runtime.Request) runtime.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(runtime.Response)
}

// --- Mock runtime ---
type MockRuntime struct {
	mock.Mock
	runtime.Runtime
}

func (m *MockRuntime) Stats() map[string]dispatcher.Stats {
	args := m.Called()
	return args.Get(0).(map[string]dispatcher.Stats)
}

// --- Test ---
func TestServeHTTP_Success(t *testing.T) {
	mockHandler := new(MockHandler)

	reqBody := []byte(`{"input": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(reqBody))
	req.Header.Set(HeaderAPIKey, "secret")

	w := httptest.NewRecorder()

	expectedResponse := runtime.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"output":1}`),
	}

	mockHandler.On("Handle", mock.Anything, mock.MatchedBy(func(r runtime.Request) bool {
		return r.Path == "/echo" &&
			r.Method == http.MethodPost &&
			bytes.Equal(r.Body, reqBody)
	})).Return(expectedResponse)

	handler := &TaskHandler{
		handler: mockHandler,
		log:     zap.NewNop(),
		config: config.Config{
			LogLevel: "debug",
			Auth:     config.AuthConfig{Key: "secret"},
		},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, `{"output":1}`, string(body))
	mockHandler.AssertExpectations(t)
}

func TestServeHTTP_NoKeyConfigured(t *testing.T) {
	mockHandler := new(MockHandler)
	mockHandler.On("Handle", mock.Anything, mock.Anything).Return(runtime.Response{
		StatusCode: http.StatusUnprocessableEntity,
		Header:     make(http.Header),
		Body:       []byte(`{}`),
	})

	req := httptest.NewRequest(http.MethodPost, "/divide", bytes.NewReader([]byte(`{"input":{}}`)))
	w := httptest.NewRecorder()

	handler := &TaskHandler{
		handler: mockHandler,
		log:     zap.NewNop(),
	}

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockHandler.AssertExpectations(t)
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	mockHandler := new(MockHandler)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader([]byte(`{"input": 1}`)))
	req.Header.Set(HeaderAPIKey, "wrong-key")

	w := httptest.NewRecorder()

	handler := &TaskHandler{
		handler: mockHandler, // won't be called
		log:     zap.NewNop(),
		config: config.Config{
			LogLevel: "debug",
			Auth:     config.AuthConfig{Key: "Secret"},
		},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, string(body), "unauthorized")

	// Ensure handler was not called
	mockHandler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestHealthHandler_ReportsStats(t *testing.T) {
	rt := new(MockRuntime)
	rt.On("Stats").Return(map[string]dispatcher.Stats{
		"echo": {Busy: 1, Idle: 2, Max: 4},
	})

	handler := NewHealthHandler(HealthHandlerParams{
		Runtime: rt,
		Log:     zap.NewNop(),
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var res HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, dispatcher.Stats{Busy: 1, Idle: 2, Max: 4}, res.Functions["echo"])
}

func TestHealthHandler_RejectsPost(t *testing.T) {
	handler := NewHealthHandler(HealthHandlerParams{
		Runtime: new(MockRuntime),
		Log:     zap.NewNop(),
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
