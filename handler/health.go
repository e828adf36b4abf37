package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/dispatcher"
	"github.com/lambda-feedback/isolate/runtime"
)

type HealthHandlerParams struct {
	fx.In

	Runtime runtime.Runtime
	Log     *zap.Logger
}

// HealthResponse reports the worker utilization by function.
type HealthResponse struct {
	Status    string                      `json:"status"`
	Functions map[string]dispatcher.Stats `json:"functions"`
}

type HealthHandler struct {
	runtime runtime.Runtime
	log     *zap.Logger
}

func NewHealthHandler(params HealthHandlerParams) *HealthHandler {
	return &HealthHandler{
		runtime: params.Runtime,
		log:     params.Log,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := HealthResponse{
		Status:    "ok",
		Functions: h.runtime.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.Debug("failed to write health response", zap.Error(err))
	}
}
