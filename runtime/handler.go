package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/runtime/schema"
)

var (
	ErrInvalidMethod     = errors.New("invalid method")
	ErrSchemaNotFound    = errors.New("schema not found")
	ErrFunctionMissing   = errors.New("function missing")
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidOutput     = errors.New("invalid output")
	ErrRequestCancelled  = errors.New("request cancelled")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusClientClosedRequest is returned if the client went away
// before the task finished.
const StatusClientClosedRequest = 499

// HeaderFunction selects the function if the path does not.
const HeaderFunction = "function"

// HeaderRequestID carries the identifier of a request.
const HeaderRequestID = "X-Request-Id"

// HandlerParams defines the dependencies for the runtime handler.
type HandlerParams struct {
	fx.In

	Runtime Runtime

	Log *zap.Logger
}

// Handler is the interface for handling runtime requests.
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}

// RuntimeHandler is a runtime handler that uses a runtime to handle requests.
type RuntimeHandler struct {
	runtime Runtime

	schemas map[validationType]*schema.Schema

	log *zap.Logger
}

// NewRuntimeHandler creates a new runtime handler.
func NewRuntimeHandler(params HandlerParams) (Handler, error) {
	requestSchema, err := schema.NewRequestSchema()
	if err != nil {
		return nil, err
	}

	responseSchema, err := schema.NewResponseSchema()
	if err != nil {
		return nil, err
	}

	schemas := map[validationType]*schema.Schema{
		validationTypeRequest:  requestSchema,
		validationTypeResponse: responseSchema,
	}

	return &RuntimeHandler{
		runtime: params.Runtime,
		schemas: schemas,
		log:     params.Log,
	}, nil
}

// Handle handles a runtime request.
func (h *RuntimeHandler) Handle(ctx context.Context, req Request) Response {
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	log := h.log.With(
		zap.String("path", req.Path),
		zap.String("method", req.Method),
		zap.String("request_id", requestID),
	)

	res := h.handle(ctx, log, req)
	res.Header.Set(HeaderRequestID, requestID)

	return res
}

func (h *RuntimeHandler) handle(ctx context.Context, log *zap.Logger, req Request) Response {
	if req.Method != http.MethodPost {
		log.Debug("invalid method")
		return newErrorResponse(ErrInvalidMethod)
	}

	// Validate the request data against the request schema
	if err := h.validate(validationTypeRequest, req.Body); err != nil {
		return newErrorResponse(err)
	}

	function, ok := getFunction(req)
	if !ok {
		log.Debug("missing function")
		return newErrorResponse(ErrFunctionMissing)
	}

	log = log.With(zap.String("function", function))

	task := TaskRequest{
		Function: function,
		Input:    json.RawMessage(gjson.GetBytes(req.Body, "input").Raw),
	}

	res, err := h.runtime.Handle(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("request cancelled", zap.Error(err))
			return newErrorResponse(ErrRequestCancelled)
		}

		log.Debug("task failed", zap.Error(err))
		return newErrorResponse(err)
	}

	body, err := json.Marshal(res)
	if err != nil {
		log.Error("failed to marshal response", zap.Error(err))
		return newErrorResponse(ErrMalformedResponse)
	}

	// Validate the response data against the response schema
	if err := h.validate(validationTypeResponse, body); err != nil {
		return newErrorResponse(err)
	}

	return newResponse(http.StatusOK, body)
}

// getFunction resolves the function from the header, the path or the body.
func getFunction(req Request) (string, bool) {
	if function := req.Header.Get(HeaderFunction); function != "" {
		return function, true
	}

	pathElements := strings.Split(strings.Trim(req.Path, "/"), "/")
	if len(pathElements) == 1 && pathElements[0] != "" {
		return pathElements[0], true
	}

	if function := gjson.GetBytes(req.Body, "function"); function.Type == gjson.String && function.Str != "" {
		return function.Str, true
	}

	return "", false
}
