package runtime

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lambda-feedback/isolate/internal/execution/models"
	"github.com/lambda-feedback/isolate/internal/execution/supervisor"
)

var wellKnownErrors = map[error]int{
	ErrInvalidMethod:     http.StatusMethodNotAllowed,
	ErrSchemaNotFound:    http.StatusInternalServerError,
	ErrFunctionMissing:   http.StatusBadRequest,
	ErrFunctionNotFound:  http.StatusNotFound,
	ErrValidationFailed:  http.StatusBadRequest,
	ErrInvalidOutput:     http.StatusBadGateway,
	ErrRequestCancelled:  StatusClientClosedRequest,
	ErrMalformedResponse: http.StatusInternalServerError,
	ErrShutdown:          http.StatusServiceUnavailable,
}

var kindStatus = map[supervisor.Kind]int{
	supervisor.KindWorker:         http.StatusUnprocessableEntity,
	supervisor.KindInfrastructure: http.StatusBadGateway,
	supervisor.KindTerminated:     http.StatusGatewayTimeout,
}

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	for wellKnown, status := range wellKnownErrors {
		if errors.Is(err, wellKnown) {
			return status
		}
	}

	var vErr *validationError
	if errors.As(err, &vErr) {
		if vErr.Type == validationTypeRequest {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}

	if status, ok := kindStatus[supervisor.KindOf(err)]; ok {
		return status
	}

	return http.StatusInternalServerError
}

func getErrorBody(err error) ErrorBody {
	var exc *models.Exception
	if supervisor.KindOf(err) == supervisor.KindWorker && errors.As(err, &exc) {
		return ErrorBody{
			Kind:    supervisor.KindWorker.String(),
			Type:    exc.Type,
			Message: exc.Message,
		}
	}

	if kind := supervisor.KindOf(err); kind != 0 {
		return ErrorBody{Kind: kind.String(), Message: err.Error()}
	}

	if errors.Is(err, ErrRequestCancelled) {
		return ErrorBody{Kind: "cancelled", Message: err.Error()}
	}

	return ErrorBody{Kind: "request", Message: err.Error()}
}

// newErrorResponse creates a new error response.
func newErrorResponse(err error) Response {
	statusCode := getErrorStatusCode(err)

	body, err := json.Marshal(ErrorResponse{Error: getErrorBody(err)})
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError, Header: make(http.Header)}
	}

	return newResponse(statusCode, body)
}

// newResponse creates a new response.
func newResponse(status int, body []byte) Response {
	header := make(http.Header)
	header.Add("Content-Type", "application/json")

	return Response{
		StatusCode: status,
		Body:       body,
		Header:     header,
	}
}
