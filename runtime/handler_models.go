package runtime

import "net/http"

// Request represents an incoming request.
type Request struct {
	Path   string
	Method string
	Body   []byte
	Header http.Header
}

// Response represents an outgoing response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// ErrorResponse represents error response data.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	// Kind is the category of the failure: request, worker,
	// infrastructure, terminated or cancelled.
	Kind string `json:"kind"`

	// Type is the type of the exception reported by the worker.
	Type string `json:"type,omitempty"`

	Message string `json:"message"`
}
