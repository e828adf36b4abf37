package server

import (
	"net/http"

	"go.uber.org/fx"
)

// HttpHandler is a handler registered on the server mux under the
// pattern Name.
type HttpHandler struct {
	Name    string
	Handler http.Handler
}

type HttpHandlerResult struct {
	fx.Out

	Handler *HttpHandler `group:"handlers"`
}

// AsHttpHandler provides handler to the "handlers" group.
func AsHttpHandler(
	pattern string,
	handler http.Handler,
) HttpHandlerResult {
	return HttpHandlerResult{
		Handler: &HttpHandler{
			Name:    pattern,
			Handler: handler,
		},
	}
}

// NewServeMux registers handlers on a new mux.
func NewServeMux(handlers []*HttpHandler) *http.ServeMux {
	mux := http.NewServeMux()

	for _, handler := range handlers {
		mux.Handle(handler.Name, handler.Handler)
	}

	return mux
}
