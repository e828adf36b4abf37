package handler

import (
	"github.com/lambda-feedback/isolate/internal/server"
)

func NewRootRoute(handler *TaskHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/", handler)
}

func NewFunctionRoute(handler *TaskHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/{function}", handler)
}

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/health", handler)
}
