package rpc

import (
	"github.com/go-chi/chi/v5"

	"downpour/server/rest"
)

// Dependency injection container.
func Container(inner *rest.Service) *Service {
	return &Service{
		inner: inner,
	}
}

// RPC service must be registered before applying this router!
func ApplyRouter() func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/ws", WebSocket)
		r.Post("/http", Post)
	}
}
