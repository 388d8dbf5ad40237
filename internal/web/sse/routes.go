package sse

import (
	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/rolechain/internal/events"
)

// RegisterRoutes serves a new handler at /events on r.
func RegisterRoutes(r chi.Router, bus *events.EventBus) *Handler {
	h := NewHandler(bus)
	r.Get("/events", h.ServeHTTP)
	return h
}
