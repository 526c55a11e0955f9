package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/lanes/internal/api/v1"
	"github.com/gosuda/lanes/internal/api/ws"
)

func registerAPIRoutes(api huma.API, store v1.DataStore) {
	v1.RegisterRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/board/{boardID}", hub.ServeBoard)
	r.Get("/notifications", hub.ServeNotifications)
}
