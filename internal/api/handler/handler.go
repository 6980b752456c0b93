package handler

import (
	"dater/backend/internal/bus"
	"dater/backend/internal/config"
	"dater/backend/internal/geo"
	"dater/backend/internal/storage"
)

// Handler carries the collaborators the HTTP layer needs.
type Handler struct {
	Bus      *bus.Service
	Storage  storage.Storage
	Location *geo.Service
	Cfg      *config.Config
}

func NewHandler(b *bus.Service, s storage.Storage, loc *geo.Service, cfg *config.Config) *Handler {
	return &Handler{Bus: b, Storage: s, Location: loc, Cfg: cfg}
}
