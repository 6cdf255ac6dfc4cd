package api

import (
	"github.com/go-playground/validator/v10"

	"crm-messaging-api/internal/audience"
	"crm-messaging-api/internal/delivery"
	"crm-messaging-api/internal/storage"
)

// Handler carries the collaborators every endpoint needs. Request bodies are
// validated at the boundary before any of them is touched.
type Handler struct {
	Store    storage.Store
	Audience *audience.Engine
	Runner   *delivery.Runner

	validate *validator.Validate
}

func NewHandler(store storage.Store, aud *audience.Engine, runner *delivery.Runner) *Handler {
	return &Handler{
		Store:    store,
		Audience: aud,
		Runner:   runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}
