package api

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.DashboardStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("dashboard stats")
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
