package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

type customerRequest struct {
	Name       string  `json:"name" validate:"required"`
	Email      string  `json:"email" validate:"omitempty,email"`
	Phone      string  `json:"phone"`
	TotalSpent float64 `json:"totalSpent" validate:"gte=0"`
	Status     string  `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list customers")
		writeFailure(w, err)
		return
	}

	q := r.URL.Query()
	if search := strings.ToLower(strings.TrimSpace(q.Get("search"))); search != "" {
		var filtered []model.Customer
		for _, c := range customers {
			if strings.Contains(strings.ToLower(c.Name), search) ||
				strings.Contains(strings.ToLower(c.Email), search) {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}
	if status := segment.CustomerStatus(q.Get("status")); status != "" {
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "status must be active or inactive")
			return
		}
		var filtered []model.Customer
		for _, c := range customers {
			if c.Status == status {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}

	page, p := paginate(customers, r)
	writePage(w, page, p)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFailure(w, err)
		return
	}

	c, err := h.Store.CreateCustomer(r.Context(), model.Customer{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		TotalSpent: req.TotalSpent,
		Status:     segment.CustomerStatus(req.Status),
	})
	if err != nil {
		log.Error().Err(err).Msg("create customer")
		writeFailure(w, err)
		return
	}
	h.refreshAudience(r)
	writeData(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFailure(w, err)
		return
	}

	c, err := h.Store.UpdateCustomer(r.Context(), model.Customer{
		ID:         chi.URLParam(r, "id"),
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		TotalSpent: req.TotalSpent,
		Status:     segment.CustomerStatus(req.Status),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.refreshAudience(r)
	writeData(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, err)
		return
	}
	h.refreshAudience(r)
	w.WriteHeader(http.StatusNoContent)
}

// refreshAudience rebuilds the membership snapshot after a customer mutation.
// With Postgres the LISTEN/NOTIFY listener does this too; doing it inline
// keeps the memory store consistent and makes estimates current immediately.
func (h *Handler) refreshAudience(r *http.Request) {
	if err := h.Audience.Refresh(r.Context(), h.Store); err != nil {
		log.Error().Err(err).Msg("refresh audience snapshot")
	}
}
