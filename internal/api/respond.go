package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"crm-messaging-api/internal/delivery"
	"crm-messaging-api/internal/segment"
	"crm-messaging-api/internal/storage"
)

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type envelope struct {
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

func writePage(w http.ResponseWriter, data any, p Pagination) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Pagination: &p})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Message: msg})
}

// writeFailure maps a handler error onto a status code and a single
// operator-readable message.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, delivery.ErrAlreadyStarted):
		writeError(w, http.StatusConflict, err.Error())
	case segment.ViolationOf(err) != "":
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// paginate slices one page out of an already-fetched list.
func paginate[T any](items []T, r *http.Request) ([]T, Pagination) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total := len(items)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	if items == nil {
		items = []T{}
	}
	return items[start:end], Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
