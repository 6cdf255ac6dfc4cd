package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/storage"
)

func (h *Handler) ListMessageLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.LogFilter{CampaignID: q.Get("campaign")}
	if status := model.MessageStatus(q.Get("status")); status != "" {
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown message status")
			return
		}
		f.Status = status
	}

	logs, err := h.Store.ListMessageLogs(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("list message logs")
		writeFailure(w, err)
		return
	}
	page, p := paginate(logs, r)
	writePage(w, page, p)
}

func (h *Handler) GetMessageLog(w http.ResponseWriter, r *http.Request) {
	l, err := h.Store.GetMessageLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, l)
}

type statusUpdateRequest struct {
	Status        string `json:"status" validate:"required,oneof=sent delivered failed"`
	FailureReason string `json:"failureReason"`
}

// UpdateMessageStatus is the delivery receipt callback: the vendor reports a
// message as delivered or failed after we handed it off. Moving a message
// back to pending is not a receipt and is rejected by validation.
func (h *Handler) UpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFailure(w, err)
		return
	}

	l, err := h.Store.GetMessageLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	l.Status = model.MessageStatus(req.Status)
	l.FailureReason = req.FailureReason
	if l.Status != model.MessageFailed {
		l.FailureReason = ""
	}

	l, err = h.Store.UpdateMessageLog(r.Context(), l)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, l)
}
