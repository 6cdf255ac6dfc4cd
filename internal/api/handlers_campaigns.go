package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/storage"
)

type campaignRequest struct {
	Name         string     `json:"name" validate:"required"`
	Description  string     `json:"description"`
	SegmentID    string     `json:"segmentId" validate:"required"`
	Message      string     `json:"message" validate:"required"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.Store.ListCampaigns(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list campaigns")
		writeFailure(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	writeData(w, http.StatusOK, campaigns)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCampaign(w, r)
	if !ok {
		return
	}
	// The segment reference must resolve at creation time even though
	// membership is only materialized on start.
	if _, err := h.Store.GetSegment(r.Context(), req.SegmentID); err != nil {
		writeFailure(w, err)
		return
	}

	status := model.CampaignDraft
	if req.ScheduledFor != nil {
		status = model.CampaignScheduled
	}
	c, err := h.Store.CreateCampaign(r.Context(), model.Campaign{
		Name:         req.Name,
		Description:  req.Description,
		SegmentID:    req.SegmentID,
		Message:      req.Message,
		ScheduledFor: req.ScheduledFor,
		Status:       status,
	})
	if err != nil {
		log.Error().Err(err).Msg("create campaign")
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCampaign(w, r)
	if !ok {
		return
	}
	prev, err := h.Store.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if _, err := h.Store.GetSegment(r.Context(), req.SegmentID); err != nil {
		writeFailure(w, err)
		return
	}

	status := prev.Status
	if status == model.CampaignDraft && req.ScheduledFor != nil {
		status = model.CampaignScheduled
	}
	if status == model.CampaignScheduled && req.ScheduledFor == nil {
		status = model.CampaignDraft
	}
	c, err := h.Store.UpdateCampaign(r.Context(), model.Campaign{
		ID:              prev.ID,
		Name:            req.Name,
		Description:     req.Description,
		SegmentID:       req.SegmentID,
		Message:         req.Message,
		ScheduledFor:    req.ScheduledFor,
		Status:          status,
		TotalRecipients: prev.TotalRecipients,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteCampaign(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.Store.DeleteCampaignLogs(r.Context(), id); err != nil {
		log.Error().Err(err).Str("campaign", id).Msg("delete campaign logs")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Runner.Start(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *Handler) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Runner.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

type campaignResults struct {
	Campaign       model.Campaign         `json:"campaign"`
	Progress       model.CampaignProgress `json:"progress"`
	RecentMessages []model.MessageLog     `json:"recentMessages"`
}

const recentMessageCount = 10

func (h *Handler) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Store.GetCampaign(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	progress, err := h.Runner.Progress(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	recent, err := h.Store.ListMessageLogs(r.Context(), storage.LogFilter{CampaignID: id})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if len(recent) > recentMessageCount {
		recent = recent[:recentMessageCount]
	}
	if recent == nil {
		recent = []model.MessageLog{}
	}
	writeData(w, http.StatusOK, campaignResults{
		Campaign:       c,
		Progress:       progress,
		RecentMessages: recent,
	})
}

func (h *Handler) decodeCampaign(w http.ResponseWriter, r *http.Request) (campaignRequest, bool) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return campaignRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeFailure(w, err)
		return campaignRequest{}, false
	}
	return req, true
}
