package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.Store.ListSegments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list segments")
		writeFailure(w, err)
		return
	}
	if segments == nil {
		segments = []model.Segment{}
	}
	writeData(w, http.StatusOK, segments)
}

func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

// CreateSegment validates and coerces the submitted rule set, computes the
// membership estimate against the customer snapshot, and persists the
// segment. The server owns membership; the client only submits well-formed
// rule sets.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.decodeRuleSet(w, r)
	if !ok {
		return
	}
	size, err := h.Audience.EstimateSize(rs)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s, err := h.Store.CreateSegment(r.Context(), model.Segment{
		Name:            rs.Name,
		Description:     rs.Description,
		Rules:           rs.Rules,
		LogicalOperator: rs.LogicalOperator,
		EstimatedSize:   size,
	})
	if err != nil {
		log.Error().Err(err).Msg("create segment")
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusCreated, s)
}

func (h *Handler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.decodeRuleSet(w, r)
	if !ok {
		return
	}
	size, err := h.Audience.EstimateSize(rs)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s, err := h.Store.UpdateSegment(r.Context(), model.Segment{
		ID:              chi.URLParam(r, "id"),
		Name:            rs.Name,
		Description:     rs.Description,
		Rules:           rs.Rules,
		LogicalOperator: rs.LogicalOperator,
		EstimatedSize:   size,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSegment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type segmentMembers struct {
	Segment   model.Segment    `json:"segment"`
	Customers []model.Customer `json:"customers"`
}

func (h *Handler) GetSegmentMembers(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	members, err := h.Audience.Members(s.RuleSet())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if members == nil {
		members = []model.Customer{}
	}
	writeData(w, http.StatusOK, segmentMembers{Segment: s, Customers: members})
}

// decodeRuleSet parses and serializes a submitted rule set, writing the
// validation failure if it is not well formed.
func (h *Handler) decodeRuleSet(w http.ResponseWriter, r *http.Request) (segment.RuleSet, bool) {
	var rs segment.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return segment.RuleSet{}, false
	}
	serialized, err := segment.Serialize(rs)
	if err != nil {
		writeFailure(w, err)
		return segment.RuleSet{}, false
	}
	return serialized, true
}
