package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/logging"
	"github.com/dealdesk/dealdesk/internal/preset"
)

// handleListPresets returns all saved mapping presets.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if presets == nil {
		presets = []preset.Preset{}
	}
	writeJSON(w, presets)
}

// savePresetRequest captures a confirmed ingestion's mapping as a preset.
type savePresetRequest struct {
	IngestID string `json:"ingestId"`
	Name     string `json:"name"`
}

// handleSavePreset stores the mapping of a confirmed ingestion, keyed by its
// header signature. Future uploads with the same signature skip manual
// reconciliation.
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid preset payload")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "preset name is required")
		return
	}

	e, ok := s.ingestions.Get(req.IngestID)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	session := e.in.Session()
	if !session.Confirmed() {
		writeError(w, http.StatusConflict, "confirm the mapping before saving it as a preset")
		return
	}

	stored, err := s.presets.Put(r.Context(), preset.Preset{
		Signature: e.in.Signature(),
		Name:      req.Name,
		Headers:   e.in.Header,
		Mapping:   session.Mapping(),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("preset saved",
		"preset_id", stored.ID,
		"name", stored.Name,
		"signature", stored.Signature,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

// handleDeletePreset removes a preset by ID.
func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "presetID")

	if err := s.presets.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}
