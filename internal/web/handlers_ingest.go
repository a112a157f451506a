package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/analytics"
	"github.com/dealdesk/dealdesk/internal/ingest"
	"github.com/dealdesk/dealdesk/internal/logging"
	"github.com/dealdesk/dealdesk/internal/preset"
)

// ingestionView is the JSON shape shared by the upload and status endpoints.
type ingestionView struct {
	ID                string               `json:"id"`
	Headerless        bool                 `json:"headerless"`
	Header            []string             `json:"header"`
	TotalRows         int                  `json:"totalRows"`
	Signature         string               `json:"signature"`
	PresetApplied     bool                 `json:"presetApplied,omitempty"`
	Confirmed         bool                 `json:"confirmed"`
	OverallConfidence int                  `json:"overallConfidence"`
	Matches           []ingest.HeaderMatch `json:"matches"`
}

func viewOf(id string, e *ingestEntry) ingestionView {
	s := e.in.Session()
	return ingestionView{
		ID:                id,
		Headerless:        e.in.Headerless,
		Header:            e.in.Header,
		TotalRows:         e.in.TotalRows(),
		Signature:         e.in.Signature(),
		PresetApplied:     e.presetApplied,
		Confirmed:         s.Confirmed(),
		OverallConfidence: s.OverallConfidence(),
		Matches:           s.Matches(),
	}
}

func (s *Server) matcherConfig() ingest.MatcherConfig {
	return ingest.MatcherConfig{
		Threshold: s.cfg.Ingest.MatchThreshold,
		TieMargin: s.cfg.Ingest.TieMargin,
	}
}

// handleIngest accepts a CSV upload, runs header matching, and registers a
// reconciliation session. When a preset exists for the file's header
// signature, its mapping is applied before the response is built.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	var src io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.Ingest.MaxFileSize); err != nil {
			writeError(w, http.StatusBadRequest, "file too large or invalid form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no file provided")
			return
		}
		defer file.Close()
		src = file
	} else {
		src = r.Body
	}

	in, err := ingest.Begin(src, s.matcherConfig())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logger := logging.FromContext(r.Context())

	presetApplied := false
	p, err := s.presets.GetBySignature(r.Context(), in.Signature())
	switch {
	case err == nil:
		if err := in.Session().ApplyPreset(p.Mapping); err != nil {
			logger.Warn("preset no longer applies", "preset_id", p.ID, "error", err)
		} else {
			presetApplied = true
		}
	case !errors.Is(err, preset.ErrNotFound):
		logger.Warn("preset lookup failed", "signature", in.Signature(), "error", err)
	}

	id, e := s.ingestions.Put(in, presetApplied)
	logger.Info("ingestion started",
		"ingest_id", id,
		"rows", in.TotalRows(),
		"columns", len(in.Header),
		"headerless", in.Headerless,
		"preset_applied", presetApplied,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(viewOf(id, e))
}

// handleGetIngestion returns the current reconciliation state.
func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}
	writeJSON(w, viewOf(id, e))
}

// mappingRequest is an ordered list so later assignments displace earlier
// ones the same way they would through repeated UI actions.
type mappingRequest struct {
	Mappings []struct {
		Header string `json:"header"`
		Field  string `json:"field"` // empty string skips the column
	} `json:"mappings"`
}

// handleSetMapping applies manual column assignments to the session.
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping payload")
		return
	}
	if len(req.Mappings) == 0 {
		writeError(w, http.StatusBadRequest, "no mappings provided")
		return
	}

	session := e.in.Session()
	for _, m := range req.Mappings {
		if err := session.SetMapping(m.Header, m.Field); err != nil {
			if errors.Is(err, ingest.ErrSessionConfirmed) {
				s.respondError(w, r, err)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	writeJSON(w, viewOf(id, e))
}

// confirmResponse reports a confirmation attempt. MissingRequired is only
// present on failure.
type confirmResponse struct {
	Confirmed       bool     `json:"confirmed"`
	MissingRequired []string `json:"missingRequired,omitempty"`
}

// handleConfirm finalizes the mapping. A failed confirm is recoverable: the
// client maps the reported fields and tries again.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	missing, err := e.in.Session().Confirm()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(missing) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(confirmResponse{MissingRequired: missing})
		return
	}

	logging.FromContext(r.Context()).Info("mapping confirmed",
		"ingest_id", id,
		"confidence", e.in.Session().OverallConfidence(),
	)
	writeJSON(w, confirmResponse{Confirmed: true})
}

// handleRecords streams typed records as NDJSON. Records are built lazily
// during the response write, so memory stays flat for large files.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	it, err := e.in.Records()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for it.Next() {
		if err := enc.Encode(it.Record()); err != nil {
			// Client went away; nothing useful left to do.
			return
		}
	}
}

// handleReport returns ingestion statistics.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	writeJSON(w, e.in.Report())
}

// handleSummary aggregates the file's records into deal analytics. It runs
// its own pass over the rows, independent of any records download.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingestID")
	e, ok := s.ingestions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	it, err := e.in.Records()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, analytics.Summarize(it))
}
