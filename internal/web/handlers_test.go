package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/preset"
)

const sampleCSV = "Loop Status,Sale Price,Agent(s)\r\n" +
	`Closed,"$412,500","Jane Doe, Sam Lee"` + "\r\n" +
	"Active,250000,Bob Ray\r\n"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Ingest = config.IngestConfig{
		MaxFileSize:    1 << 20,
		MaxConcurrent:  2,
		MaxWaitTime:    time.Second,
		MatchThreshold: 70,
		TieMargin:      5,
		SessionTTL:     time.Minute,
	}
	return cfg
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(testConfig(), preset.NewMemoryStore())
	t.Cleanup(func() { s.ingestions.Close() })
	return s
}

// do runs one request through the full middleware stack.
func do(t *testing.T, s *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func startIngestion(t *testing.T, s *Server, csv string) ingestionView {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/ingest", "text/csv", []byte(csv))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/ingest = %d: %s", w.Code, w.Body)
	}
	var view ingestionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("bad ingest response: %v", err)
	}
	return view
}

func TestIngestFlow_EndToEnd(t *testing.T) {
	s := testServer(t)

	view := startIngestion(t, s, sampleCSV)
	if view.ID == "" || view.Headerless || view.TotalRows != 2 {
		t.Fatalf("ingest view = %+v", view)
	}
	for _, m := range view.Matches {
		if m.NeedsMapping {
			t.Errorf("column %q unexpectedly needs mapping", m.OriginalHeader)
		}
	}

	w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/confirm", "application/json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm = %d: %s", w.Code, w.Body)
	}

	w = do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/records", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("records = %d: %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("records Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("records = %d lines, want 2", len(lines))
	}
	var rec struct {
		Values map[string]any `json:"values"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("bad NDJSON line: %v", err)
	}
	if rec.Values["status"] != "Closed" {
		t.Errorf("first record status = %v", rec.Values["status"])
	}

	w = do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/report", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report = %d", w.Code)
	}
	var rep struct {
		TotalRows         int `json:"totalRows"`
		MappedColumnCount int `json:"mappedColumnCount"`
	}
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.TotalRows != 2 || rep.MappedColumnCount != 3 {
		t.Errorf("report = %+v", rep)
	}

	w = do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/summary", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d: %s", w.Code, w.Body)
	}
	var sum struct {
		TotalDeals  int    `json:"totalDeals"`
		TotalVolume string `json:"totalVolume"`
	}
	json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.TotalDeals != 2 {
		t.Errorf("summary totalDeals = %d, want 2", sum.TotalDeals)
	}
	if sum.TotalVolume != "662500" {
		t.Errorf("summary totalVolume = %q, want 662500", sum.TotalVolume)
	}
}

func TestIngest_MultipartUpload(t *testing.T) {
	s := testServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "deals.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(sampleCSV))
	mw.Close()

	w := do(t, s, http.MethodPost, "/api/ingest", mw.FormDataContentType(), buf.Bytes())
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart ingest = %d: %s", w.Code, w.Body)
	}
}

func TestIngest_EmptyFile(t *testing.T) {
	s := testServer(t)

	w := do(t, s, http.MethodPost, "/api/ingest", "text/csv", []byte("\n\n"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty ingest = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "EMPTY_FILE" {
		t.Errorf("code = %q, want EMPTY_FILE", resp.Code)
	}
}

func TestRecords_BeforeConfirm(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, sampleCSV)

	w := do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/records", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("records before confirm = %d, want 409", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "MAPPING_NOT_CONFIRMED" {
		t.Errorf("code = %q", resp.Code)
	}
}

// TestRecords_ConcurrentWithReport overlaps record downloads with report
// reads on one ingestion; run with -race.
func TestRecords_ConcurrentWithReport(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, sampleCSV)

	w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/confirm", "application/json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm = %d: %s", w.Code, w.Body)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if w := do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/records", "", nil); w.Code != http.StatusOK {
				t.Errorf("records = %d", w.Code)
			}
		}()
		go func() {
			defer wg.Done()
			if w := do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/report", "", nil); w.Code != http.StatusOK {
				t.Errorf("report = %d", w.Code)
			}
		}()
	}
	wg.Wait()

	var rep struct {
		RowsWithWarnings int `json:"rowsWithWarnings"`
	}
	w = do(t, s, http.MethodGet, "/api/ingest/"+view.ID+"/report", "", nil)
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.RowsWithWarnings != 0 {
		t.Errorf("rowsWithWarnings = %d, want 0", rep.RowsWithWarnings)
	}
}

func TestConfirm_MissingRequired(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, "Loop Status,Notes\nClosed,hello\n")

	w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/confirm", "application/json", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm = %d, want 422", w.Code)
	}
	var resp confirmResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.MissingRequired) == 0 {
		t.Error("missingRequired should list unmapped required fields")
	}
}

func TestSetMapping_AndSkip(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, "Column One,Column Two,Column Three,Extra\n1,2,3,4\n")

	body := []byte(`{"mappings":[
		{"header":"Column One","field":"status"},
		{"header":"Column Two","field":"price"},
		{"header":"Column Three","field":"agents"},
		{"header":"Extra","field":""}
	]}`)
	w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/mapping", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("mapping = %d: %s", w.Code, w.Body)
	}

	var after ingestionView
	json.Unmarshal(w.Body.Bytes(), &after)
	for _, m := range after.Matches {
		if m.NeedsMapping {
			t.Errorf("column %q still needs mapping after manual assignment", m.OriginalHeader)
		}
	}

	w = do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/confirm", "application/json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm after mapping = %d: %s", w.Code, w.Body)
	}
}

func TestSetMapping_UnknownField(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, sampleCSV)

	body := []byte(`{"mappings":[{"header":"Loop Status","field":"bogus"}]}`)
	w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/mapping", "application/json", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field mapping = %d, want 400", w.Code)
	}
}

func TestIngestion_NotFound(t *testing.T) {
	s := testServer(t)

	w := do(t, s, http.MethodGet, "/api/ingest/no-such-id", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown ingestion = %d, want 404", w.Code)
	}
}

func TestPreset_SaveAndAutoApply(t *testing.T) {
	s := testServer(t)

	// First upload: confirm, then save the mapping as a preset.
	view := startIngestion(t, s, sampleCSV)
	if view.PresetApplied {
		t.Fatal("no preset should exist yet")
	}
	if w := do(t, s, http.MethodPost, "/api/ingest/"+view.ID+"/confirm", "application/json", nil); w.Code != http.StatusOK {
		t.Fatalf("confirm = %d", w.Code)
	}

	body := []byte(`{"ingestId":"` + view.ID + `","name":"dotloop monthly"}`)
	w := do(t, s, http.MethodPost, "/api/presets", "application/json", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("save preset = %d: %s", w.Code, w.Body)
	}
	var stored preset.Preset
	json.Unmarshal(w.Body.Bytes(), &stored)
	if stored.ID == "" || stored.Signature != view.Signature {
		t.Fatalf("stored preset = %+v", stored)
	}

	// Second upload with the same shape picks the preset up automatically.
	again := startIngestion(t, s, sampleCSV)
	if !again.PresetApplied {
		t.Error("matching upload should auto-apply the preset")
	}

	// List then delete.
	w = do(t, s, http.MethodGet, "/api/presets", "", nil)
	var listed []preset.Preset
	json.Unmarshal(w.Body.Bytes(), &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d presets, want 1", len(listed))
	}

	w = do(t, s, http.MethodDelete, "/api/presets/"+stored.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete preset = %d", w.Code)
	}
	w = do(t, s, http.MethodDelete, "/api/presets/"+stored.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double delete = %d, want 404", w.Code)
	}
}

func TestPreset_SaveRequiresConfirmedSession(t *testing.T) {
	s := testServer(t)
	view := startIngestion(t, s, sampleCSV)

	body := []byte(`{"ingestId":"` + view.ID + `","name":"too early"}`)
	w := do(t, s, http.MethodPost, "/api/presets", "application/json", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("save unconfirmed preset = %d, want 409", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"sekrit"}
	s := NewServer(cfg, preset.NewMemoryStore())
	t.Cleanup(func() { s.ingestions.Close() })

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no key = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	req.Header.Set("X-API-Key", "sekrit")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid key = %d, want 200", w.Code)
	}

	// Health stays open for probes.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	w := do(t, s, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	var resp struct {
		Status string        `json:"status"`
		Ingest LimiterStatus `json:"ingest"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Ingest.MaxConcurrent != 2 {
		t.Errorf("health = %+v", resp)
	}
}
