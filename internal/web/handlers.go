package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/qareports/internal/core"
	"github.com/JonMunkholm/qareports/internal/logging"
)

const (
	// multipartMemory is the part of a multipart body kept in memory before
	// spilling to temp files.
	multipartMemory = 8 << 20
	// multipartOverhead allows for form boundaries and headers on top of
	// the file size limit.
	multipartOverhead = 1 << 20
)

type ingestResponse struct {
	Report  core.WireReport   `json:"report"`
	Stats   core.Stats        `json:"stats"`
	Warning *core.UserMessage `json:"warning,omitempty"`
}

type reportSummary struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	UploadDate  time.Time  `json:"uploadDate"`
	RecordCount int        `json:"recordCount"`
	Stats       core.Stats `json:"stats"`
}

type recordsResponse struct {
	Records []core.PartRecord `json:"records"`
	Total   int               `json:"total"`
}

type mutationResponse struct {
	Record  *core.PartRecord  `json:"record,omitempty"`
	Stats   *core.Stats       `json:"stats,omitempty"`
	Warning *core.UserMessage `json:"warning,omitempty"`
}

type healthResponse struct {
	Status  string                   `json:"status"`
	Reports int                      `json:"reports"`
	Records int                      `json:"records"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
	Remote  remoteHealth             `json:"remote"`
}

type remoteHealth struct {
	Enabled bool   `json:"enabled"`
	Warning string `json:"warning"`
}

// handleUpload ingests a multipart upload in the "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, core.NewFileParseError("", fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, maxSize)))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, errNoFile))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, core.NewFileParseError(header.Filename, err))
		return
	}

	logger := logging.WithFields(r.Context(), "filename", header.Filename, "bytes", len(data))
	logger.Info("upload received")

	b, err := s.service.Ingest(r.Context(), header.Filename, data)
	warning := cacheWarning(err)
	if err != nil && warning == nil {
		respondError(w, r, err)
		return
	}

	logger.Info("upload ingested", "report_id", b.Report.ID, "records", len(b.Records))
	writeJSON(w, r, http.StatusCreated, ingestResponse{
		Report:  core.NewWireReport(b.Report, b.Records),
		Stats:   core.ComputeStats(b.Records),
		Warning: warning,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	st := s.service.Snapshot()
	out := make([]reportSummary, 0, len(st.Reports))
	for _, rep := range st.Reports {
		records := st.RecordsOf(rep)
		out = append(out, reportSummary{
			ID:          rep.ID,
			Filename:    rep.Filename,
			UploadDate:  rep.UploadDate,
			RecordCount: len(records),
			Stats:       core.ComputeStats(records),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.service.Snapshot()
	for _, rep := range st.Reports {
		if rep.ID == id {
			writeJSON(w, r, http.StatusOK, core.NewWireReport(rep, st.RecordsOf(rep)))
			return
		}
	}
	respondError(w, r, fmt.Errorf("%w: %s", errReportNotFound, id))
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil || !s.remote.RemoteEnabled() {
		respondError(w, r, core.ErrRemoteDisabled)
		return
	}
	infos, err := s.remote.Artifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, infos)
}

// handleListRecords returns records filtered by the optional report,
// status, issue and sheet query parameters. q matches part numbers by
// case-insensitive substring.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := core.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, r, fmt.Errorf("%w: invalid patch: unknown status %q", errBadRequest, status))
		return
	}
	issue := core.IssueKind(q.Get("issue"))
	sheet := q.Get("sheet")
	search := strings.ToLower(strings.TrimSpace(q.Get("q")))

	st := s.service.Snapshot()
	records := st.Records
	if reportID := q.Get("report"); reportID != "" {
		records = nil
		for _, rep := range st.Reports {
			if rep.ID == reportID {
				records = st.RecordsOf(rep)
				break
			}
		}
	}

	out := make([]core.PartRecord, 0, len(records))
	for _, rec := range records {
		if status != "" && rec.Status != status {
			continue
		}
		if issue != "" && !rec.HasIssue(issue) {
			continue
		}
		if sheet != "" && rec.SourceSheet != sheet {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.RawValue), search) {
			continue
		}
		out = append(out, rec)
	}
	writeJSON(w, r, http.StatusOK, recordsResponse{Records: out, Total: len(out)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.service.Record(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, r, core.ErrRecordNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var patch core.RecordPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid patch: %v", errBadRequest, err))
		return
	}
	if patch.Empty() {
		respondError(w, r, fmt.Errorf("%w: invalid patch: no fields to update", errBadRequest))
		return
	}
	s.applyPatch(w, r, patch)
}

// handleCorrectRecord marks a record corrected and clears its issues.
func (s *Server) handleCorrectRecord(w http.ResponseWriter, r *http.Request) {
	s.applyPatch(w, r, core.CorrectedPatch())
}

func (s *Server) applyPatch(w http.ResponseWriter, r *http.Request, patch core.RecordPatch) {
	id := chi.URLParam(r, "id")
	found, err := s.service.UpdateRecord(r.Context(), id, patch)
	warning := cacheWarning(err)
	if err != nil && warning == nil {
		respondError(w, r, err)
		return
	}
	if !found {
		respondError(w, r, core.ErrRecordNotFound)
		return
	}
	rec, _ := s.service.Record(id)
	writeJSON(w, r, http.StatusOK, mutationResponse{Record: &rec, Warning: warning})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.RemoveRecord(r.Context(), chi.URLParam(r, "id"))
	warning := cacheWarning(err)
	if err != nil && warning == nil {
		respondError(w, r, err)
		return
	}
	if !found {
		respondError(w, r, core.ErrRecordNotFound)
		return
	}
	if warning != nil {
		writeJSON(w, r, http.StatusOK, mutationResponse{Warning: warning})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	s.replaceAll(w, r, s.service.LoadSample(r.Context()))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.replaceAll(w, r, s.service.Clear(r.Context()))
}

func (s *Server) replaceAll(w http.ResponseWriter, r *http.Request, err error) {
	warning := cacheWarning(err)
	if err != nil && warning == nil {
		respondError(w, r, err)
		return
	}
	stats := s.service.Stats()
	writeJSON(w, r, http.StatusOK, mutationResponse{Stats: &stats, Warning: warning})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Stats())
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Charts())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.service.Snapshot()
	resp := healthResponse{
		Status:  "ok",
		Reports: len(st.Reports),
		Records: len(st.Records),
		Uploads: s.service.LimiterStatus(),
		Remote:  remoteHealth{Warning: "cold"},
	}
	if s.remote != nil {
		resp.Remote.Enabled = s.remote.RemoteEnabled()
		resp.Remote.Warning = s.remote.WarnState().String()
	}
	writeJSON(w, r, http.StatusOK, resp)
}
