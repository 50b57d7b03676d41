// Package api exposes the HTTP handlers of the IPMT service.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/ipmt/internal/auth"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/ipmt"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler coordinates HTTP requests with the report feed and the IPMT service.
type Handler struct {
	feed      *report.Feed
	service   *ipmt.Service
	directory personnel.Lister
	// requireClaims rejects requests that reach a handler without claims.
	requireClaims bool
	logger        *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithoutAuth lets requests without bearer claims through, for local runs.
func WithoutAuth() Option {
	return func(h *Handler) { h.requireClaims = false }
}

// NewHandler builds a Handler.
func NewHandler(feed *report.Feed, service *ipmt.Service, directory personnel.Lister, opts ...Option) *Handler {
	h := &Handler{
		feed:          feed,
		service:       service,
		directory:     directory,
		requireClaims: true,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/reports", h.reports)
	mux.HandleFunc("/v1/reports/", h.reportDescription)
	mux.HandleFunc("/v1/personnel", h.personnel)
	mux.HandleFunc("/v1/ipmt/preview", h.preview)
	mux.HandleFunc("/v1/ipmt/save", h.save)
	mux.HandleFunc("/v1/ipmt/export", h.export)
	mux.HandleFunc("/v1/ipmt/export/batch", h.exportBatch)
	mux.HandleFunc("/v1/ipmt/rows", h.rows)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize checks the request claims for scope. Write scope implies read.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		if !h.requireClaims {
			return true
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeRead && claims.HasScope(auth.ScopeWrite)) {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return false
}

func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	q := r.URL.Query()
	items, err := h.feed.List(r.Context(), report.Query{Search: q.Get("search"), Unit: q.Get("unit")})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListReportsResponse{Items: items})
}

func (h *Handler) reportDescription(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	id, suffix, found := strings.Cut(rest, "/")
	if !found || suffix != "description" || id == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	description, err := h.feed.Description(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DescriptionResponse{ID: id, Description: description})
}

func (h *Handler) personnel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	entries, err := personnel.List(r.Context(), h.directory)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListPersonnelResponse{Items: entries})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	q := r.URL.Query()
	if strings.TrimSpace(q.Get("month")) == "" || strings.TrimSpace(q.Get("unit")) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "month and unit are required")
		return
	}
	result, err := h.service.Preview(r.Context(), q.Get("month"), q.Get("unit"), personnelParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeWrite) {
		return
	}

	var req ipmt.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := validateSave(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.service.Save(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	var req ipmt.ExportRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req = ipmt.ExportRequest{Month: q.Get("month"), Unit: q.Get("unit"), Personnel: personnelParam(r)}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}
	if strings.TrimSpace(req.Month) == "" || strings.TrimSpace(req.Unit) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "month and unit are required")
		return
	}

	var buf bytes.Buffer
	name, err := h.service.ExportTemplate(r.Context(), &buf, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeWorkbook(w, name, buf.Bytes())
}

func (h *Handler) exportBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	q := r.URL.Query()
	month, unit := q.Get("month"), q.Get("unit")
	if strings.TrimSpace(unit) == "" {
		unit = ipmt.AllUnits
	}
	parsed, err := domain.ParseMonth(month)
	if err != nil {
		h.fail(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportBatch(r.Context(), &buf, month, unit, personnelParam(r)); err != nil {
		h.fail(w, err)
		return
	}
	writeWorkbook(w, ipmt.BatchFileName(unit, parsed), buf.Bytes())
}

func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !h.authorize(w, r, auth.ScopeRead) {
		return
	}

	q := r.URL.Query()
	rows, err := h.service.ListRows(r.Context(), ipmt.RowQuery{
		Personnel: q.Get("personnel"),
		Unit:      q.Get("unit"),
		Month:     q.Get("month"),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]RowView, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRowView(row))
	}
	writeJSON(w, http.StatusOK, ListRowsResponse{Items: items})
}

// fail maps domain errors onto the JSON error envelope.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnitNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrIndicatorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrMalformedMonth),
		errors.Is(err, domain.ErrPersonNotResolved):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func validateSave(req ipmt.SaveRequest) error {
	if strings.TrimSpace(req.Month) == "" {
		return errors.New("month is required")
	}
	if strings.TrimSpace(req.Unit) == "" {
		return errors.New("unit is required")
	}
	if len(req.Rows) == 0 {
		return errors.New("rows are required")
	}
	if len(req.Personnel) == 0 {
		return errors.New(`personnel is required, use "all" for the whole unit`)
	}
	return nil
}

// personnelParam collects repeated and comma-separated personnel values.
func personnelParam(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["personnel"] {
		out = append(out, personnel.SplitList(raw)...)
	}
	return out
}

// ListReportsResponse packages the report feed.
type ListReportsResponse struct {
	Items []report.Report `json:"items"`
}

// DescriptionResponse carries one record description.
type DescriptionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// ListPersonnelResponse packages the personnel directory.
type ListPersonnelResponse struct {
	Items []personnel.Entry `json:"items"`
}

// RowView exposes a saved IPMT row.
type RowView struct {
	ID             string   `json:"id"`
	PersonnelID    string   `json:"personnel_id"`
	UnitID         string   `json:"unit_id"`
	Month          string   `json:"month"`
	Indicator      string   `json:"indicator"`
	Accomplishment string   `json:"description"`
	Remarks        string   `json:"remarks"`
	RecordIDs      []string `json:"war_ids"`
	UpdatedAt      string   `json:"updated_at"`
}

// ListRowsResponse packages saved rows.
type ListRowsResponse struct {
	Items []RowView `json:"items"`
}

func toRowView(row domain.IPMTRow) RowView {
	ids := row.RecordIDs
	if ids == nil {
		ids = []string{}
	}
	return RowView{
		ID:             row.ID,
		PersonnelID:    row.PersonnelID,
		UnitID:         row.UnitID,
		Month:          row.Month,
		Indicator:      row.IndicatorLabel(),
		Accomplishment: row.Accomplishment,
		Remarks:        row.Remarks,
		RecordIDs:      ids,
		UpdatedAt:      row.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeWorkbook(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
