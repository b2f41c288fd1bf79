package handlers

import (
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/auth"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// ReportLifecycle is the report service as the handlers use it.
type ReportLifecycle interface {
	ValidateSubmission(req *models.SubmissionRequest) error
	Submit(ctx context.Context, req *models.SubmissionRequest, mediaURLs []string) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, q models.ListQuery) (*models.ReportPage, error)
	Transition(ctx context.Context, id string, target models.Status, officer *models.OfficerIdentity, notes *string) (*models.Report, error)
}

// MediaSaver stores submission evidence.
type MediaSaver interface {
	SaveAll(files []*multipart.FileHeader) ([]string, error)
	Remove(urls []string)
	MaxRequestBytes() int64
}

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// ReportHandler handles report endpoints for both audiences
type ReportHandler struct {
	reports ReportLifecycle
	media   MediaSaver
	logger  *zap.SugaredLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportLifecycle, media MediaSaver, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, media: media, logger: logger}
}

// Submit handles POST /api/reports
// Accepts JSON, or multipart/form-data with up to the configured number of
// "media" file parts.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.submitMultipart(w, r)
		return
	}

	var req models.SubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.submit(w, r, &req, nil)
}

func (h *ReportHandler) submitMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.media.MaxRequestBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := submissionFromForm(r.MultipartForm.Value)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to submit report")
		return
	}
	// Reject bad fields before anything touches the disk.
	if err := h.reports.ValidateSubmission(req); err != nil {
		respondServiceError(w, h.logger, err, "Failed to submit report")
		return
	}

	urls, err := h.media.SaveAll(r.MultipartForm.File["media"])
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to store media")
		return
	}
	h.submit(w, r, req, urls)
}

func (h *ReportHandler) submit(w http.ResponseWriter, r *http.Request, req *models.SubmissionRequest, urls []string) {
	report, err := h.reports.Submit(r.Context(), req, urls)
	if err != nil {
		h.media.Remove(urls)
		respondServiceError(w, h.logger, err, "Failed to submit report")
		return
	}

	respondJSON(w, http.StatusCreated, models.SubmissionResponse{
		Success:  true,
		ReportID: report.AnonymousID,
		Message:  "Report submitted successfully",
	})
}

// List handles GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := h.list(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.ReportList{
		Reports: models.PublicViews(page.Reports),
		Total:   len(page.Reports),
		HasMore: page.HasMore,
	})
}

// PoliceList handles GET /api/police/reports
func (h *ReportHandler) PoliceList(w http.ResponseWriter, r *http.Request) {
	page, ok := h.list(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.ReportList{
		Reports: models.PoliceViews(page.Reports),
		Total:   len(page.Reports),
		HasMore: page.HasMore,
	})
}

func (h *ReportHandler) list(w http.ResponseWriter, r *http.Request) (*models.ReportPage, bool) {
	q, err := listQueryFromURL(r)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch reports")
		return nil, false
	}
	page, err := h.reports.List(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch reports")
		return nil, false
	}
	return page, true
}

// Get handles GET /api/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch report")
		return
	}
	respondJSON(w, http.StatusOK, models.PublicView(report))
}

// PoliceGet handles GET /api/police/reports/{id}
func (h *ReportHandler) PoliceGet(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch report")
		return
	}
	respondJSON(w, http.StatusOK, models.PoliceView(report))
}

// UpdateStatus handles PUT /api/police/reports/{id}/status
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	officer, _ := auth.OfficerFrom(r.Context())
	report, err := h.reports.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, officer, req.InternalNotes)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Report status updated successfully",
		"report":  models.PoliceView(report),
	})
}

func submissionFromForm(values map[string][]string) (*models.SubmissionRequest, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	req := &models.SubmissionRequest{
		Category:    get("category"),
		Location:    get("location"),
		Description: get("description"),
		Severity:    models.Severity(get("severity")),
	}

	var err error
	if req.Latitude, err = optionalFloat("latitude", get("latitude")); err != nil {
		return nil, err
	}
	if req.Longitude, err = optionalFloat("longitude", get("longitude")); err != nil {
		return nil, err
	}
	return req, nil
}

func optionalFloat(field, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation(field, "must be a number")
	}
	return &v, nil
}

func listQueryFromURL(r *http.Request) (models.ListQuery, error) {
	params := r.URL.Query()
	q := models.ListQuery{
		Filter: models.ReportFilter{
			Status:   models.Status(params.Get("status")),
			Type:     models.ReportType(params.Get("type")),
			Severity: models.Severity(params.Get("severity")),
		},
		SortBy:    params.Get("sortBy"),
		SortOrder: models.SortOrder(params.Get("sortOrder")),
	}

	var err error
	if q.Limit, err = optionalInt("limit", params.Get("limit")); err != nil {
		return q, err
	}
	if q.Offset, err = optionalInt("offset", params.Get("offset")); err != nil {
		return q, err
	}
	return q, nil
}

func optionalInt(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(field, "must be an integer")
	}
	return v, nil
}
