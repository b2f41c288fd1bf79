// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// Listing defaults.
const (
	DefaultListLimit = 50
	DefaultSortBy    = "createdAt"
)

// sortColumns whitelists the sortable fields by their API names.
var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"severity":     "severity",
	"status":       "status",
	"type":         "type",
	"location":     "location",
	"responseTime": "response_time",
	"resolvedAt":   "resolved_at",
}

const reportColumns = `id::text, anonymous_id, type::text, severity::text, latitude, longitude,
	location, description, media_urls, status::text, assigned_to, internal_notes,
	resolved_at, response_time, created_at, updated_at`

const insertReportSQL = `
	INSERT INTO reports (id, anonymous_id, type, severity, latitude, longitude, location,
		description, media_urls, status, created_at, updated_at)
	VALUES ($1::text::uuid, $2, $3::text::report_type, $4::text::report_severity, $5, $6, $7,
		$8, $9, $10::text::report_status, $11, $11)`

// Parameters are cast rather than columns so the primary key and the
// anonymous_id unique index stay usable.
const (
	findReportByIDSQL   = `SELECT ` + reportColumns + ` FROM reports WHERE id = $1::text::uuid`
	findReportByAnonSQL = `SELECT ` + reportColumns + ` FROM reports WHERE anonymous_id = $1`
)

var validate = validator.New()

// AnonymousIDGenerator issues public report handles.
type AnonymousIDGenerator interface {
	Generate() (string, error)
}

// ReportStore persists reports in PostgreSQL.
type ReportStore struct {
	db     database.DB
	ids    AnonymousIDGenerator
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewReportStore creates a new report store
func NewReportStore(db database.DB, ids AnonymousIDGenerator, logger *zap.SugaredLogger) *ReportStore {
	return &ReportStore{db: db, ids: ids, logger: logger, now: time.Now}
}

// Create validates draft and stores it as a new SUBMITTED report. An
// anonymous identifier collision is retried once with a fresh identifier.
func (s *ReportStore) Create(ctx context.Context, draft *models.ReportDraft) (*models.Report, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	severity := draft.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	media := draft.MediaURLs
	if media == nil {
		media = []string{}
	}
	now := s.now()

	report := &models.Report{
		ID:          uuid.NewString(),
		Type:        draft.Type,
		Severity:    severity,
		Latitude:    *draft.Latitude,
		Longitude:   *draft.Longitude,
		Location:    draft.Location,
		Description: draft.Description,
		MediaURLs:   media,
		Status:      models.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		report.AnonymousID, err = s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate anonymous id: %w", err)
		}

		_, err = s.db.Exec(ctx, insertReportSQL,
			report.ID, report.AnonymousID,
			string(report.Type), string(report.Severity),
			report.Latitude, report.Longitude, report.Location,
			report.Description, report.MediaURLs,
			string(report.Status), now,
		)
		if err == nil {
			return report, nil
		}
		if !database.IsUniqueViolation(err, database.AnonymousIDConstraint) {
			return nil, fmt.Errorf("insert report: %w", err)
		}
		s.logger.Warnw("Anonymous id collision, regenerating", "attempt", attempt+1)
	}

	return nil, fmt.Errorf("insert report: anonymous id collided twice: %w", err)
}

// FindByID looks a report up by its internal key or its anonymous identifier.
// Anything that parses as a UUID is treated as the internal key.
func (s *ReportStore) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query, key := findReportByAnonSQL, id
	if canonical, ok := canonicalUUID(id); ok {
		query, key = findReportByIDSQL, canonical
	}
	report, err := scanReport(s.db.QueryRow(ctx, query, key))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, &apperr.NotFoundError{Resource: "report", ID: id}
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return report, nil
}

// List returns one page of reports matching q. HasMore is set whenever the
// page came back full; it is not an exact remaining count.
func (s *ReportStore) List(ctx context.Context, q models.ListQuery) (*models.ReportPage, error) {
	q, err := NormalizeListQuery(q)
	if err != nil {
		return nil, err
	}

	query, args := buildListSQL(q)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0, q.Limit)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return &models.ReportPage{Reports: reports, HasMore: len(reports) == q.Limit}, nil
}

// Update applies patch to the report with internal key id and bumps
// updated_at. Concurrent updates are last-write-wins, except resolved_at and
// response_time which keep the first value written.
func (s *ReportStore) Update(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	key, ok := canonicalUUID(id)
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "report", ID: id}
	}
	query, args := buildUpdateSQL(key, patch, s.now())
	report, err := scanReport(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, &apperr.NotFoundError{Resource: "report", ID: id}
		}
		return nil, fmt.Errorf("update report: %w", err)
	}
	return report, nil
}

// NormalizeListQuery applies listing defaults and rejects unknown filters,
// sort fields and negative paging.
func NormalizeListQuery(q models.ListQuery) (models.ListQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit < 0 {
		return q, apperr.Validation("limit", "must be positive")
	}
	if q.Offset < 0 {
		return q, apperr.Validation("offset", "must not be negative")
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return q, apperr.Validation("sortBy", "cannot sort by %q", q.SortBy)
	}
	switch strings.ToLower(string(q.SortOrder)) {
	case "":
		q.SortOrder = models.SortDesc
	case "asc":
		q.SortOrder = models.SortAsc
	case "desc":
		q.SortOrder = models.SortDesc
	default:
		return q, apperr.Validation("sortOrder", "must be asc or desc")
	}

	f := q.Filter
	if f.Status != "" && !f.Status.Valid() {
		return q, apperr.Validation("status", "unknown status %q", f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return q, apperr.Validation("type", "unknown type %q", f.Type)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return q, apperr.Validation("severity", "unknown severity %q", f.Severity)
	}
	return q, nil
}

func buildListSQL(q models.ListQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(column, enum, value string) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d::text::%s", column, len(args), enum))
	}
	if q.Filter.Status != "" {
		add("status", "report_status", string(q.Filter.Status))
	}
	if q.Filter.Type != "" {
		add("type", "report_type", string(q.Filter.Type))
	}
	if q.Filter.Severity != "" {
		add("severity", "report_severity", string(q.Filter.Severity))
	}

	var b strings.Builder
	b.WriteString("SELECT " + reportColumns + "\n\tFROM reports")
	if len(where) > 0 {
		b.WriteString("\n\tWHERE " + strings.Join(where, " AND "))
	}
	order := "DESC"
	if q.SortOrder == models.SortAsc {
		order = "ASC"
	}
	fmt.Fprintf(&b, "\n\tORDER BY %s %s, id %s", sortColumns[q.SortBy], order, order)

	args = append(args, q.Limit, q.Offset)
	b.WriteString("\n\tLIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args)))
	return b.String(), args
}

func buildUpdateSQL(id string, patch models.ReportPatch, now time.Time) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	// Written once: a second RESOLVED transition racing the first must not
	// move the metrics.
	setOnce := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, $%d)", column, column, len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d::text::report_status", len(args)))
	}
	if patch.AssignedTo != nil {
		set("assigned_to", *patch.AssignedTo)
	}
	if patch.InternalNotes != nil {
		set("internal_notes", *patch.InternalNotes)
	}
	if patch.ResolvedAt != nil {
		setOnce("resolved_at", *patch.ResolvedAt)
	}
	if patch.ResponseTime != nil {
		setOnce("response_time", *patch.ResponseTime)
	}
	set("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE reports SET %s\n\tWHERE id = $%d::text::uuid\n\tRETURNING %s",
		strings.Join(sets, ", "), len(args), reportColumns)
	return query, args
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		r                    models.Report
		typ, severity, state string
	)
	err := row.Scan(&r.ID, &r.AnonymousID, &typ, &severity, &r.Latitude, &r.Longitude,
		&r.Location, &r.Description, &r.MediaURLs, &state, &r.AssignedTo, &r.InternalNotes,
		&r.ResolvedAt, &r.ResponseTime, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Type = models.ReportType(typ)
	r.Severity = models.Severity(severity)
	r.Status = models.Status(state)
	if r.MediaURLs == nil {
		r.MediaURLs = []string{}
	}
	return &r, nil
}

func validateDraft(draft *models.ReportDraft) error {
	if draft == nil {
		return apperr.Validation("", "report is required")
	}
	if err := validate.Struct(draft); err != nil {
		return toValidationError(err)
	}
	if !draft.Type.Valid() {
		return apperr.Validation("type", "unknown type %q", draft.Type)
	}
	if draft.Severity != "" && !draft.Severity.Valid() {
		return apperr.Validation("severity", "unknown severity %q", draft.Severity)
	}
	return nil
}

// toValidationError reports the first failing field of a validator error.
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &apperr.ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.Validation(field, "is required")
	case "min", "max":
		return apperr.Validation(field, "is out of range")
	default:
		return apperr.Validation(field, "failed %s check", fe.Tag())
	}
}

// canonicalUUID reports whether s is a UUID in any accepted spelling and
// returns its canonical hyphenated form.
func canonicalUUID(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
