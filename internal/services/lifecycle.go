package services

import (
	"context"
	"math"
	"time"

	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/events"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// ReportRepository is the storage the lifecycle engine runs on.
type ReportRepository interface {
	Create(ctx context.Context, draft *models.ReportDraft) (*models.Report, error)
	FindByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, q models.ListQuery) (*models.ReportPage, error)
	Update(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error)
}

// EventPublisher fans events out to an audience without blocking.
type EventPublisher interface {
	Publish(audience events.Audience, event events.Event)
}

// ActivityRecorder stores the audit trail of officer actions.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog) error
}

// ReportService runs report submission and the status lifecycle:
//
//	SUBMITTED -> REVIEWING -> IN_PROGRESS -> RESOLVED
//	any non-terminal status -> REJECTED
//
// Transitions are deliberately permissive. Any known status may follow any
// other, including moves back out of RESOLVED, so officers can correct a
// mistaken closure. Resolution metrics are only ever stamped once.
type ReportService struct {
	repo     ReportRepository
	events   EventPublisher
	activity ActivityRecorder
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewReportService creates a new report service
func NewReportService(repo ReportRepository, publisher EventPublisher, activity ActivityRecorder, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{
		repo:     repo,
		events:   publisher,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateSubmission checks a public submission before any media is stored.
func (s *ReportService) ValidateSubmission(req *models.SubmissionRequest) error {
	if req == nil {
		return apperr.Validation("", "request body is required")
	}
	if err := validate.Struct(req); err != nil {
		return toValidationError(err)
	}
	if req.Severity != "" && !req.Severity.Valid() {
		return apperr.Validation("severity", "unknown severity %q", req.Severity)
	}
	return nil
}

// Submit stores a public submission and notifies the police audience.
// Unknown category labels are filed as RUBBISH.
func (s *ReportService) Submit(ctx context.Context, req *models.SubmissionRequest, mediaURLs []string) (*models.Report, error) {
	if err := s.ValidateSubmission(req); err != nil {
		return nil, err
	}

	draft := &models.ReportDraft{
		Type:      models.TypeFromCategory(req.Category),
		Severity:  req.Severity,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Location:  req.Location,
		MediaURLs: mediaURLs,
	}
	if req.Description != "" {
		desc := req.Description
		draft.Description = &desc
	}

	report, err := s.repo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.Police, events.NewReportEvent(report))

	s.logger.Infow("Report submitted",
		"id", report.ID,
		"type", report.Type,
		"severity", report.Severity,
		"media", len(report.MediaURLs),
	)
	return report, nil
}

// Get returns a report by internal key or anonymous identifier.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns a filtered page of reports.
func (s *ReportService) List(ctx context.Context, q models.ListQuery) (*models.ReportPage, error) {
	return s.repo.List(ctx, q)
}

// Transition moves a report to target on behalf of officer. The acting
// officer always becomes the assignee (last writer wins between officers).
// Non-empty notes replace the previous internal notes. The first transition
// into RESOLVED stamps resolvedAt and the response time in whole minutes;
// later ones leave both untouched.
func (s *ReportService) Transition(ctx context.Context, id string, target models.Status, officer *models.OfficerIdentity, notes *string) (*models.Report, error) {
	if !target.Valid() {
		return nil, &apperr.InvalidStatusError{Status: string(target)}
	}
	if officer == nil || officer.BadgeID == "" {
		return nil, &apperr.UnauthorizedError{Reason: "officer identity required"}
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	badge := officer.BadgeID
	patch := models.ReportPatch{
		Status:     &target,
		AssignedTo: &badge,
	}
	notesChanged := notes != nil && *notes != ""
	if notesChanged {
		patch.InternalNotes = notes
	}
	if target == models.StatusResolved && existing.ResolvedAt == nil {
		resolvedAt := s.now()
		minutes := ResponseMinutes(existing.CreatedAt, resolvedAt)
		patch.ResolvedAt = &resolvedAt
		patch.ResponseTime = &minutes
	}

	updated, err := s.repo.Update(ctx, existing.ID, patch)
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.Police, events.UpdatedEvent(updated))
	if target == models.StatusResolved {
		s.events.Publish(events.Public, events.ResolvedEvent(updated))
	}

	if err := s.activity.Record(ctx, models.ActivityLog{
		ReportID:     updated.ID,
		Officer:      badge,
		FromStatus:   existing.Status,
		ToStatus:     target,
		NotesChanged: notesChanged,
	}); err != nil {
		s.logger.Errorw("Failed to record report activity", "report", updated.ID, "error", err)
	}

	s.logger.Infow("Report status updated",
		"id", updated.ID,
		"from", existing.Status,
		"to", updated.Status,
		"officer", badge,
		"closed", updated.Status.Terminal(),
	)
	return updated, nil
}

// ResponseMinutes is floor((resolved - created) / 1 minute).
func ResponseMinutes(created, resolved time.Time) int {
	return int(math.Floor(float64(resolved.Sub(created).Milliseconds()) / 60000))
}
