package events

import (
	"time"

	"github.com/seeit/report-server/internal/models"
)

// Event names.
const (
	ReportNew      = "report:new"
	ReportUpdated  = "report:updated"
	ReportResolved = "report:resolved"
)

// NewReportPayload is sent to the police when a report is submitted.
type NewReportPayload struct {
	ID        string            `json:"id"`
	Type      models.ReportType `json:"type"`
	Severity  models.Severity   `json:"severity"`
	Location  string            `json:"location"`
	CreatedAt time.Time         `json:"createdAt"`
}

// UpdatedPayload is sent to the police on every status transition.
type UpdatedPayload struct {
	ID         string        `json:"id"`
	Status     models.Status `json:"status"`
	AssignedTo *string       `json:"assignedTo"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// ResolvedPayload is sent to the public when a report is resolved. It
// carries the anonymous identifier only.
type ResolvedPayload struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// NewReportEvent builds the report:new event for r.
func NewReportEvent(r *models.Report) Event {
	return Event{Name: ReportNew, Data: NewReportPayload{
		ID:        r.ID,
		Type:      r.Type,
		Severity:  r.Severity,
		Location:  r.Location,
		CreatedAt: r.CreatedAt,
	}}
}

// UpdatedEvent builds the report:updated event for r.
func UpdatedEvent(r *models.Report) Event {
	return Event{Name: ReportUpdated, Data: UpdatedPayload{
		ID:         r.ID,
		Status:     r.Status,
		AssignedTo: r.AssignedTo,
		UpdatedAt:  r.UpdatedAt,
	}}
}

// ResolvedEvent builds the report:resolved event for r.
func ResolvedEvent(r *models.Report) Event {
	return Event{Name: ReportResolved, Data: ResolvedPayload{
		ID:       r.AnonymousID,
		Location: r.Location,
	}}
}
