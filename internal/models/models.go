// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database.
package models

import (
	"time"
)

// ReportType classifies what was reported.
type ReportType string

const (
	TypeRubbish            ReportType = "RUBBISH"
	TypeUnsafeArea         ReportType = "UNSAFE_AREA"
	TypeSuspiciousActivity ReportType = "SUSPICIOUS_ACTIVITY"
	TypeVandalism          ReportType = "VANDALISM"
)

// ReportTypes lists every report type in declaration order.
var ReportTypes = []ReportType{TypeRubbish, TypeUnsafeArea, TypeSuspiciousActivity, TypeVandalism}

// categoryLabels maps the category labels shown by the clients to report types.
var categoryLabels = map[string]ReportType{
	"Rubbish":             TypeRubbish,
	"Unsafe Area":         TypeUnsafeArea,
	"Suspicious Activity": TypeSuspiciousActivity,
	"Vandalism":           TypeVandalism,
}

// TypeFromCategory maps a client display label to a report type.
// Unknown labels fall back to RUBBISH.
func TypeFromCategory(label string) ReportType {
	if t, ok := categoryLabels[label]; ok {
		return t
	}
	return TypeRubbish
}

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	for _, known := range ReportTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity ranks urgency, LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every severity ordered by urgency.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// Status is a report's position in its lifecycle.
type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusReviewing  Status = "REVIEWING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusRejected   Status = "REJECTED"
)

// Statuses lists every lifecycle status.
var Statuses = []Status{StatusSubmitted, StatusReviewing, StatusInProgress, StatusResolved, StatusRejected}

// ActiveStatuses are the statuses a report holds before it is closed, in
// lifecycle order.
func ActiveStatuses() []Status {
	var out []Status
	for _, s := range Statuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s closes a report.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Report is the canonical in-memory report record. It is never serialized
// directly: use PublicView or PoliceView.
type Report struct {
	ID            string
	AnonymousID   string
	Type          ReportType
	Severity      Severity
	Latitude      float64
	Longitude     float64
	Location      string
	Description   *string
	MediaURLs     []string
	Status        Status
	AssignedTo    *string
	InternalNotes *string
	ResolvedAt    *time.Time
	ResponseTime  *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReportDraft is a validated public submission ready to be stored.
type ReportDraft struct {
	Type        ReportType `validate:"required"`
	Severity    Severity
	Latitude    *float64 `validate:"required,min=-90,max=90"`
	Longitude   *float64 `validate:"required,min=-180,max=180"`
	Location    string   `validate:"required"`
	Description *string
	MediaURLs   []string
}

// SubmissionRequest is the public submission body. Media files travel
// separately as multipart parts.
type SubmissionRequest struct {
	Category    string   `json:"category" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
}

// SubmissionResponse is returned to the anonymous submitter.
type SubmissionResponse struct {
	Success  bool   `json:"success"`
	ReportID string `json:"reportId"`
	Message  string `json:"message"`
}

// ReportPatch is a partial update. Nil fields are left untouched.
type ReportPatch struct {
	Status        *Status
	AssignedTo    *string
	InternalNotes *string
	ResolvedAt    *time.Time
	ResponseTime  *int
}

// ReportFilter selects reports by exact match. Empty fields match everything.
type ReportFilter struct {
	Status   Status
	Type     ReportType
	Severity Severity
}

// SortOrder is the list direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery is a filtered, sorted and paginated report listing.
type ListQuery struct {
	Filter    ReportFilter
	Limit     int
	Offset    int
	SortBy    string
	SortOrder SortOrder
}

// ReportPage is one page of a listing. HasMore is true whenever the page is
// full, so a page that ends exactly at the last report still reports more.
type ReportPage struct {
	Reports []Report
	HasMore bool
}

// TransitionRequest is the police status update body.
type TransitionRequest struct {
	Status        Status  `json:"status"`
	InternalNotes *string `json:"internalNotes,omitempty"`
}

// PoliceUser is an officer account. Created out-of-band by cmd/seed.
type PoliceUser struct {
	ID           string    `json:"id"`
	BadgeID      string    `json:"badgeId"`
	Name         string    `json:"name"`
	Station      string    `json:"station"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OfficerIdentity is the authenticated officer attached to a request.
type OfficerIdentity struct {
	ID      string `json:"id"`
	BadgeID string `json:"badgeId"`
	Name    string `json:"name"`
	Station string `json:"station"`
}

// LoginRequest is the police login body.
type LoginRequest struct {
	BadgeID  string `json:"badgeId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries a freshly issued bearer token.
type LoginResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    OfficerIdentity `json:"user"`
}

// ActivityLog is one audit entry for an officer action on a report.
type ActivityLog struct {
	ID           int64     `json:"id"`
	ReportID     string    `json:"reportId"`
	Officer      string    `json:"officer"`
	FromStatus   Status    `json:"fromStatus"`
	ToStatus     Status    `json:"toStatus"`
	NotesChanged bool      `json:"notesChanged"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status      string         `json:"status"`
	Version     string         `json:"version"`
	Uptime      string         `json:"uptime,omitempty"`
	Database    string         `json:"database,omitempty"`
	Redis       string         `json:"redis,omitempty"`
	Subscribers map[string]int `json:"subscribers,omitempty"`
}
