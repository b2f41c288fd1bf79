package models

import "time"

// PublicReport is the shape served to anonymous clients. It carries no
// internal key and none of the police-only fields.
type PublicReport struct {
	AnonymousID  string     `json:"anonymousId"`
	Type         ReportType `json:"type"`
	Severity     Severity   `json:"severity"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Location     string     `json:"location"`
	Description  *string    `json:"description"`
	MediaURLs    []string   `json:"mediaUrls"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ResponseTime *int       `json:"responseTime"`
}

// PoliceReport is the full record served to authenticated officers.
type PoliceReport struct {
	ID string `json:"id"`
	PublicReport
	AssignedTo    *string    `json:"assignedTo"`
	InternalNotes *string    `json:"internalNotes"`
	ResolvedAt    *time.Time `json:"resolvedAt"`
}

// PublicView serializes r for the public audience.
func PublicView(r *Report) PublicReport {
	media := r.MediaURLs
	if media == nil {
		media = []string{}
	}
	return PublicReport{
		AnonymousID:  r.AnonymousID,
		Type:         r.Type,
		Severity:     r.Severity,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Location:     r.Location,
		Description:  r.Description,
		MediaURLs:    media,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ResponseTime: r.ResponseTime,
	}
}

// PoliceView serializes r for the police audience.
func PoliceView(r *Report) PoliceReport {
	return PoliceReport{
		ID:            r.ID,
		PublicReport:  PublicView(r),
		AssignedTo:    r.AssignedTo,
		InternalNotes: r.InternalNotes,
		ResolvedAt:    r.ResolvedAt,
	}
}

// PublicViews serializes a slice for the public audience.
func PublicViews(reports []Report) []PublicReport {
	out := make([]PublicReport, 0, len(reports))
	for i := range reports {
		out = append(out, PublicView(&reports[i]))
	}
	return out
}

// PoliceViews serializes a slice for the police audience.
func PoliceViews(reports []Report) []PoliceReport {
	out := make([]PoliceReport, 0, len(reports))
	for i := range reports {
		out = append(out, PoliceView(&reports[i]))
	}
	return out
}

// ReportList is the list endpoint response. Reports holds either public or
// police views depending on the route.
type ReportList struct {
	Reports any  `json:"reports"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// DashboardSnapshot is the police dashboard payload.
type DashboardSnapshot struct {
	Overview       DashboardOverview `json:"overview"`
	Charts         DashboardCharts   `json:"charts"`
	RecentActivity []RecentReport    `json:"recentActivity"`
}

// DashboardOverview holds the headline counters.
type DashboardOverview struct {
	TotalReports    int64 `json:"totalReports"`
	ActiveReports   int64 `json:"activeReports"`
	ResolvedToday   int64 `json:"resolvedToday"`
	CriticalReports int64 `json:"criticalReports"`
	AvgResponseTime int64 `json:"avgResponseTime"`
}

// DashboardCharts holds grouped counts.
type DashboardCharts struct {
	ReportsByType   []TypeCount   `json:"reportsByType"`
	ReportsByStatus []StatusCount `json:"reportsByStatus"`
}

// TypeCount is a per-type report count.
type TypeCount struct {
	Type  ReportType `json:"type"`
	Count int64      `json:"count"`
}

// StatusCount is a per-status report count.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// RecentReport is a recent-activity row with its relative age.
type RecentReport struct {
	ID          string     `json:"id"`
	AnonymousID string     `json:"anonymousId"`
	Type        ReportType `json:"type"`
	Severity    Severity   `json:"severity"`
	Location    string     `json:"location"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	TimeAgo     string     `json:"timeAgo"`
}
