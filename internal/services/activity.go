package services

import (
	"context"
	"fmt"

	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

const insertActivitySQL = `
	INSERT INTO report_activity (report_id, officer, from_status, to_status, notes_changed)
	VALUES ($1::text::uuid, $2, $3::text::report_status, $4::text::report_status, $5)`

const activityByReportSQL = `
	SELECT id, report_id::text, officer, from_status::text, to_status::text, notes_changed, created_at
	FROM report_activity
	WHERE report_id = $1::text::uuid
	ORDER BY created_at DESC, id DESC
	LIMIT $2`

// ActivityLogService keeps the audit trail of officer actions on reports
type ActivityLogService struct {
	db     database.DB
	logger *zap.SugaredLogger
}

// NewActivityLogService creates a new activity log service
func NewActivityLogService(db database.DB, logger *zap.SugaredLogger) *ActivityLogService {
	return &ActivityLogService{db: db, logger: logger}
}

// Record appends one officer action to the trail
func (s *ActivityLogService) Record(ctx context.Context, entry models.ActivityLog) error {
	_, err := s.db.Exec(ctx, insertActivitySQL,
		entry.ReportID,
		entry.Officer,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.NotesChanged,
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}

	s.logger.Infow("Activity logged",
		"officer", entry.Officer,
		"report", entry.ReportID,
		"from", entry.FromStatus,
		"to", entry.ToStatus,
	)
	return nil
}

// FetchByReport returns the newest activity entries for a report. A
// reportID that is not a UUID has no entries.
func (s *ActivityLogService) FetchByReport(ctx context.Context, reportID string, limit int) ([]models.ActivityLog, error) {
	key, ok := canonicalUUID(reportID)
	if !ok {
		return []models.ActivityLog{}, nil
	}
	rows, err := s.db.Query(ctx, activityByReportSQL, key, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.ActivityLog, 0)
	for rows.Next() {
		var (
			log      models.ActivityLog
			from, to string
		)
		if err := rows.Scan(&log.ID, &log.ReportID, &log.Officer,
			&from, &to, &log.NotesChanged, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		log.FromStatus = models.Status(from)
		log.ToStatus = models.Status(to)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}

	return logs, nil
}
