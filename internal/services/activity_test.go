package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/seeit/report-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockActivity(t *testing.T) (*ActivityLogService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewActivityLogService(mock, zap.NewNop().Sugar()), mock
}

func TestRecordActivity(t *testing.T) {
	svc, mock := newMockActivity(t)
	mock.ExpectExec(insertActivitySQL).
		WithArgs(reportKey, "TPD-002", "SUBMITTED", "REVIEWING", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := svc.Record(context.Background(), models.ActivityLog{
		ReportID:     reportKey,
		Officer:      "TPD-002",
		FromStatus:   models.StatusSubmitted,
		ToStatus:     models.StatusReviewing,
		NotesChanged: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordActivityWrapsFailure(t *testing.T) {
	svc, mock := newMockActivity(t)
	mock.ExpectExec(insertActivitySQL).
		WithArgs(reportKey, "TPD-002", "REVIEWING", "RESOLVED", false).
		WillReturnError(errors.New("foreign key violation"))

	err := svc.Record(context.Background(), models.ActivityLog{
		ReportID:   reportKey,
		Officer:    "TPD-002",
		FromStatus: models.StatusReviewing,
		ToStatus:   models.StatusResolved,
	})
	assert.ErrorContains(t, err, "insert activity log")
}

func TestFetchByReport(t *testing.T) {
	svc, mock := newMockActivity(t)
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(activityByReportSQL).
		WithArgs(reportKey, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "report_id", "officer", "from_status", "to_status", "notes_changed", "created_at"}).
			AddRow(int64(2), reportKey, "TPD-001", "REVIEWING", "RESOLVED", false, at.Add(time.Hour)).
			AddRow(int64(1), reportKey, "TPD-002", "SUBMITTED", "REVIEWING", true, at))

	logs, err := svc.FetchByReport(context.Background(), reportKey, 20)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(2), logs[0].ID)
	assert.Equal(t, models.StatusResolved, logs[0].ToStatus)
	assert.True(t, logs[1].NotesChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByReportEmpty(t *testing.T) {
	svc, mock := newMockActivity(t)
	mock.ExpectQuery(activityByReportSQL).
		WithArgs(reportKey, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "report_id", "officer", "from_status", "to_status", "notes_changed", "created_at"}))

	logs, err := svc.FetchByReport(context.Background(), reportKey, 20)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)

	logs, err = svc.FetchByReport(context.Background(), "anon_00000001", 20)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityLookupUsesReportIndex(t *testing.T) {
	assert.Contains(t, activityByReportSQL, "WHERE report_id = $1::text::uuid")
	assert.NotContains(t, activityByReportSQL, "report_id::text =")
}
