package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecentActivityLimit is how many reports the dashboard lists.
const RecentActivityLimit = 10

const (
	countAllSQL       = `SELECT COUNT(*) FROM reports`
	countActiveSQL    = `SELECT COUNT(*) FROM reports WHERE status = ANY($1::text[]::report_status[])`
	resolvedSinceSQL  = `SELECT COUNT(*) FROM reports WHERE status = 'RESOLVED' AND resolved_at >= $1`
	countCriticalSQL  = `SELECT COUNT(*) FROM reports WHERE severity = 'CRITICAL' AND status = ANY($1::text[]::report_status[])`
	avgResponseSQL    = `SELECT COALESCE(AVG(response_time), 0)::float8 FROM reports WHERE status = 'RESOLVED' AND response_time IS NOT NULL`
	countByTypeSQL    = `SELECT type::text, COUNT(*) FROM reports GROUP BY type ORDER BY type`
	countByStatusSQL  = `SELECT status::text, COUNT(*) FROM reports GROUP BY status ORDER BY status`
	recentActivitySQL = `SELECT id::text, anonymous_id, type::text, severity::text, location, status::text, created_at, updated_at
	FROM reports ORDER BY created_at DESC LIMIT $1`
)

// StatsService derives dashboard metrics from the reports table. Nothing is
// cached: every call recomputes.
type StatsService struct {
	db     database.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(db database.DB, logger *zap.SugaredLogger) *StatsService {
	return &StatsService{db: db, logger: logger, now: time.Now}
}

// ComputeDashboard runs the independent aggregate queries concurrently and
// assembles them into one snapshot.
func (s *StatsService) ComputeDashboard(ctx context.Context) (*models.DashboardSnapshot, error) {
	now := s.now()
	active := statusStrings(models.ActiveStatuses())

	var (
		snap   models.DashboardSnapshot
		avg    float64
		recent []models.RecentReport
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.count(gctx, &snap.Overview.TotalReports, countAllSQL)
	})
	g.Go(func() error {
		return s.count(gctx, &snap.Overview.ActiveReports, countActiveSQL, active)
	})
	g.Go(func() error {
		return s.count(gctx, &snap.Overview.ResolvedToday, resolvedSinceSQL, StartOfDay(now))
	})
	g.Go(func() error {
		return s.count(gctx, &snap.Overview.CriticalReports, countCriticalSQL, active)
	})
	g.Go(func() error {
		if err := s.db.QueryRow(gctx, avgResponseSQL).Scan(&avg); err != nil {
			return fmt.Errorf("average response time: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Charts.ReportsByType, err = s.countByType(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Charts.ReportsByStatus, err = s.countByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.recent(gctx, now)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Overview.AvgResponseTime = int64(math.Round(avg))
	snap.RecentActivity = recent
	return &snap, nil
}

func (s *StatsService) count(ctx context.Context, dst *int64, query string, args ...any) error {
	if err := s.db.QueryRow(ctx, query, args...).Scan(dst); err != nil {
		return fmt.Errorf("count reports: %w", err)
	}
	return nil
}

func (s *StatsService) countByType(ctx context.Context) ([]models.TypeCount, error) {
	rows, err := s.db.Query(ctx, countByTypeSQL)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	counts := make([]models.TypeCount, 0, len(models.ReportTypes))
	for rows.Next() {
		var (
			typ   string
			count int64
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts = append(counts, models.TypeCount{Type: models.ReportType(typ), Count: count})
	}
	return counts, rows.Err()
}

func (s *StatsService) countByStatus(ctx context.Context) ([]models.StatusCount, error) {
	rows, err := s.db.Query(ctx, countByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make([]models.StatusCount, 0, len(models.Statuses))
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts = append(counts, models.StatusCount{Status: models.Status(status), Count: count})
	}
	return counts, rows.Err()
}

func (s *StatsService) recent(ctx context.Context, now time.Time) ([]models.RecentReport, error) {
	rows, err := s.db.Query(ctx, recentActivitySQL, RecentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	defer rows.Close()

	recent := make([]models.RecentReport, 0, RecentActivityLimit)
	for rows.Next() {
		var (
			r                     models.RecentReport
			typ, severity, status string
		)
		if err := rows.Scan(&r.ID, &r.AnonymousID, &typ, &severity, &r.Location,
			&status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recent report: %w", err)
		}
		r.Type = models.ReportType(typ)
		r.Severity = models.Severity(severity)
		r.Status = models.Status(status)
		r.TimeAgo = TimeAgo(r.CreatedAt, now)
		recent = append(recent, r)
	}
	return recent, rows.Err()
}

// TimeAgo renders the age of t as "Xm ago", "Xh ago" or "Xd ago", always
// truncating: under an hour in minutes, under a day in hours, else days.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int64(math.Floor(diff.Minutes()))
	hours := int64(math.Floor(diff.Hours()))
	days := int64(math.Floor(diff.Hours() / 24))

	switch {
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", days)
	}
}

// StartOfDay is local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
