package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/events"
	"github.com/seeit/report-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memRepo is a goroutine-safe in-memory ReportRepository.
type memRepo struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	seq     int
	now     func() time.Time
}

func newMemRepo(now func() time.Time) *memRepo {
	return &memRepo{reports: make(map[string]*models.Report), now: now}
}

func (m *memRepo) Create(_ context.Context, draft *models.ReportDraft) (*models.Report, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	severity := draft.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	r := &models.Report{
		ID:          fmt.Sprintf("id-%d", m.seq),
		AnonymousID: fmt.Sprintf("anon_%08x", m.seq),
		Type:        draft.Type,
		Severity:    severity,
		Latitude:    *draft.Latitude,
		Longitude:   *draft.Longitude,
		Location:    draft.Location,
		Description: draft.Description,
		MediaURLs:   draft.MediaURLs,
		Status:      models.StatusSubmitted,
		CreatedAt:   m.now(),
		UpdatedAt:   m.now(),
	}
	m.reports[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memRepo) FindByID(_ context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ID == id || r.AnonymousID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &apperr.NotFoundError{Resource: "report", ID: id}
}

func (m *memRepo) List(_ context.Context, q models.ListQuery) (*models.ReportPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return &models.ReportPage{Reports: out, HasMore: len(out) == q.Limit}, nil
}

func (m *memRepo) Update(_ context.Context, id string, p models.ReportPatch) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "report", ID: id}
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AssignedTo != nil {
		v := *p.AssignedTo
		r.AssignedTo = &v
	}
	if p.InternalNotes != nil {
		v := *p.InternalNotes
		r.InternalNotes = &v
	}
	// resolved_at and response_time are write-once, like the SQL store.
	if p.ResolvedAt != nil && r.ResolvedAt == nil {
		v := *p.ResolvedAt
		r.ResolvedAt = &v
	}
	if p.ResponseTime != nil && r.ResponseTime == nil {
		v := *p.ResponseTime
		r.ResponseTime = &v
	}
	r.UpdatedAt = m.now()
	cp := *r
	return &cp, nil
}

type published struct {
	audience events.Audience
	event    events.Event
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(a events.Audience, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{audience: a, event: e})
}

func (p *recordingPublisher) to(a events.Audience) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, s := range p.sent {
		if s.audience == a {
			out = append(out, s.event)
		}
	}
	return out
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	err     error
}

func (f *fakeActivity) Record(_ context.Context, e models.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc      *ReportService
	repo     *memRepo
	events   *recordingPublisher
	activity *fakeActivity
	clock    *clock
}

func newFixture() *fixture {
	c := &clock{t: time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo(c.Now)
	pub := &recordingPublisher{}
	act := &fakeActivity{}
	svc := NewReportService(repo, pub, act, zap.NewNop().Sugar())
	svc.now = c.Now
	return &fixture{svc: svc, repo: repo, events: pub, activity: act, clock: c}
}

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }

var (
	officerA = &models.OfficerIdentity{ID: "o-1", BadgeID: "TPD-001", Name: "Officer John Smith"}
	officerB = &models.OfficerIdentity{ID: "o-2", BadgeID: "TPD-002", Name: "Sergeant Mary Johnson"}
)

func marketSubmission() *models.SubmissionRequest {
	return &models.SubmissionRequest{
		Category:  "Rubbish",
		Latitude:  float(9.40),
		Longitude: float(-0.84),
		Location:  "Market",
	}
}

func (f *fixture) submit(t *testing.T) *models.Report {
	t.Helper()
	r, err := f.svc.Submit(context.Background(), marketSubmission(), nil)
	require.NoError(t, err)
	return r
}

func TestSubmitCreatesSubmittedReport(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	assert.Equal(t, models.StatusSubmitted, r.Status)
	assert.Equal(t, models.TypeRubbish, r.Type)
	assert.Equal(t, models.SeverityMedium, r.Severity)
	assert.Nil(t, r.ResolvedAt)
	assert.Nil(t, r.ResponseTime)
	assert.Nil(t, r.AssignedTo)
}

func TestSubmitUnknownCategoryFallsBackToRubbish(t *testing.T) {
	f := newFixture()
	req := marketSubmission()
	req.Category = "Unknown Thing"

	r, err := f.svc.Submit(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TypeRubbish, r.Type)
}

func TestSubmitMapsCategoryAndKeepsMediaOrder(t *testing.T) {
	f := newFixture()
	req := marketSubmission()
	req.Category = "Suspicious Activity"
	req.Severity = models.SeverityCritical
	req.Description = "Someone loitering by the ATM"
	media := []string{"/uploads/1.jpg", "/uploads/2.mp4", "/uploads/3.png"}

	r, err := f.svc.Submit(context.Background(), req, media)
	require.NoError(t, err)
	assert.Equal(t, models.TypeSuspiciousActivity, r.Type)
	assert.Equal(t, models.SeverityCritical, r.Severity)
	assert.Equal(t, media, r.MediaURLs)
	require.NotNil(t, r.Description)
	assert.Equal(t, "Someone loitering by the ATM", *r.Description)
}

func TestSubmitValidation(t *testing.T) {
	cases := map[string]func(*models.SubmissionRequest){
		"category":  func(r *models.SubmissionRequest) { r.Category = "" },
		"latitude":  func(r *models.SubmissionRequest) { r.Latitude = nil },
		"longitude": func(r *models.SubmissionRequest) { r.Longitude = nil },
		"location":  func(r *models.SubmissionRequest) { r.Location = "" },
		"severity":  func(r *models.SubmissionRequest) { r.Severity = "URGENT" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			f := newFixture()
			req := marketSubmission()
			mutate(req)

			_, err := f.svc.Submit(context.Background(), req, nil)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
			assert.Empty(t, f.events.sent)
		})
	}
}

func TestSubmitRejectsOutOfRangeCoordinates(t *testing.T) {
	f := newFixture()
	req := marketSubmission()
	req.Latitude = float(91)

	_, err := f.svc.Submit(context.Background(), req, nil)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "latitude", verr.Field)
}

func TestSubmitNotifiesPoliceOnly(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	assert.Empty(t, f.events.to(events.Public))
	police := f.events.to(events.Police)
	require.Len(t, police, 1)
	assert.Equal(t, events.ReportNew, police[0].Name)
	payload := police[0].Data.(events.NewReportPayload)
	assert.Equal(t, r.ID, payload.ID)
	assert.Equal(t, "Market", payload.Location)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	_, err := f.svc.Transition(context.Background(), r.ID, "CLOSED", officerA, nil)
	var invalid *apperr.InvalidStatusError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "CLOSED", invalid.Status)

	stored, _ := f.repo.FindByID(context.Background(), r.ID)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
	assert.Nil(t, stored.AssignedTo)
}

func TestTransitionUnknownReport(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Transition(context.Background(), "missing", models.StatusReviewing, officerA, nil)
	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestTransitionRequiresOfficer(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	_, err := f.svc.Transition(context.Background(), r.ID, models.StatusReviewing, nil, nil)
	var unauthorized *apperr.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

func TestTransitionClaimsAndReplacesNotes(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	ctx := context.Background()

	f.clock.Advance(5 * time.Minute)
	updated, err := f.svc.Transition(ctx, r.ID, models.StatusReviewing, officerA, str("first look"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, updated.Status)
	assert.Equal(t, "TPD-001", *updated.AssignedTo)
	assert.Equal(t, "first look", *updated.InternalNotes)
	assert.Equal(t, r.CreatedAt.Add(5*time.Minute), updated.UpdatedAt)

	updated, err = f.svc.Transition(ctx, r.ID, models.StatusInProgress, officerB, str("units dispatched"))
	require.NoError(t, err)
	assert.Equal(t, "TPD-002", *updated.AssignedTo)
	assert.Equal(t, "units dispatched", *updated.InternalNotes)

	// Absent or empty notes leave the previous notes in place.
	updated, err = f.svc.Transition(ctx, r.ID, models.StatusInProgress, officerA, str(""))
	require.NoError(t, err)
	assert.Equal(t, "units dispatched", *updated.InternalNotes)
	assert.Equal(t, "TPD-001", *updated.AssignedTo)

	updated, err = f.svc.Transition(ctx, r.ID, models.StatusInProgress, officerA, nil)
	require.NoError(t, err)
	assert.Equal(t, "units dispatched", *updated.InternalNotes)
}

func TestTransitionEmitsUpdatedToPolice(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	_, err := f.svc.Transition(context.Background(), r.ID, models.StatusReviewing, officerA, nil)
	require.NoError(t, err)

	police := f.events.to(events.Police)
	require.Len(t, police, 2)
	assert.Equal(t, events.ReportUpdated, police[1].Name)
	payload := police[1].Data.(events.UpdatedPayload)
	assert.Equal(t, r.ID, payload.ID)
	assert.Equal(t, models.StatusReviewing, payload.Status)
	assert.Equal(t, "TPD-001", *payload.AssignedTo)
	assert.Empty(t, f.events.to(events.Public))
}

func TestResolveStampsMetricsOnce(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	ctx := context.Background()

	f.clock.Advance(95*time.Minute + 59*time.Second)
	first, err := f.svc.Transition(ctx, r.ID, models.StatusResolved, officerA, nil)
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)
	require.NotNil(t, first.ResponseTime)
	assert.Equal(t, f.clock.Now(), *first.ResolvedAt)
	assert.Equal(t, 95, *first.ResponseTime)
	assert.Equal(t, ResponseMinutes(first.CreatedAt, *first.ResolvedAt), *first.ResponseTime)

	f.clock.Advance(3 * time.Hour)
	second, err := f.svc.Transition(ctx, r.ID, models.StatusResolved, officerB, nil)
	require.NoError(t, err)
	assert.Equal(t, *first.ResolvedAt, *second.ResolvedAt)
	assert.Equal(t, *first.ResponseTime, *second.ResponseTime)
	assert.Equal(t, "TPD-002", *second.AssignedTo)

	public := f.events.to(events.Public)
	require.Len(t, public, 2)
	assert.Equal(t, events.ResolvedPayload{ID: r.AnonymousID, Location: "Market"}, public[0].Data)
}

func TestTransitionOutOfResolvedIsAllowed(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	resolved, err := f.svc.Transition(ctx, r.ID, models.StatusResolved, officerA, nil)
	require.NoError(t, err)

	reopened, err := f.svc.Transition(ctx, r.ID, models.StatusReviewing, officerA, str("closed by mistake"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, reopened.Status)
	assert.Equal(t, resolved.ResolvedAt, reopened.ResolvedAt)
	assert.Equal(t, resolved.ResponseTime, reopened.ResponseTime)

	// Resolving again keeps the first metrics.
	f.clock.Advance(time.Hour)
	again, err := f.svc.Transition(ctx, r.ID, models.StatusResolved, officerA, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, *again.ResponseTime)
}

func TestRejectFromAnyActiveStatus(t *testing.T) {
	for _, from := range models.ActiveStatuses() {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture()
			r := f.submit(t)
			ctx := context.Background()
			if from != models.StatusSubmitted {
				_, err := f.svc.Transition(ctx, r.ID, from, officerA, nil)
				require.NoError(t, err)
			}
			rejected, err := f.svc.Transition(ctx, r.ID, models.StatusRejected, officerA, nil)
			require.NoError(t, err)
			assert.Equal(t, models.StatusRejected, rejected.Status)
			assert.Nil(t, rejected.ResolvedAt)
			assert.Empty(t, f.events.to(events.Public))
		})
	}
}

func TestTransitionByAnonymousID(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	updated, err := f.svc.Transition(context.Background(), r.AnonymousID, models.StatusReviewing, officerA, nil)
	require.NoError(t, err)
	assert.Equal(t, r.ID, updated.ID)
}

func TestTransitionRecordsActivity(t *testing.T) {
	f := newFixture()
	r := f.submit(t)

	_, err := f.svc.Transition(context.Background(), r.ID, models.StatusReviewing, officerA, str("on it"))
	require.NoError(t, err)

	require.Len(t, f.activity.entries, 1)
	e := f.activity.entries[0]
	assert.Equal(t, r.ID, e.ReportID)
	assert.Equal(t, "TPD-001", e.Officer)
	assert.Equal(t, models.StatusSubmitted, e.FromStatus)
	assert.Equal(t, models.StatusReviewing, e.ToStatus)
	assert.True(t, e.NotesChanged)
}

func TestTransitionSurvivesActivityFailure(t *testing.T) {
	f := newFixture()
	f.activity.err = errors.New("audit table locked")
	r := f.submit(t)

	updated, err := f.svc.Transition(context.Background(), r.ID, models.StatusReviewing, officerA, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, updated.Status)
}

func TestConcurrentTransitionsLastWriteWins(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, officer := range []*models.OfficerIdentity{officerA, officerB} {
		wg.Add(1)
		go func(o *models.OfficerIdentity) {
			defer wg.Done()
			_, err := f.svc.Transition(ctx, r.ID, models.StatusInProgress, o, str("claimed by "+o.BadgeID))
			errs <- err
		}(officer)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := f.repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, final.Status)
	require.NotNil(t, final.AssignedTo)
	assert.Contains(t, []string{"TPD-001", "TPD-002"}, *final.AssignedTo)
	assert.Equal(t, "claimed by "+*final.AssignedTo, *final.InternalNotes)
}

// staleRepo answers FindByID from a snapshot, as a transition that read the
// report just before another officer resolved it would see.
type staleRepo struct {
	*memRepo
	snapshot *models.Report
}

func (s *staleRepo) FindByID(context.Context, string) (*models.Report, error) {
	cp := *s.snapshot
	return &cp, nil
}

func TestRacingResolveKeepsFirstMetrics(t *testing.T) {
	f := newFixture()
	r := f.submit(t)
	ctx := context.Background()

	before, err := f.repo.FindByID(ctx, r.ID)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	first, err := f.svc.Transition(ctx, r.ID, models.StatusResolved, officerA, nil)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	late := NewReportService(&staleRepo{memRepo: f.repo, snapshot: before}, f.events, f.activity, zap.NewNop().Sugar())
	late.now = f.clock.Now
	second, err := late.Transition(ctx, r.ID, models.StatusResolved, officerB, nil)
	require.NoError(t, err)

	assert.Equal(t, *first.ResolvedAt, *second.ResolvedAt)
	assert.Equal(t, 20, *second.ResponseTime)
	assert.Equal(t, "TPD-002", *second.AssignedTo)
}

func TestResponseMinutes(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, ResponseMinutes(created, created.Add(59*time.Second)))
	assert.Equal(t, 1, ResponseMinutes(created, created.Add(60*time.Second)))
	assert.Equal(t, 1440, ResponseMinutes(created, created.Add(24*time.Hour+30*time.Second)))
}
