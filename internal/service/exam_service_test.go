package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/clock"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/lock"
)

type mockExamRepo struct {
	mu          sync.Mutex
	items       map[string]*models.Exam
	bookedCalls int
	bookedErr   error
	lastFilter  models.ExamFilter
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{items: make(map[string]*models.Exam)}
}

func (m *mockExamRepo) put(exam models.Exam) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := exam
	m.items[exam.ID] = &cp
}

func (m *mockExamRepo) FindBooked(ctx context.Context, hall string, date time.Time, excludeID string) ([]models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookedCalls++
	if m.bookedErr != nil {
		return nil, m.bookedErr
	}
	var out []models.Exam
	for _, e := range m.items {
		if e.Hall == hall && clock.Day(e.Date).Equal(clock.Day(date)) && e.Booked() && e.ID != excludeID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []models.Exam
	for _, e := range m.items {
		if !e.Active {
			continue
		}
		if filter.Semester > 0 && e.Semester != filter.Semester {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	m.put(*exam)
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[exam.ID]
	if !ok || !current.Active {
		return sql.ErrNoRows
	}
	cp := *exam
	m.items[exam.ID] = &cp
	return nil
}

func (m *mockExamRepo) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || !e.Active {
		return sql.ErrNoRows
	}
	e.Active = false
	return nil
}

func (m *mockExamRepo) active() []models.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Exam
	for _, e := range m.items {
		if e.Active {
			out = append(out, *e)
		}
	}
	return out
}

type mockHallResolver struct {
	halls map[string]models.Hall
}

func (m *mockHallResolver) ResolveActive(ctx context.Context, name string) (*models.Hall, error) {
	for _, h := range m.halls {
		if strings.EqualFold(h.Name, strings.TrimSpace(name)) && h.Active {
			cp := h
			return &cp, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
}

type mockAuditLogger struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditLogger) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *log)
	return nil
}

func (m *mockAuditLogger) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type refusingLocker struct{}

func (refusingLocker) Acquire(context.Context, string) (lock.Release, error) {
	return nil, lock.ErrNotAcquired
}

func examFixture(id, hall string, date time.Time, start, end string) models.Exam {
	return models.Exam{
		ID:         id,
		Title:      "Exam " + id,
		Course:     "Physics",
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		TotalMarks: 100,
		Hall:       hall,
		Status:     models.ExamStatusUpcoming,
		Active:     true,
	}
}

func newExamServiceForTest(repo *mockExamRepo, locker lock.Locker) (*ExamService, *mockAuditLogger) {
	audit := &mockAuditLogger{}
	halls := &mockHallResolver{halls: map[string]models.Hall{
		"h1": {ID: "h1", Name: "H1", Capacity: 30, Active: true},
		"h2": {ID: "h2", Name: "H2", Capacity: 30, Active: true},
		"h3": {ID: "h3", Name: "Closed", Capacity: 30, Active: false},
	}}
	svc := NewExamService(ExamServiceParams{Repo: repo, Halls: halls, Locker: locker, Audit: audit})
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC) }
	return svc, audit
}

func createReq(hall, date, start, end string) dto.CreateExamRequest {
	return dto.CreateExamRequest{
		Title:      "Midterm",
		Course:     "Physics",
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		TotalMarks: 100,
		Hall:       hall,
	}
}

var adminActor = models.Actor{ID: "admin-1", Role: models.RoleAdmin}

func TestExamServiceCreateRejectsOverlap(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	examA, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)

	_, err = svc.Create(ctx, createReq("H1", "2025-01-10", "11:00", "13:00"), adminActor)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrHallConflict.Code))
	assert.Contains(t, err.Error(), "H1")
	assert.Contains(t, err.Error(), "2025-01-10")

	var conflict *models.HallConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, examA.ID, conflict.Blocking.ID)
	assert.Len(t, repo.active(), 1)
}

func TestExamServiceCreateAllowsTouchingBoundary(t *testing.T) {
	repo := newMockExamRepo()
	svc, audit := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)
	examC, err := svc.Create(ctx, createReq("H1", "2025-01-10", "12:00", "14:00"), adminActor)
	require.NoError(t, err)

	assert.Equal(t, 120, examC.DurationMinutes)
	assert.Equal(t, models.ExamStatusUpcoming, examC.Status)
	assert.Len(t, repo.active(), 2)
	assert.Equal(t, []string{models.AuditActionExamCreate, models.AuditActionExamCreate}, audit.actions())
}

func TestExamServiceCreateIgnoresOtherHallsDaysAndCompleted(t *testing.T) {
	repo := newMockExamRepo()
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	done := examFixture("done", "H1", date, "10:00", "12:00")
	done.Status = models.ExamStatusCompleted
	repo.put(done)
	gone := examFixture("gone", "H1", date, "10:00", "12:00")
	gone.Active = false
	repo.put(gone)
	repo.put(examFixture("other-hall", "H2", date, "10:00", "12:00"))
	repo.put(examFixture("other-day", "H1", date.AddDate(0, 0, 1), "10:00", "12:00"))

	svc, _ := newExamServiceForTest(repo, nil)
	_, err := svc.Create(context.Background(), createReq("H1", "2025-01-10", "10:30", "11:30"), adminActor)
	require.NoError(t, err)
}

func TestExamServiceCreateValidation(t *testing.T) {
	svc, _ := newExamServiceForTest(newMockExamRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("H1", "2025-01-10", "12:00", "10:00"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Create(ctx, createReq("H1", "10/01/2025", "10:00", "12:00"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Create(ctx, createReq("", "2025-01-10", "10:00", "12:00"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Create(ctx, createReq("Nowhere", "2025-01-10", "10:00", "12:00"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.Create(ctx, createReq("Closed", "2025-01-10", "10:00", "12:00"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestExamServiceUpdateSkipsCheckForMetadata(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	exam, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)
	callsBefore := repo.bookedCalls

	title := "Final"
	updated, err := svc.Update(ctx, exam.ID, dto.UpdateExamRequest{Title: &title}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, callsBefore, repo.bookedCalls)
}

func TestExamServiceUpdateRejectsMoveIntoBookedSlot(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)
	other, err := svc.Create(ctx, createReq("H2", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)

	hall := "H1"
	_, err = svc.Update(ctx, other.ID, dto.UpdateExamRequest{Hall: &hall}, adminActor)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrHallConflict.Code))

	stored, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "H2", stored.Hall)
}

func TestExamServiceUpdateOwnSlotDoesNotSelfConflict(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	exam, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)

	end := "12:30"
	updated, err := svc.Update(ctx, exam.ID, dto.UpdateExamRequest{EndTime: &end}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "12:30", updated.EndTime)
	assert.Equal(t, 150, updated.DurationMinutes)
}

func TestExamServiceUpdateCompletedReentersBooking(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	done := examFixture("done", "H1", date, "10:00", "12:00")
	done.Status = models.ExamStatusCompleted
	repo.put(done)
	_, err := svc.Create(ctx, createReq("H1", "2025-01-10", "11:00", "13:00"), adminActor)
	require.NoError(t, err)

	status := string(models.ExamStatusUpcoming)
	_, err = svc.Update(ctx, "done", dto.UpdateExamRequest{Status: &status}, adminActor)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrHallConflict.Code))
}

func TestExamServiceNoDoubleBookingAcrossSequence(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		start := 8*60 + (i*37)%480
		end := start + 30 + (i*13)%120
		if end >= clock.MinutesPerDay {
			end = clock.MinutesPerDay - 1
		}
		hall := []string{"H1", "H2"}[i%2]
		_, _ = svc.Create(ctx, createReq(hall, "2025-01-10", clock.FormatMinutes(start), clock.FormatMinutes(end)), adminActor)
	}

	exams := repo.active()
	for i := range exams {
		for j := i + 1; j < len(exams); j++ {
			a, b := exams[i], exams[j]
			if a.Hall != b.Hall {
				continue
			}
			aStart, aEnd, err := clock.Span(a.StartTime, a.EndTime)
			require.NoError(t, err)
			bStart, bEnd, err := clock.Span(b.StartTime, b.EndTime)
			require.NoError(t, err)
			assert.False(t, Overlaps(aStart, aEnd, bStart, bEnd), fmt.Sprintf("%s overlaps %s", a.ID, b.ID))
		}
	}
}

func TestExamServiceConcurrentCreatesWithLease(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, lock.NewLocal(lock.Options{Wait: time.Second}))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
		}()
	}
	wg.Wait()
	assert.Len(t, repo.active(), 1)
}

func TestExamServiceLeaseUnavailable(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, refusingLocker{})
	_, err := svc.Create(context.Background(), createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.Empty(t, repo.active())
}

func TestExamServiceDeleteIsSoft(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)
	ctx := context.Background()

	exam, err := svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, exam.ID, adminActor))

	stored, err := svc.Get(ctx, exam.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	err = svc.Delete(ctx, exam.ID, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	title := "x"
	_, err = svc.Update(ctx, exam.ID, dto.UpdateExamRequest{Title: &title}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.Create(ctx, createReq("H1", "2025-01-10", "10:00", "12:00"), adminActor)
	assert.NoError(t, err)
}

func TestExamServiceListScopesTeacherSemester(t *testing.T) {
	repo := newMockExamRepo()
	svc, _ := newExamServiceForTest(repo, nil)

	teacher := models.Actor{ID: "t-1", Role: models.RoleTeacher, Semester: 3}
	_, page, err := svc.List(context.Background(), dto.ExamQuery{Semester: 5, PageSize: 500}, teacher)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.lastFilter.Semester)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(context.Background(), dto.ExamQuery{Semester: 5}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.lastFilter.Semester)

	_, _, err = svc.List(context.Background(), dto.ExamQuery{Status: "cancelled"}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}
