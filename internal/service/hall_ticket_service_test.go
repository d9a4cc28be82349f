package service

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
)

type mockTicketRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.HallTicket
	byPair  map[string]string
	exams   *mockExamRepo
	nextID  int
	upserts int
}

func newMockTicketRepo(exams *mockExamRepo) *mockTicketRepo {
	return &mockTicketRepo{byID: map[string]*models.HallTicket{}, byPair: map[string]string{}, exams: exams}
}

func (m *mockTicketRepo) Upsert(ctx context.Context, ticket *models.HallTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	key := ticket.StudentID + "|" + ticket.ExamID
	if id, ok := m.byPair[key]; ok {
		ticket.ID = id
		ticket.CreatedAt = m.byID[id].CreatedAt
	} else {
		m.nextID++
		ticket.ID = "ticket-" + strconv.Itoa(m.nextID)
		ticket.CreatedAt = time.Now()
		m.byPair[key] = ticket.ID
	}
	cp := *ticket
	m.byID[ticket.ID] = &cp
	return nil
}

func (m *mockTicketRepo) FindByID(ctx context.Context, id string) (*models.HallTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTicketRepo) UpdateDecision(ctx context.Context, id string, decision models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Decision = decision
	return nil
}

func (m *mockTicketRepo) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = models.TicketStatusRevoked
	t.Active = false
	return nil
}

func (m *mockTicketRepo) visible(studentID string) []models.HallTicketDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HallTicketDetail
	for _, t := range m.byID {
		if t.StudentID != studentID || !t.Active || t.Decision.Status != models.ApprovalApproved {
			continue
		}
		exam, err := m.exams.FindByID(context.Background(), t.ExamID)
		if err != nil || !exam.Active {
			continue
		}
		out = append(out, models.HallTicketDetail{HallTicket: *t, ExamTitle: exam.Title})
	}
	return out
}

func (m *mockTicketRepo) ListVisibleForStudent(ctx context.Context, studentID string) ([]models.HallTicketDetail, error) {
	return m.visible(studentID), nil
}

func (m *mockTicketRepo) FindVisibleForStudent(ctx context.Context, studentID, examID string) (*models.HallTicketDetail, error) {
	for _, t := range m.visible(studentID) {
		if t.ExamID == examID {
			cp := t
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTicketRepo) List(ctx context.Context, filter models.HallTicketFilter) ([]models.HallTicketDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HallTicketDetail
	for _, t := range m.byID {
		if filter.ApprovalStatus != "" && t.Decision.Status != filter.ApprovalStatus {
			continue
		}
		if filter.ExamID != "" && t.ExamID != filter.ExamID {
			continue
		}
		out = append(out, models.HallTicketDetail{HallTicket: *t})
	}
	return out, len(out), nil
}

func (m *mockTicketRepo) ListActiveByExam(ctx context.Context, examID string) ([]models.HallTicketDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HallTicketDetail
	for _, t := range m.byID {
		if t.ExamID == examID && t.Active {
			out = append(out, models.HallTicketDetail{HallTicket: *t})
		}
	}
	return out, nil
}

type mockStudentRepo struct {
	items map[string]models.Student
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.items[id]; ok {
		cp := s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type sentNotification struct {
	UserID  string
	Message string
	Kind    models.NotificationKind
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID, message string, kind models.NotificationKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{UserID: userID, Message: message, Kind: kind})
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type ticketFixture struct {
	svc      *HallTicketService
	tickets  *mockTicketRepo
	exams    *mockExamRepo
	notifier *recordingNotifier
	audit    *mockAuditLogger
}

var (
	teacherActor = models.Actor{ID: "teacher-1", Role: models.RoleTeacher}
	studentActor = models.Actor{ID: "student-1", Role: models.RoleStudent, Semester: 3}
)

func newTicketFixture() *ticketFixture {
	exams := newMockExamRepo()
	physics := examFixture("exam-e", "Main Hall", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "10:00", "12:00")
	physics.Title = "Physics Midterm"
	physics.Semester = 3
	exams.put(physics)
	open := examFixture("exam-open", "Main Hall", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), "10:00", "12:00")
	exams.put(open)

	students := &mockStudentRepo{items: map[string]models.Student{
		"student-1": {ID: "student-1", FullName: "Ana", RollNumber: "R001", Semester: 3},
		"student-2": {ID: "student-2", FullName: "Budi", RollNumber: "R002", Semester: 3},
		"student-5": {ID: "student-5", FullName: "Citra", RollNumber: "R005", Semester: 5},
	}}
	tickets := newMockTicketRepo(exams)
	notifier := &recordingNotifier{}
	audit := &mockAuditLogger{}
	svc := NewHallTicketService(HallTicketServiceParams{
		Tickets:  tickets,
		Students: students,
		Exams:    exams,
		Notifier: notifier,
		Audit:    audit,
	})
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC) }
	return &ticketFixture{svc: svc, tickets: tickets, exams: exams, notifier: notifier, audit: audit}
}

func issueReq(studentID, examID string) dto.IssueHallTicketRequest {
	return dto.IssueHallTicketRequest{StudentID: studentID, ExamID: examID, Hall: "Main Hall"}
}

func TestHallTicketTeacherIssueStaysHiddenUntilApproved(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	ticket, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), teacherActor)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, ticket.Decision.Status)
	assert.Nil(t, ticket.Decision.By)
	assert.Equal(t, 0, f.notifier.count())

	_, err = f.svc.MyTicket(ctx, "student-1", "exam-e")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	decided, err := f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "approved"}, adminActor)
	require.NoError(t, err)
	require.NotNil(t, decided.Decision.By)
	assert.Equal(t, adminActor.ID, *decided.Decision.By)

	visible, err := f.svc.MyTicket(ctx, "student-1", "exam-e")
	require.NoError(t, err)
	assert.Equal(t, "Main Hall", visible.Hall)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "student-1", f.notifier.sent[0].UserID)
	assert.Equal(t, "Your Hall Ticket for Physics Midterm has been APPROVED. Seat: TBA, Hall: Main Hall.", f.notifier.sent[0].Message)
}

func TestHallTicketAdminIssueAutoApprovesAndNotifiesOnce(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	seat := "A1"
	req := issueReq("student-2", "exam-e")
	req.SeatNumber = &seat
	ticket, err := f.svc.Issue(ctx, req, adminActor)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, ticket.Decision.Status)
	require.NotNil(t, ticket.Decision.At)
	assert.Equal(t, f.svc.now().UTC(), *ticket.Decision.At)
	require.NoError(t, ticket.Decision.Validate())

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "Hall Ticket issued for Physics Midterm. Seat: A1, Hall: Main Hall.", f.notifier.sent[0].Message)
	assert.Equal(t, models.NotificationSuccess, f.notifier.sent[0].Kind)

	mine, err := f.svc.MyTickets(ctx, "student-2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestHallTicketReissueUpdatesInPlace(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	notes := "bring ID"
	req := issueReq("student-1", "exam-e")
	req.Notes = &notes
	first, err := f.svc.Issue(ctx, req, adminActor)
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, first.ID, adminActor))

	second, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), teacherActor)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.tickets.byID, 1)
	stored, err := f.tickets.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Notes)
	assert.True(t, stored.Active)
	assert.Equal(t, models.TicketStatusIssued, stored.Status)
	assert.Equal(t, models.ApprovalPending, stored.Decision.Status)
}

func TestHallTicketIssueFailuresWriteNothing(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), studentActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = f.svc.Issue(ctx, dto.IssueHallTicketRequest{StudentID: "student-1", ExamID: "exam-e"}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.svc.Issue(ctx, issueReq("ghost", "exam-e"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = f.svc.Issue(ctx, issueReq("student-1", "ghost"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = f.svc.Issue(ctx, issueReq("student-5", "exam-e"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSemesterMismatch.Code))

	require.NoError(t, f.exams.Deactivate(ctx, "exam-open"))
	_, err = f.svc.Issue(ctx, issueReq("student-5", "exam-open"), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	assert.Equal(t, 0, f.tickets.upserts)
	assert.Equal(t, 0, f.notifier.count())
	assert.Empty(t, f.audit.actions())
}

func TestHallTicketRejectHidesAndDoesNotNotify(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	ticket, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), adminActor)
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.count())

	rejected, err := f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "rejected"}, adminActor)
	require.NoError(t, err)
	require.NotNil(t, rejected.Decision.Reason)
	assert.Equal(t, models.DefaultRejectionReason, *rejected.Decision.Reason)
	assert.Equal(t, 1, f.notifier.count())

	mine, err := f.svc.MyTickets(ctx, "student-1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	approved, err := f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "approved"}, adminActor)
	require.NoError(t, err)
	assert.Nil(t, approved.Decision.Reason)
	assert.Equal(t, 2, f.notifier.count())
}

func TestHallTicketDecidePermissions(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	ticket, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), teacherActor)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "approved"}, teacherActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "maybe"}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.svc.Decide(ctx, "ghost", dto.DecideHallTicketRequest{Status: "approved"}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	assert.True(t, appErrors.HasCode(f.svc.Revoke(ctx, ticket.ID, teacherActor), appErrors.ErrForbidden.Code))
	require.NoError(t, f.svc.Revoke(ctx, ticket.ID, adminActor))

	_, err = f.svc.Decide(ctx, ticket.ID, dto.DecideHallTicketRequest{Status: "approved"}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Equal(t, 0, f.notifier.count())
}

func TestHallTicketVisibilityGate(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	pending, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), teacherActor)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, issueReq("student-1", "exam-open"), teacherActor)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, pending.ID, dto.DecideHallTicketRequest{Status: "rejected", RejectionReason: "fees unpaid"}, adminActor)
	require.NoError(t, err)

	mine, err := f.svc.MyTickets(ctx, "student-1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	list, page, err := f.svc.ListPending(ctx, dto.HallTicketQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, page.TotalCount)

	all, _, err := f.svc.ListAll(ctx, dto.HallTicketQuery{ExamID: "exam-e"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, _, err = f.svc.ListAll(ctx, dto.HallTicketQuery{Status: "archived"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestHallTicketHiddenWhenExamDeleted(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, issueReq("student-1", "exam-e"), adminActor)
	require.NoError(t, err)
	require.NoError(t, f.exams.Deactivate(ctx, "exam-e"))

	mine, err := f.svc.MyTickets(ctx, "student-1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	byExam, err := f.svc.ListByExam(ctx, "exam-e")
	require.NoError(t, err)
	assert.Len(t, byExam, 1)
}
