package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/jobs"
	"github.com/noah-isme/exam-hall-api/pkg/notify"
)

// NotificationJobType tags queue jobs carrying a models.Notification payload.
const NotificationJobType = "notification"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Notifier is the fire-and-forget sink used by the ticket workflow.
type Notifier interface {
	Notify(ctx context.Context, userID, message string, kind models.NotificationKind)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string, models.NotificationKind) {}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationService enqueues notifications and serves the user's inbox.
type NotificationService struct {
	repo    notificationStore
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationStore, queue jobDispatcher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, metrics: metrics, logger: logger, now: time.Now}
}

// Notify enqueues a notification. It never blocks and never returns an error to the caller.
func (s *NotificationService) Notify(ctx context.Context, userID, message string, kind models.NotificationKind) {
	if s == nil || s.queue == nil || userID == "" {
		return
	}
	if kind == "" {
		kind = models.NotificationInfo
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Kind:      kind,
		CreatedAt: s.now().UTC(),
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: NotificationJobType, Payload: n}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification dropped", zap.String("user_id", userID), zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	s.metrics.RecordNotification("enqueued")
}

// ListMine returns the caller's most recent notifications.
func (s *NotificationService) ListMine(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// NotificationWorker persists queued notifications and forwards them to the broker.
type NotificationWorker struct {
	repo      notificationStore
	publisher notify.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationWorker constructs a worker. A nil publisher only persists.
func NewNotificationWorker(repo notificationStore, publisher notify.Publisher, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &NotificationWorker{repo: repo, publisher: publisher, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Persisting is idempotent on the notification id, so retries are safe.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := w.deliver(ctx, n); err != nil {
		return err
	}
	w.metrics.RecordNotification("delivered")
	return nil
}

// Discard records a notification the queue gave up on.
func (w *NotificationWorker) Discard(job jobs.Job, err error) {
	w.metrics.RecordNotification("failed")
	w.logger.Warn("notification dropped",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}

func (w *NotificationWorker) deliver(ctx context.Context, n models.Notification) error {
	if err := w.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("persist notification %s: %w", n.ID, err)
	}
	msg := notify.Message{ID: n.ID, UserID: n.UserID, Message: n.Message, Kind: string(n.Kind), CreatedAt: n.CreatedAt}
	if err := w.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}
