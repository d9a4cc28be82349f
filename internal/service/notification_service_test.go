package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/jobs"
	"github.com/noah-isme/exam-hall-api/pkg/notify"
)

type memoryNotificationStore struct {
	mu    sync.Mutex
	items map[string]models.Notification
}

func newMemoryNotificationStore() *memoryNotificationStore {
	return &memoryNotificationStore{items: map[string]models.Notification{}}
}

func (m *memoryNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[n.ID]; !ok {
		m.items[n.ID] = *n
	}
	return nil
}

func (m *memoryNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	n.Read = true
	m.items[id] = n
	return nil
}

func (m *memoryNotificationStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type stubPublisher struct {
	mu       sync.Mutex
	failures int
	sent     []notify.Message
}

func (p *stubPublisher) Publish(ctx context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fullQueue struct{}

func (fullQueue) Enqueue(jobs.Job) error { return jobs.ErrQueueFull }

func TestNotificationDeliveredThroughQueue(t *testing.T) {
	store := newMemoryNotificationStore()
	publisher := &stubPublisher{failures: 1}
	worker := NewNotificationWorker(store, publisher, NewMetricsService(), nil)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: 10 * time.Millisecond, OnDiscard: worker.Discard})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	svc := NewNotificationService(store, queue, NewMetricsService(), nil)
	svc.Notify(ctx, "student-1", "Hall Ticket issued", models.NotificationSuccess)

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.count())
	assert.Equal(t, "student-1", publisher.sent[0].UserID)
	assert.Equal(t, "success", publisher.sent[0].Kind)

	items, err := svc.ListMine(ctx, "student-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, svc.MarkRead(ctx, items[0].ID, "student-1"))
	assert.Error(t, svc.MarkRead(ctx, items[0].ID, "student-2"))
}

func TestNotificationNotifyNeverFailsCaller(t *testing.T) {
	svc := NewNotificationService(newMemoryNotificationStore(), fullQueue{}, nil, nil)
	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), "student-1", "hello", "")
	})

	var nilSvc *NotificationService
	assert.NotPanics(t, func() {
		nilSvc.Notify(context.Background(), "student-1", "hello", "")
	})
}

func TestNotificationWorkerIgnoresForeignPayload(t *testing.T) {
	worker := NewNotificationWorker(newMemoryNotificationStore(), nil, nil, nil)
	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "x", Payload: "not a notification"}))
}

func TestNotificationWorkerReturnsPublishError(t *testing.T) {
	store := newMemoryNotificationStore()
	worker := NewNotificationWorker(store, &stubPublisher{failures: 1}, nil, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: "n-1", Payload: models.Notification{ID: "n-1", UserID: "u"}})
	assert.Error(t, err)
	assert.Equal(t, 1, store.count())
}

func TestNotificationWorkerDiscardCountsFailure(t *testing.T) {
	metrics := NewMetricsService()
	worker := NewNotificationWorker(newMemoryNotificationStore(), nil, metrics, nil)
	worker.Discard(jobs.Job{ID: "n-9", Attempt: 3}, errors.New("broker down"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues("failed")))
}
