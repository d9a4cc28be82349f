package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"partial overlap", 660, 780, 600, 720, true},
		{"contained", 630, 690, 600, 720, true},
		{"containing", 540, 800, 600, 720, true},
		{"identical", 600, 720, 600, 720, true},
		{"touching after", 720, 840, 600, 720, false},
		{"touching before", 480, 600, 600, 720, false},
		{"disjoint", 800, 900, 600, 720, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
		})
	}
}

func TestConflictDetectorReturnsBlockingExam(t *testing.T) {
	repo := newMockExamRepo()
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	repo.put(examFixture("exam-a", "H1", date, "10:00", "12:00"))

	detector := NewConflictDetector(repo, nil)
	blocking, err := detector.HasConflict(context.Background(), "H1", date, "11:00", "13:00", "")
	require.NoError(t, err)
	require.NotNil(t, blocking)
	assert.Equal(t, "exam-a", blocking.ID)

	blocking, err = detector.HasConflict(context.Background(), "H1", date, "12:00", "14:00", "")
	require.NoError(t, err)
	assert.Nil(t, blocking)

	blocking, err = detector.HasConflict(context.Background(), "H1", date, "10:30", "11:30", "exam-a")
	require.NoError(t, err)
	assert.Nil(t, blocking)
}

func TestConflictDetectorRejectsInvertedRange(t *testing.T) {
	detector := NewConflictDetector(newMockExamRepo(), nil)
	_, err := detector.HasConflict(context.Background(), "H1", time.Now(), "12:00", "10:00", "")
	assert.Error(t, err)
}

func TestConflictDetectorPropagatesStoreError(t *testing.T) {
	repo := newMockExamRepo()
	repo.bookedErr = errors.New("db down")
	detector := NewConflictDetector(repo, nil)
	_, err := detector.HasConflict(context.Background(), "H1", time.Now(), "10:00", "11:00", "")
	assert.ErrorIs(t, err, repo.bookedErr)
}
