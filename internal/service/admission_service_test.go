package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
)

type mockAdmissionStore struct {
	studentCounts    map[string]int
	instructorCounts map[string]int
	classCounts      map[string]int
	conflict         *models.Registration
	countErr         error
	overlapErr       error

	calls     []string
	sinceSeen time.Time
}

func (m *mockAdmissionStore) CountByStudentSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	m.calls = append(m.calls, "student")
	m.sinceSeen = since
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.studentCounts[studentID], nil
}

func (m *mockAdmissionStore) CountByInstructorSince(ctx context.Context, instructorID string, since time.Time) (int, error) {
	m.calls = append(m.calls, "instructor")
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.instructorCounts[instructorID], nil
}

func (m *mockAdmissionStore) CountByClassSince(ctx context.Context, classID string, since time.Time) (int, error) {
	m.calls = append(m.calls, "class")
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.classCounts[classID], nil
}

func (m *mockAdmissionStore) FindOverlapping(ctx context.Context, studentID, instructorID string, windowStart, windowEnd time.Time) (*models.Registration, error) {
	m.calls = append(m.calls, "overlap")
	if m.overlapErr != nil {
		return nil, m.overlapErr
	}
	return m.conflict, nil
}

func schedulingConfig() config.SchedulingConfig {
	return config.SchedulingConfig{
		OverlapWindowMinutes:  45,
		StoredDurationMinutes: 60,
		StudentDailyCap:       5,
		InstructorDailyCap:    5,
		ClassDailyCap:         5,
	}
}

func candidateAt(start time.Time) Candidate {
	return Candidate{StudentID: "S1", InstructorID: "I1", ClassID: "C1", StartTime: start}
}

func TestAdmissionServiceAdmits(t *testing.T) {
	store := &mockAdmissionStore{}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, []string{"student", "instructor", "class", "overlap"}, store.calls)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), store.sinceSeen)
}

func TestAdmissionServiceStudentCapShortCircuits(t *testing.T) {
	store := &mockAdmissionStore{studentCounts: map[string]int{"S1": 5}}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, ReasonStudentDailyCapExceeded, decision.Reason)
	assert.Contains(t, decision.Detail, "student S1")
	// First failing check wins: nothing else is queried.
	assert.Equal(t, []string{"student"}, store.calls)
}

func TestAdmissionServiceInstructorCap(t *testing.T) {
	store := &mockAdmissionStore{instructorCounts: map[string]int{"I1": 7}}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, ReasonInstructorDailyCapExceeded, decision.Reason)
	assert.Equal(t, []string{"student", "instructor"}, store.calls)
}

func TestAdmissionServiceClassCap(t *testing.T) {
	store := &mockAdmissionStore{classCounts: map[string]int{"C1": 5}}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, ReasonClassDailyCapExceeded, decision.Reason)
	assert.Equal(t, []string{"student", "instructor", "class"}, store.calls)
}

func TestAdmissionServiceOverlapConflict(t *testing.T) {
	conflict := &models.Registration{
		ID:        "11111111-1111-1111-1111-111111111111",
		StartTime: time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC),
	}
	store := &mockAdmissionStore{conflict: conflict}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, ReasonOverlapConflict, decision.Reason)
	assert.Equal(t, conflict.ID, decision.ConflictID)
	assert.Contains(t, decision.Detail, conflict.ID)
}

func TestAdmissionServiceCountAtCapBoundary(t *testing.T) {
	// count == cap-1 still admits; count == cap rejects.
	store := &mockAdmissionStore{studentCounts: map[string]int{"S1": 4}}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
}

func TestAdmissionServiceStoreErrorPropagates(t *testing.T) {
	store := &mockAdmissionStore{countErr: errors.New("connection refused")}
	svc := NewAdmissionService(store, schedulingConfig(), zap.NewNop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Admit(context.Background(), candidateAt(start), start)
	require.Error(t, err)
}
