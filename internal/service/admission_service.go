package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
)

// RejectReason classifies why a candidate registration was refused.
type RejectReason string

const (
	ReasonStudentDailyCapExceeded    RejectReason = "StudentDailyCapExceeded"
	ReasonInstructorDailyCapExceeded RejectReason = "InstructorDailyCapExceeded"
	ReasonClassDailyCapExceeded      RejectReason = "ClassDailyCapExceeded"
	ReasonOverlapConflict            RejectReason = "OverlapConflict"
)

// Candidate is a registration proposal under admission.
type Candidate struct {
	StudentID    string
	InstructorID string
	ClassID      string
	StartTime    time.Time
}

// Decision is the admission verdict. A rejection is a regular value, not an
// error: storage faults are the only error path.
type Decision struct {
	Admitted bool
	Reason   RejectReason
	Detail   string
	// ConflictID identifies the registration that triggered an
	// OverlapConflict, when one did.
	ConflictID string
}

type admissionStore interface {
	CountByStudentSince(ctx context.Context, studentID string, since time.Time) (int, error)
	CountByInstructorSince(ctx context.Context, instructorID string, since time.Time) (int, error)
	CountByClassSince(ctx context.Context, classID string, since time.Time) (int, error)
	FindOverlapping(ctx context.Context, studentID, instructorID string, windowStart, windowEnd time.Time) (*models.Registration, error)
}

// AdmissionService applies the daily caps and the pairwise overlap rule.
// Checks run in a fixed order and the first failing check wins. All limits
// come from the injected configuration, never from ambient state.
type AdmissionService struct {
	store  admissionStore
	cfg    config.SchedulingConfig
	logger *zap.Logger
}

// NewAdmissionService constructs the admission controller.
func NewAdmissionService(store admissionStore, cfg config.SchedulingConfig, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{store: store, cfg: cfg, logger: logger}
}

// Admit decides whether the candidate may be scheduled as of the given
// instant. Check order: student daily cap, instructor daily cap, class-type
// daily cap, time overlap.
func (s *AdmissionService) Admit(ctx context.Context, candidate Candidate, asOf time.Time) (Decision, error) {
	dayStart := startOfDay(asOf)

	count, err := s.store.CountByStudentSince(ctx, candidate.StudentID, dayStart)
	if err != nil {
		return Decision{}, err
	}
	if count >= s.cfg.StudentDailyCap {
		return reject(ReasonStudentDailyCapExceeded,
			fmt.Sprintf("student %s already has %d registrations today (cap %d)", candidate.StudentID, count, s.cfg.StudentDailyCap)), nil
	}

	count, err = s.store.CountByInstructorSince(ctx, candidate.InstructorID, dayStart)
	if err != nil {
		return Decision{}, err
	}
	if count >= s.cfg.InstructorDailyCap {
		return reject(ReasonInstructorDailyCapExceeded,
			fmt.Sprintf("instructor %s already has %d registrations today (cap %d)", candidate.InstructorID, count, s.cfg.InstructorDailyCap)), nil
	}

	count, err = s.store.CountByClassSince(ctx, candidate.ClassID, dayStart)
	if err != nil {
		return Decision{}, err
	}
	if count >= s.cfg.ClassDailyCap {
		return reject(ReasonClassDailyCapExceeded,
			fmt.Sprintf("class %s already has %d registrations today (cap %d)", candidate.ClassID, count, s.cfg.ClassDailyCap)), nil
	}

	// The overlap window is the configured duration, not the stored
	// per-registration one.
	window := time.Duration(s.cfg.OverlapWindowMinutes) * time.Minute
	conflict, err := s.store.FindOverlapping(ctx, candidate.StudentID, candidate.InstructorID, candidate.StartTime, candidate.StartTime.Add(window))
	if err != nil {
		return Decision{}, err
	}
	if conflict != nil {
		d := reject(ReasonOverlapConflict,
			fmt.Sprintf("conflicts with registration %s starting %s", conflict.ID, conflict.StartTime.Format(time.RFC3339)))
		d.ConflictID = conflict.ID
		return d, nil
	}

	return Decision{Admitted: true}, nil
}

func reject(reason RejectReason, detail string) Decision {
	return Decision{Admitted: false, Reason: reason, Detail: detail}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
