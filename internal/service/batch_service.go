package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
	"github.com/noah-isme/class-scheduler-api/pkg/lock"
)

type entityResolver interface {
	ResolveStudent(ctx context.Context, studentID string) (*models.Student, bool, error)
	ResolveInstructor(ctx context.Context, instructorID string) (*models.Instructor, bool, error)
	ResolveClassType(ctx context.Context, classID string) (*models.ClassType, bool, error)
}

type admissionController interface {
	Admit(ctx context.Context, candidate Candidate, asOf time.Time) (Decision, error)
}

type registrationStore interface {
	Create(ctx context.Context, registration *models.Registration) (string, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	Update(ctx context.Context, registration *models.Registration) error
	Delete(ctx context.Context, id string) (bool, error)
}

type storeHealth interface {
	PingContext(ctx context.Context) error
}

type batchMetrics interface {
	ObserveBatchRow(result string)
	ObserveBatch(status string, rows int, duration time.Duration)
}

// Row result labels for metrics.
const (
	rowResultCreated  = "created"
	rowResultUpdated  = "updated"
	rowResultDeleted  = "deleted"
	rowResultRejected = "rejected"
	rowResultInvalid  = "invalid_reference"
	rowResultNotFound = "not_found"
	rowResultFailed   = "failed"
	rowResultSkipped  = "skipped"
)

// BatchService sequences batch rows through entity resolution, admission and
// the registration store. Rows are processed strictly in order so later rows
// see the effects of earlier ones; one row's failure never aborts the rest.
type BatchService struct {
	resolver  entityResolver
	admission admissionController
	store     registrationStore
	locks     *lock.KeyedMutex
	batchCfg  config.BatchConfig
	schedCfg  config.SchedulingConfig
	notifier  ProgressNotifier
	metrics   batchMetrics
	health    storeHealth
	logger    *zap.Logger
}

// BatchServiceOption configures the service.
type BatchServiceOption func(*BatchService)

// WithProgressNotifier attaches a per-row progress sink.
func WithProgressNotifier(n ProgressNotifier) BatchServiceOption {
	return func(s *BatchService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithBatchMetrics attaches batch instrumentation.
func WithBatchMetrics(m batchMetrics) BatchServiceOption {
	return func(s *BatchService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithStoreHealth enables the store reachability probe at batch start.
func WithStoreHealth(h storeHealth) BatchServiceOption {
	return func(s *BatchService) {
		if h != nil {
			s.health = h
		}
	}
}

// NewBatchService constructs the orchestrator.
func NewBatchService(resolver entityResolver, admission admissionController, store registrationStore,
	locks *lock.KeyedMutex, batchCfg config.BatchConfig, schedCfg config.SchedulingConfig,
	logger *zap.Logger, opts ...BatchServiceOption) *BatchService {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BatchService{
		resolver:  resolver,
		admission: admission,
		store:     store,
		locks:     locks,
		batchCfg:  batchCfg,
		schedCfg:  schedCfg,
		notifier:  NopNotifier{},
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Process runs every row of the submission and returns one outcome per
// recognised row, in input order. Unrecognised actions are skipped without an
// outcome. The returned error is batch-level only: store unreachable at
// start, caller cancellation, or the legacy class-cap abort; outcomes
// produced before the interruption are still returned.
func (s *BatchService) Process(ctx context.Context, submission models.BatchSubmission) ([]models.RowOutcome, error) {
	started := time.Now()

	if s.health != nil {
		if err := s.health.PingContext(ctx); err != nil {
			s.observeBatch(string(models.BatchStatusAborted), 0, started)
			return nil, appErrors.Wrap(err, appErrors.ErrStoreDown.Code, appErrors.ErrStoreDown.Status, appErrors.ErrStoreDown.Message)
		}
	}

	outcomes := make([]models.RowOutcome, 0, len(submission.Rows))
	for i, row := range submission.Rows {
		if err := ctx.Err(); err != nil {
			s.observeBatch(string(models.BatchStatusAborted), len(outcomes), started)
			return outcomes, appErrors.Wrap(err, appErrors.ErrBatchAborted.Code, appErrors.ErrBatchAborted.Status, "batch cancelled by caller")
		}

		if !row.Action.IsValid() {
			s.logger.Warn("skipping row with unrecognised action",
				zap.Int("row", i), zap.String("action", string(row.Action)))
			s.observeRow(rowResultSkipped)
			continue
		}

		outcome, result, abort := s.processRow(ctx, i, row)
		outcomes = append(outcomes, outcome)
		s.observeRow(result)
		s.notifier.Notify(ctx, submission.SubscriberToken, outcome.Index, outcome)

		if abort {
			s.observeBatch(string(models.BatchStatusAborted), len(outcomes), started)
			return outcomes, appErrors.Clone(appErrors.ErrBatchAborted, outcome.Message)
		}
	}

	s.observeBatch(string(models.BatchStatusCompleted), len(outcomes), started)
	return outcomes, nil
}

func (s *BatchService) processRow(ctx context.Context, index int, row models.BatchRow) (models.RowOutcome, string, bool) {
	rowCtx := ctx
	if s.batchCfg.RowTimeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(ctx, s.batchCfg.RowTimeout)
		defer cancel()
	}

	switch row.Action {
	case models.RowActionNew:
		return s.processNew(rowCtx, index, row)
	case models.RowActionUpdate:
		outcome, result := s.processUpdate(rowCtx, index, row)
		return outcome, result, false
	default:
		outcome, result := s.processDelete(rowCtx, index, row)
		return outcome, result, false
	}
}

func (s *BatchService) processNew(ctx context.Context, index int, row models.BatchRow) (models.RowOutcome, string, bool) {
	outcome := models.RowOutcome{Index: index, Row: row}

	// The party-day locks cover the whole check-then-write sequence so a
	// concurrent batch cannot double-book the same student, instructor or
	// class day.
	release := s.locks.Lock(s.partyDayKeys(row)...)
	defer release()

	notes, err := s.resolveParties(ctx, row)
	if err != nil {
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed, false
	}

	candidate := Candidate{
		StudentID:    row.StudentID,
		InstructorID: row.InstructorID,
		ClassID:      row.ClassID,
		StartTime:    row.StartTime,
	}
	decision, err := s.admission.Admit(ctx, candidate, row.StartTime)
	if err != nil {
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed, false
	}
	if !decision.Admitted {
		outcome.Message = withNotes(notes, fmt.Sprintf("admission rejected: %s (%s)", decision.Reason, decision.Detail))
		abort := decision.Reason == ReasonClassDailyCapExceeded && s.batchCfg.ClassCapAbortsBatch
		if abort {
			outcome.Message += "; batch aborted"
		}
		return outcome, rowResultRejected, abort
	}

	registration := &models.Registration{
		StudentID:       row.StudentID,
		InstructorID:    row.InstructorID,
		ClassID:         row.ClassID,
		StartTime:       row.StartTime,
		DurationMinutes: s.schedCfg.StoredDurationMinutes,
	}
	id, err := s.store.Create(ctx, registration)
	if err != nil {
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed, false
	}

	outcome.RegistrationID = id
	outcome.Message = withNotes(notes, "registration created")
	return outcome, rowResultCreated, false
}

func (s *BatchService) processUpdate(ctx context.Context, index int, row models.BatchRow) (models.RowOutcome, string) {
	outcome := models.RowOutcome{Index: index, Row: row}

	if _, err := uuid.Parse(row.TargetID); err != nil {
		outcome.Message = fmt.Sprintf("invalid registration reference %q", row.TargetID)
		return outcome, rowResultInvalid
	}

	existing, err := s.store.FindByID(ctx, row.TargetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			outcome.Message = fmt.Sprintf("registration %s not found", row.TargetID)
			return outcome, rowResultNotFound
		}
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed
	}

	if s.batchCfg.RevalidateUpdates {
		release := s.locks.Lock(s.partyDayKeys(row)...)
		defer release()

		candidate := Candidate{
			StudentID:    row.StudentID,
			InstructorID: row.InstructorID,
			ClassID:      row.ClassID,
			StartTime:    row.StartTime,
		}
		decision, err := s.admission.Admit(ctx, candidate, row.StartTime)
		if err != nil {
			outcome.Message = rowFailure(err)
			return outcome, rowResultFailed
		}
		// The record under update may collide with itself.
		selfConflict := !decision.Admitted && decision.Reason == ReasonOverlapConflict && decision.ConflictID == row.TargetID
		if !decision.Admitted && !selfConflict {
			outcome.Message = fmt.Sprintf("admission rejected: %s (%s)", decision.Reason, decision.Detail)
			return outcome, rowResultRejected
		}
	}

	existing.StudentID = row.StudentID
	existing.InstructorID = row.InstructorID
	existing.ClassID = row.ClassID
	existing.StartTime = row.StartTime
	if err := s.store.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			outcome.Message = fmt.Sprintf("registration %s not found", row.TargetID)
			return outcome, rowResultNotFound
		}
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed
	}

	outcome.RegistrationID = existing.ID
	outcome.Message = "registration updated"
	return outcome, rowResultUpdated
}

func (s *BatchService) processDelete(ctx context.Context, index int, row models.BatchRow) (models.RowOutcome, string) {
	outcome := models.RowOutcome{Index: index, Row: row}

	if _, err := uuid.Parse(row.TargetID); err != nil {
		outcome.Message = fmt.Sprintf("invalid registration reference %q", row.TargetID)
		return outcome, rowResultInvalid
	}

	found, err := s.store.Delete(ctx, row.TargetID)
	if err != nil {
		outcome.Message = rowFailure(err)
		return outcome, rowResultFailed
	}
	if !found {
		outcome.Message = fmt.Sprintf("registration %s not found", row.TargetID)
		return outcome, rowResultNotFound
	}

	outcome.RegistrationID = row.TargetID
	outcome.Message = "registration deleted"
	return outcome, rowResultDeleted
}

// resolveParties resolves the three referenced entities, collecting an
// informational note for every provisioning. Provisioning never rejects a
// row; storage faults propagate.
func (s *BatchService) resolveParties(ctx context.Context, row models.BatchRow) ([]string, error) {
	var notes []string

	if _, created, err := s.resolver.ResolveStudent(ctx, row.StudentID); err != nil {
		return nil, err
	} else if created {
		notes = append(notes, fmt.Sprintf("student %s auto-provisioned", row.StudentID))
	}

	if _, created, err := s.resolver.ResolveInstructor(ctx, row.InstructorID); err != nil {
		return nil, err
	} else if created {
		notes = append(notes, fmt.Sprintf("instructor %s auto-provisioned", row.InstructorID))
	}

	if _, created, err := s.resolver.ResolveClassType(ctx, row.ClassID); err != nil {
		return nil, err
	} else if created {
		notes = append(notes, fmt.Sprintf("class %s auto-provisioned", row.ClassID))
	}

	return notes, nil
}

func (s *BatchService) observeRow(result string) {
	if s.metrics != nil {
		s.metrics.ObserveBatchRow(result)
	}
}

func (s *BatchService) observeBatch(status string, rows int, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveBatch(status, rows, time.Since(started))
	}
}

// partyDayKeys lists the lock keys a row contends on. The overlap window is
// half-open, so a window ending exactly at midnight stays within one day;
// a window crossing midnight also contends with the next day's parties.
func (s *BatchService) partyDayKeys(row models.BatchRow) []string {
	start := row.StartTime.UTC()
	days := []string{start.Format("2006-01-02")}

	window := time.Duration(s.schedCfg.OverlapWindowMinutes) * time.Minute
	if end := start.Add(window); end.After(startOfDay(start).Add(24 * time.Hour)) {
		days = append(days, end.Format("2006-01-02"))
	}

	keys := make([]string, 0, 3*len(days))
	for _, day := range days {
		keys = append(keys,
			"student:"+row.StudentID+":"+day,
			"instructor:"+row.InstructorID+":"+day,
			"class:"+row.ClassID+":"+day,
		)
	}
	return keys
}

func rowFailure(err error) string {
	return "row failed: " + err.Error()
}

func withNotes(notes []string, message string) string {
	if len(notes) == 0 {
		return message
	}
	return strings.Join(notes, "; ") + "; " + message
}
