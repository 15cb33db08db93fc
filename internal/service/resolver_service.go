package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

type studentStore interface {
	FindByNaturalID(ctx context.Context, studentID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type instructorStore interface {
	FindByNaturalID(ctx context.Context, instructorID string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
}

type classTypeStore interface {
	FindByNaturalID(ctx context.Context, classID string) (*models.ClassType, error)
	Create(ctx context.Context, classType *models.ClassType) error
}

// ResolverService looks up master data by natural identifier and provisions a
// deterministic placeholder record on a miss. Resolution is idempotent: a
// second call for the same identifier finds the first call's record.
type ResolverService struct {
	students    studentStore
	instructors instructorStore
	classTypes  classTypeStore
	logger      *zap.Logger
}

// NewResolverService constructs the resolver.
func NewResolverService(students studentStore, instructors instructorStore, classTypes classTypeStore, logger *zap.Logger) *ResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{students: students, instructors: instructors, classTypes: classTypes, logger: logger}
}

// ResolveStudent returns the student for the natural id, creating a
// placeholder when absent. The boolean reports whether a record was created.
func (s *ResolverService) ResolveStudent(ctx context.Context, studentID string) (*models.Student, bool, error) {
	student, err := s.students.FindByNaturalID(ctx, studentID)
	if err == nil {
		return student, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("resolve student %s: %w", studentID, err)
	}

	student = &models.Student{
		StudentID: studentID,
		FullName:  placeholderName("Student", studentID),
		Email:     placeholderEmail(studentID),
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, false, fmt.Errorf("provision student %s: %w", studentID, err)
	}
	s.logger.Info("provisioned student", zap.String("student_id", studentID))
	return student, true, nil
}

// ResolveInstructor returns the instructor for the natural id, creating a
// placeholder when absent.
func (s *ResolverService) ResolveInstructor(ctx context.Context, instructorID string) (*models.Instructor, bool, error) {
	instructor, err := s.instructors.FindByNaturalID(ctx, instructorID)
	if err == nil {
		return instructor, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("resolve instructor %s: %w", instructorID, err)
	}

	instructor = &models.Instructor{
		InstructorID: instructorID,
		FullName:     placeholderName("Instructor", instructorID),
		Email:        placeholderEmail(instructorID),
	}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		return nil, false, fmt.Errorf("provision instructor %s: %w", instructorID, err)
	}
	s.logger.Info("provisioned instructor", zap.String("instructor_id", instructorID))
	return instructor, true, nil
}

// ResolveClassType returns the class type for the natural id, creating a
// placeholder when absent.
func (s *ResolverService) ResolveClassType(ctx context.Context, classID string) (*models.ClassType, bool, error) {
	classType, err := s.classTypes.FindByNaturalID(ctx, classID)
	if err == nil {
		return classType, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("resolve class type %s: %w", classID, err)
	}

	classType = &models.ClassType{
		ClassID: classID,
		Name:    placeholderName("Class", classID),
	}
	if err := s.classTypes.Create(ctx, classType); err != nil {
		return nil, false, fmt.Errorf("provision class type %s: %w", classID, err)
	}
	s.logger.Info("provisioned class type", zap.String("class_id", classID))
	return classType, true, nil
}

func placeholderName(kind, naturalID string) string {
	return fmt.Sprintf("%s %s", kind, naturalID)
}

func placeholderEmail(naturalID string) string {
	return strings.ToLower(naturalID) + "@placeholder.local"
}
