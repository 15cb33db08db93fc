package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
)

type studentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type instructorLister interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
}

type classTypeLister interface {
	List(ctx context.Context, filter models.ClassTypeFilter) ([]models.ClassType, int, error)
}

// MasterDataService serves the read-only master-data listings. Master data is
// append-only: batch processing provisions records through the resolver and
// nothing here mutates them.
type MasterDataService struct {
	students    studentLister
	instructors instructorLister
	classTypes  classTypeLister
	logger      *zap.Logger
}

// NewMasterDataService constructs the service.
func NewMasterDataService(students studentLister, instructors instructorLister, classTypes classTypeLister, logger *zap.Logger) *MasterDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MasterDataService{students: students, instructors: instructors, classTypes: classTypes, logger: logger}
}

// ListStudents returns students and pagination metadata.
func (s *MasterDataService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListInstructors returns instructors and pagination metadata.
func (s *MasterDataService) ListInstructors(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, *models.Pagination, error) {
	instructors, total, err := s.instructors.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListClassTypes returns class types and pagination metadata.
func (s *MasterDataService) ListClassTypes(ctx context.Context, filter models.ClassTypeFilter) ([]models.ClassType, *models.Pagination, error) {
	classTypes, total, err := s.classTypes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class types")
	}
	return classTypes, paginationFor(filter.Page, filter.PageSize, total), nil
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
