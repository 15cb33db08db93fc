package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// ClassTypeRepository manages persistence for class-type master data.
type ClassTypeRepository struct {
	db *sqlx.DB
}

// NewClassTypeRepository constructs a ClassTypeRepository.
func NewClassTypeRepository(db *sqlx.DB) *ClassTypeRepository {
	return &ClassTypeRepository{db: db}
}

// FindByNaturalID fetches a class type by its external identifier. Returns
// sql.ErrNoRows when absent.
func (r *ClassTypeRepository) FindByNaturalID(ctx context.Context, classID string) (*models.ClassType, error) {
	const query = `SELECT id, class_id, name, description, created_at, updated_at FROM class_types WHERE class_id = $1`
	var classType models.ClassType
	if err := r.db.GetContext(ctx, &classType, query, classID); err != nil {
		return nil, err
	}
	return &classType, nil
}

// Create inserts a new class-type record.
func (r *ClassTypeRepository) Create(ctx context.Context, classType *models.ClassType) error {
	if classType.ID == "" {
		classType.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classType.CreatedAt.IsZero() {
		classType.CreatedAt = now
	}
	classType.UpdatedAt = now
	const query = `INSERT INTO class_types (id, class_id, name, description, created_at, updated_at)
        VALUES (:id, :class_id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classType); err != nil {
		return fmt.Errorf("create class type: %w", err)
	}
	return nil
}

// List returns class types matching the provided filter.
func (r *ClassTypeRepository) List(ctx context.Context, filter models.ClassTypeFilter) ([]models.ClassType, int, error) {
	base := "FROM class_types ct"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(ct.name) LIKE $%d OR LOWER(ct.class_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ct.id, ct.class_id, ct.name, ct.description, ct.created_at, ct.updated_at
        %s ORDER BY ct.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var classTypes []models.ClassType
	if err := r.db.SelectContext(ctx, &classTypes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class types: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class types: %w", err)
	}
	return classTypes, total, nil
}
