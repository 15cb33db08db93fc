package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// RegistrationRepository is the registration store: the only component with a
// full create/update/delete lifecycle, plus the count and overlap queries the
// admission checks run against.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a new registration and returns its id.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) (string, error) {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	const query = `INSERT INTO registrations (id, student_id, instructor_id, class_id, start_time, duration_minutes, created_at, updated_at)
        VALUES (:id, :student_id, :instructor_id, :class_id, :start_time, :duration_minutes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return "", fmt.Errorf("create registration: %w", err)
	}
	return registration.ID, nil
}

// FindByID returns a registration by id. Returns sql.ErrNoRows when absent.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, student_id, instructor_id, class_id, start_time, duration_minutes, created_at, updated_at FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// Update overwrites the mutable fields of an existing registration. Returns
// sql.ErrNoRows when the id does not exist.
func (r *RegistrationRepository) Update(ctx context.Context, registration *models.Registration) error {
	registration.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET student_id = :student_id, instructor_id = :instructor_id, class_id = :class_id, start_time = :start_time, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, registration)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a registration and reports whether a record existed.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM registrations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return affected > 0, nil
}

// CountByStudentSince counts registrations for a student starting at or after
// the given instant.
func (r *RegistrationRepository) CountByStudentSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE student_id = $1 AND start_time >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, since); err != nil {
		return 0, fmt.Errorf("count registrations by student: %w", err)
	}
	return count, nil
}

// CountByInstructorSince counts registrations for an instructor starting at or
// after the given instant.
func (r *RegistrationRepository) CountByInstructorSince(ctx context.Context, instructorID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE instructor_id = $1 AND start_time >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID, since); err != nil {
		return 0, fmt.Errorf("count registrations by instructor: %w", err)
	}
	return count, nil
}

// CountByClassSince counts registrations for a class type starting at or after
// the given instant.
func (r *RegistrationRepository) CountByClassSince(ctx context.Context, classID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE class_id = $1 AND start_time >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, since); err != nil {
		return 0, fmt.Errorf("count registrations by class: %w", err)
	}
	return count, nil
}

// FindOverlapping returns a registration whose start time falls inside
// [windowStart, windowEnd) and shares the student or the instructor with the
// candidate. Returns (nil, nil) when there is no overlap.
func (r *RegistrationRepository) FindOverlapping(ctx context.Context, studentID, instructorID string, windowStart, windowEnd time.Time) (*models.Registration, error) {
	const query = `SELECT id, student_id, instructor_id, class_id, start_time, duration_minutes, created_at, updated_at
        FROM registrations
        WHERE (student_id = $1 OR instructor_id = $2) AND start_time >= $3 AND start_time < $4
        LIMIT 1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID, instructorID, windowStart, windowEnd); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find overlapping registration: %w", err)
	}
	return &registration, nil
}

// List returns registrations with joined display names.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM registrations r
LEFT JOIN students s ON s.student_id = r.student_id
LEFT JOIN instructors i ON i.instructor_id = r.instructor_id
LEFT JOIN class_types ct ON ct.class_id = r.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("r.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("r.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Day != nil {
		dayStart := filter.Day.Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("r.start_time >= $%d AND r.start_time < $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_time":      "r.start_time",
		"created_at":      "r.created_at",
		"student_name":    "s.full_name",
		"instructor_name": "i.full_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_time"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "r.start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT r.id, r.student_id, r.instructor_id, r.class_id, r.start_time, r.duration_minutes, r.created_at, r.updated_at,
        s.full_name AS student_name, i.full_name AS instructor_name, ct.name AS class_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// DailyCounts aggregates registrations per party for one calendar day.
func (r *RegistrationRepository) DailyCounts(ctx context.Context, dayStart, dayEnd time.Time) ([]models.DailyCount, error) {
	const query = `SELECT 'student' AS kind, student_id AS party, COUNT(*) AS count FROM registrations WHERE start_time >= $1 AND start_time < $2 GROUP BY student_id
        UNION ALL
        SELECT 'instructor' AS kind, instructor_id AS party, COUNT(*) AS count FROM registrations WHERE start_time >= $1 AND start_time < $2 GROUP BY instructor_id
        UNION ALL
        SELECT 'class' AS kind, class_id AS party, COUNT(*) AS count FROM registrations WHERE start_time >= $1 AND start_time < $2 GROUP BY class_id
        ORDER BY kind, party`
	var counts []models.DailyCount
	if err := r.db.SelectContext(ctx, &counts, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("daily registration counts: %w", err)
	}
	return counts, nil
}
