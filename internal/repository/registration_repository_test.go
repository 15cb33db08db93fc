package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

func newRegistrationMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("INSERT INTO registrations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	registration := &models.Registration{
		StudentID:       "S1",
		InstructorID:    "I1",
		ClassID:         "C1",
		StartTime:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	}
	id, err := repo.Create(context.Background(), registration)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, registration.ID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindByIDMiss(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, instructor_id, class_id, start_time, duration_minutes, created_at, updated_at FROM registrations WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("UPDATE registrations SET").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Registration{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WithArgs("reg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := repo.Delete(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCountByStudentSince(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	since := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE student_id = $1 AND start_time >= $2")).
		WithArgs("S1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByStudentSince(context.Background(), "S1", since)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindOverlappingNone(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	windowStart := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(45 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (student_id = $1 OR instructor_id = $2) AND start_time >= $3 AND start_time < $4")).
		WithArgs("S1", "I1", windowStart, windowEnd).
		WillReturnError(sql.ErrNoRows)

	conflict, err := repo.FindOverlapping(context.Background(), "S1", "I1", windowStart, windowEnd)
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindOverlappingHit(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	windowStart := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(45 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "student_id", "instructor_id", "class_id", "start_time", "duration_minutes", "created_at", "updated_at"}).
		AddRow("reg-1", "S1", "I9", "C1", windowStart.Add(15*time.Minute), 60, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (student_id = $1 OR instructor_id = $2) AND start_time >= $3 AND start_time < $4")).
		WithArgs("S1", "I1", windowStart, windowEnd).
		WillReturnRows(rows)

	conflict, err := repo.FindOverlapping(context.Background(), "S1", "I1", windowStart, windowEnd)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "reg-1", conflict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryList(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	listRows := sqlmock.NewRows([]string{"id", "student_id", "instructor_id", "class_id", "start_time", "duration_minutes", "created_at", "updated_at", "student_name", "instructor_name", "class_name"}).
		AddRow("reg-1", "S1", "I1", "C1", time.Now(), 60, time.Now(), time.Now(), "Student One", "Instructor One", "Yoga")
	mock.ExpectQuery("SELECT r.id, r.student_id, r.instructor_id").
		WithArgs("S1").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations r")).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	registrations, total, err := repo.List(context.Background(), models.RegistrationFilter{StudentID: "S1"})
	require.NoError(t, err)
	assert.Len(t, registrations, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, registrations[0].StudentName)
	assert.Equal(t, "Student One", *registrations[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDailyCounts(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"kind", "party", "count"}).
		AddRow("class", "C1", 2).
		AddRow("instructor", "I1", 2).
		AddRow("student", "S1", 1).
		AddRow("student", "S2", 1)
	mock.ExpectQuery("SELECT 'student' AS kind").
		WithArgs(dayStart, dayStart.Add(24*time.Hour)).
		WillReturnRows(rows)

	counts, err := repo.DailyCounts(context.Background(), dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, counts, 4)
	assert.Equal(t, "class", counts[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
