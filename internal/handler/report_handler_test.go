package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/dto"
	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/internal/service"
	"github.com/noah-isme/class-scheduler-api/pkg/storage"
)

type stubReportStore struct {
	counts        []models.DailyCount
	registrations []models.RegistrationDetail
}

func (s *stubReportStore) DailyCounts(ctx context.Context, dayStart, dayEnd time.Time) ([]models.DailyCount, error) {
	return s.counts, nil
}

func (s *stubReportStore) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	return s.registrations, len(s.registrations), nil
}

func newTestReportHandler(t *testing.T, store *stubReportStore) *ReportHandler {
	t.Helper()
	exportStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	reports := service.NewReportService(store, exportStore, signer, zap.NewNop())
	return NewReportHandler(reports)
}

func TestReportHandlerDaily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(t, &stubReportStore{counts: []models.DailyCount{
		{Kind: "student", Party: "S1", Count: 2},
		{Kind: "instructor", Party: "I1", Count: 2},
	}})

	c, w := newGinContext(http.MethodGet, "/reports/daily?date=2026-03-10", nil, "application/json")

	handler.Daily(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.DailyReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "2026-03-10", envelope.Data.Date)
	assert.Len(t, envelope.Data.Counts, 2)
}

func TestReportHandlerDailyRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(t, &stubReportStore{})

	c, w := newGinContext(http.MethodGet, "/reports/daily?date=yesterday", nil, "application/json")

	handler.Daily(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerExportAndDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	name := "Student One"
	handler := newTestReportHandler(t, &stubReportStore{registrations: []models.RegistrationDetail{{
		Registration: models.Registration{
			ID:              "reg-1",
			StudentID:       "S1",
			InstructorID:    "I1",
			ClassID:         "C1",
			StartTime:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			DurationMinutes: 60,
		},
		StudentName: &name,
	}}})

	c, w := newGinContext(http.MethodGet, "/reports/daily/export?date=2026-03-10&format=csv", nil, "application/json")

	handler.ExportDaily(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ExportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "csv", envelope.Data.Format)
	require.NotEmpty(t, envelope.Data.DownloadToken)

	c, w = newGinContext(http.MethodGet, "/reports/download/"+envelope.Data.DownloadToken, nil, "application/json")
	c.Params = gin.Params{{Key: "token", Value: envelope.Data.DownloadToken}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student One")
	assert.Contains(t, w.Body.String(), "reg-1")
}

func TestReportHandlerExportRejectsUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(t, &stubReportStore{})

	c, w := newGinContext(http.MethodGet, "/reports/daily/export?format=docx", nil, "application/json")

	handler.ExportDaily(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDownloadRejectsForgedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(t, &stubReportStore{})

	c, w := newGinContext(http.MethodGet, "/reports/download/forged", nil, "application/json")
	c.Params = gin.Params{{Key: "token", Value: "forged"}}

	handler.Download(c)
	require.Equal(t, http.StatusGone, w.Code)
}
