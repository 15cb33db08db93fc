package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/dto"
	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/internal/service"
	"github.com/noah-isme/class-scheduler-api/pkg/config"
	"github.com/noah-isme/class-scheduler-api/pkg/response"
)

type stubResolver struct{}

func (stubResolver) ResolveStudent(ctx context.Context, id string) (*models.Student, bool, error) {
	return &models.Student{StudentID: id}, false, nil
}

func (stubResolver) ResolveInstructor(ctx context.Context, id string) (*models.Instructor, bool, error) {
	return &models.Instructor{InstructorID: id}, false, nil
}

func (stubResolver) ResolveClassType(ctx context.Context, id string) (*models.ClassType, bool, error) {
	return &models.ClassType{ClassID: id}, false, nil
}

type stubAdmission struct{}

func (stubAdmission) Admit(ctx context.Context, candidate service.Candidate, asOf time.Time) (service.Decision, error) {
	return service.Decision{Admitted: true}, nil
}

type stubStore struct {
	creates int
}

func (s *stubStore) Create(ctx context.Context, registration *models.Registration) (string, error) {
	s.creates++
	registration.ID = fmt.Sprintf("reg-%d", s.creates)
	return registration.ID, nil
}

func (s *stubStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	return nil, sql.ErrNoRows
}

func (s *stubStore) Update(ctx context.Context, registration *models.Registration) error {
	return sql.ErrNoRows
}

func (s *stubStore) Delete(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func newTestBatchHandler(store *stubStore) *BatchHandler {
	batches := service.NewBatchService(stubResolver{}, stubAdmission{}, store, nil,
		config.BatchConfig{RowTimeout: time.Second},
		config.SchedulingConfig{StoredDurationMinutes: 60, OverlapWindowMinutes: 45},
		zap.NewNop())
	return NewBatchHandler(batches, nil, nil, 1024*1024, validator.New(), zap.NewNop())
}

func newGinContext(method, path string, body []byte, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	return c, w
}

func TestBatchHandlerSubmitJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &stubStore{}
	handler := newTestBatchHandler(store)

	payload, _ := json.Marshal(dto.SubmitBatchRequest{
		Name:  "Registrar",
		Email: "registrar@example.com",
		Rows: []dto.BatchRowPayload{
			{StudentID: "S1", InstructorID: "I1", ClassID: "C1", StartTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), Action: "new"},
			{StudentID: "S2", InstructorID: "I2", ClassID: "C2", StartTime: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), Action: "new"},
		},
	})
	c, w := newGinContext(http.MethodPost, "/registrations/batch", payload, "application/json")

	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.BatchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Outcomes, 2)
	assert.Equal(t, "registration created", envelope.Data.Outcomes[0].Message)
	assert.Equal(t, 2, store.creates)
}

func TestBatchHandlerSubmitRejectsInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestBatchHandler(&stubStore{})

	payload, _ := json.Marshal(dto.SubmitBatchRequest{
		Name:  "Registrar",
		Email: "not-an-email",
		Rows:  []dto.BatchRowPayload{{Action: "new"}},
	})
	c, w := newGinContext(http.MethodPost, "/registrations/batch", payload, "application/json")

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
}

func TestBatchHandlerSubmitRejectsEmptyRows(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestBatchHandler(&stubStore{})

	payload := []byte(`{"name":"Registrar","email":"registrar@example.com","rows":[]}`)
	c, w := newGinContext(http.MethodPost, "/registrations/batch", payload, "application/json")

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandlerSubmitMultipartCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &stubStore{}
	handler := newTestBatchHandler(store)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("name", "Registrar"))
	require.NoError(t, form.WriteField("email", "registrar@example.com"))
	part, err := form.CreateFormFile("file", "batch.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("student_id,instructor_id,class_id,start_time,action\nS1,I1,C1,2026-03-10T09:00:00Z,new\n"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	c, w := newGinContext(http.MethodPost, "/registrations/batch", body.Bytes(), form.FormDataContentType())

	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.creates)
}

func TestBatchHandlerSubmitMultipartUnsupportedExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestBatchHandler(&stubStore{})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("name", "Registrar"))
	require.NoError(t, form.WriteField("email", "registrar@example.com"))
	part, err := form.CreateFormFile("file", "batch.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, form.Close())

	c, w := newGinContext(http.MethodPost, "/registrations/batch", body.Bytes(), form.FormDataContentType())

	handler.Submit(c)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestBatchHandlerResultWithoutAsyncBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestBatchHandler(&stubStore{})

	c, w := newGinContext(http.MethodGet, "/registrations/batch/b1/result", nil, "application/json")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	handler.Result(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
