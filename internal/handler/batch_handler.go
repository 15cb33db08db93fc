package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/dto"
	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/internal/service"
	"github.com/noah-isme/class-scheduler-api/pkg/batchfile"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
	"github.com/noah-isme/class-scheduler-api/pkg/response"
	"github.com/noah-isme/class-scheduler-api/pkg/storage"
)

// BatchHandler exposes batch submission and async result endpoints.
type BatchHandler struct {
	batches   *service.BatchService
	async     *service.AsyncBatchService
	uploads   *storage.LocalStorage
	maxUpload int64
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches *service.BatchService, async *service.AsyncBatchService, uploads *storage.LocalStorage, maxUpload int64, validate *validator.Validate, logger *zap.Logger) *BatchHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchHandler{batches: batches, async: async, uploads: uploads, maxUpload: maxUpload, validate: validate, logger: logger}
}

// Submit godoc
// @Summary Submit a registration batch
// @Description Accepts a JSON body with inline rows, or a multipart upload with a CSV/XLSX file.
// @Tags Batches
// @Accept json,mpfd
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /registrations/batch [post]
func (h *BatchHandler) Submit(c *gin.Context) {
	var (
		submission models.BatchSubmission
		async      bool
		err        error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		submission, async, err = h.fromMultipart(c)
	} else {
		submission, async, err = h.fromJSON(c)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	if async {
		if h.async == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "async processing is not enabled"))
			return
		}
		batchID, err := h.async.Submit(c.Request.Context(), submission)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, dto.AsyncBatchResponse{BatchID: batchID, Status: string(models.BatchStatusProcessing)})
		return
	}

	outcomes, err := h.batches.Process(c.Request.Context(), submission)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrBatchAborted.Code {
			// Partial outcomes are still returned; the abort is surfaced as
			// metadata, not a transport error.
			response.JSON(c, http.StatusOK, dto.BatchResponse{Outcomes: outcomes}, nil,
				map[string]interface{}{"aborted": true, "reason": appErr.Message})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BatchResponse{Outcomes: outcomes}, nil)
}

// Result godoc
// @Summary Fetch the result of an async batch run
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/batch/{id}/result [get]
func (h *BatchHandler) Result(c *gin.Context) {
	if h.async == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "async processing is not enabled"))
		return
	}
	result, err := h.async.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *BatchHandler) fromJSON(c *gin.Context) (models.BatchSubmission, bool, error) {
	var req dto.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return models.BatchSubmission{}, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return models.BatchSubmission{}, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch submission")
	}
	return req.ToSubmission(), req.Async, nil
}

func (h *BatchHandler) fromMultipart(c *gin.Context) (models.BatchSubmission, bool, error) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := strings.TrimSpace(c.PostForm("email"))
	if name == "" {
		return models.BatchSubmission{}, false, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := h.validate.Var(email, "required,email"); err != nil {
		return models.BatchSubmission{}, false, appErrors.Clone(appErrors.ErrValidation, "a valid email is required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.BatchSubmission{}, false, appErrors.Clone(appErrors.ErrValidation, "batch file is required")
	}
	if h.maxUpload > 0 && fileHeader.Size > h.maxUpload {
		return models.BatchSubmission{}, false, appErrors.Clone(appErrors.ErrFileTooLarge, "")
	}

	format := batchfile.DetectFormat(fileHeader.Filename)
	if format == batchfile.FormatUnknown {
		return models.BatchSubmission{}, false, appErrors.Clone(appErrors.ErrUnsupported, fmt.Sprintf("unsupported file %q, expected .csv or .xlsx", fileHeader.Filename))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.BatchSubmission{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close() //nolint:errcheck

	payload, err := io.ReadAll(file)
	if err != nil {
		return models.BatchSubmission{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}

	h.archive(fileHeader.Filename, payload)

	rows, err := batchfile.Parse(bytes.NewReader(payload), format)
	if err != nil {
		return models.BatchSubmission{}, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to parse batch file")
	}

	submission := models.BatchSubmission{
		Rows:            rows,
		SubmitterName:   name,
		SubmitterEmail:  email,
		SubscriberToken: strings.TrimSpace(c.PostForm("subscriber_token")),
	}
	return submission, c.PostForm("async") == "true", nil
}

// archive keeps a copy of the submitted file on disk. Best-effort: failures
// are logged, never surfaced.
func (h *BatchHandler) archive(filename string, payload []byte) {
	if h.uploads == nil {
		return
	}
	stored := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filename)
	if _, err := h.uploads.Save(stored, payload); err != nil {
		h.logger.Warn("archive batch file", zap.String("file", filename), zap.Error(err))
	}
}
