package dto

import (
	"time"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// BatchRowPayload mirrors one inline batch row in a JSON submission.
type BatchRowPayload struct {
	RegistrationID string    `json:"registration_id"`
	StudentID      string    `json:"student_id"`
	InstructorID   string    `json:"instructor_id"`
	ClassID        string    `json:"class_id"`
	StartTime      time.Time `json:"start_time"`
	Action         string    `json:"action" validate:"required"`
}

// SubmitBatchRequest is the JSON body variant of a batch submission (the
// multipart variant carries the rows in the uploaded file instead).
type SubmitBatchRequest struct {
	Name            string            `json:"name" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	SubscriberToken string            `json:"subscriber_token"`
	Async           bool              `json:"async"`
	Rows            []BatchRowPayload `json:"rows" validate:"required,min=1"`
}

// ToSubmission converts the request into the orchestrator's input.
func (r SubmitBatchRequest) ToSubmission() models.BatchSubmission {
	rows := make([]models.BatchRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, models.BatchRow{
			TargetID:     row.RegistrationID,
			StudentID:    row.StudentID,
			InstructorID: row.InstructorID,
			ClassID:      row.ClassID,
			StartTime:    row.StartTime,
			Action:       models.RowAction(row.Action),
		})
	}
	return models.BatchSubmission{
		Rows:            rows,
		SubmitterName:   r.Name,
		SubmitterEmail:  r.Email,
		SubscriberToken: r.SubscriberToken,
	}
}

// BatchResponse wraps the synchronous outcome list.
type BatchResponse struct {
	Outcomes []models.RowOutcome `json:"outcomes"`
}

// AsyncBatchResponse acknowledges a queued batch run.
type AsyncBatchResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}
