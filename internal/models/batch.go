package models

import "time"

// RowAction tags what a batch row asks for.
type RowAction string

const (
	RowActionNew    RowAction = "new"
	RowActionUpdate RowAction = "update"
	RowActionDelete RowAction = "delete"
)

// IsValid reports whether the action is one the orchestrator recognises.
func (a RowAction) IsValid() bool {
	switch a {
	case RowActionNew, RowActionUpdate, RowActionDelete:
		return true
	}
	return false
}

// BatchRow is one scheduling request line within a submitted batch. Not
// persisted.
type BatchRow struct {
	// TargetID addresses an existing registration for update/delete rows.
	TargetID     string    `json:"registration_id,omitempty"`
	StudentID    string    `json:"student_id"`
	InstructorID string    `json:"instructor_id"`
	ClassID      string    `json:"class_id"`
	StartTime    time.Time `json:"start_time"`
	Action       RowAction `json:"action"`
}

// RowOutcome reports how one row fared. Exactly one is produced per
// recognised row, in input order.
type RowOutcome struct {
	Index          int      `json:"row"`
	Row            BatchRow `json:"request"`
	Message        string   `json:"message"`
	RegistrationID string   `json:"registration_id,omitempty"`
}

// BatchSubmission bundles the rows with submitter metadata.
type BatchSubmission struct {
	Rows            []BatchRow
	SubmitterName   string
	SubmitterEmail  string
	SubscriberToken string
}

// BatchStatus tracks asynchronous batch runs.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusAborted    BatchStatus = "ABORTED"
)

// BatchResult is the stored result of an asynchronous batch run.
type BatchResult struct {
	BatchID     string       `json:"batch_id"`
	Status      BatchStatus  `json:"status"`
	Outcomes    []RowOutcome `json:"outcomes"`
	SubmittedAt time.Time    `json:"submitted_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}
