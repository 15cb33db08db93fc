package dto

import (
	"time"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// DailyReport aggregates registration counts per party for one calendar day.
type DailyReport struct {
	Date   string              `json:"date"`
	Counts []models.DailyCount `json:"counts"`
}

// ExportResult references a generated export file and its signed download.
type ExportResult struct {
	FileName      string    `json:"file_name"`
	Format        string    `json:"format"`
	DownloadToken string    `json:"download_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}
