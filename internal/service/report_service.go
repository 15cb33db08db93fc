package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduler-api/internal/dto"
	"github.com/noah-isme/class-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduler-api/pkg/errors"
	"github.com/noah-isme/class-scheduler-api/pkg/export"
	"github.com/noah-isme/class-scheduler-api/pkg/storage"
)

type reportStore interface {
	DailyCounts(ctx context.Context, dayStart, dayEnd time.Time) ([]models.DailyCount, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
}

type queryMetrics interface {
	ObserveDBQuery(query string, duration time.Duration)
}

// ReportService serves the read-only daily projections and their exports.
type ReportService struct {
	repo    reportStore
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	metrics queryMetrics
	logger  *zap.Logger
}

// ReportServiceOption configures the service.
type ReportServiceOption func(*ReportService)

// WithReportMetrics attaches query timing instrumentation.
func WithReportMetrics(m queryMetrics) ReportServiceOption {
	return func(s *ReportService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewReportService constructs the report service.
func NewReportService(repo reportStore, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, opts ...ReportServiceOption) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReportService{
		repo:    repo,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: store,
		signer:  signer,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Daily returns per-party registration counts for one calendar day.
func (s *ReportService) Daily(ctx context.Context, day time.Time) (*dto.DailyReport, error) {
	dayStart := startOfDay(day)
	started := time.Now()
	counts, err := s.repo.DailyCounts(ctx, dayStart, dayStart.Add(24*time.Hour))
	s.observeQuery("daily_counts", started)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build daily report")
	}
	return &dto.DailyReport{Date: dayStart.Format("2006-01-02"), Counts: counts}, nil
}

// ExportDaily renders the day's registration listing, stores the file and
// returns a signed download reference.
func (s *ReportService) ExportDaily(ctx context.Context, day time.Time, format string) (*dto.ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}

	dayStart := startOfDay(day)
	started := time.Now()
	registrations, _, err := s.repo.List(ctx, models.RegistrationFilter{Day: &dayStart, PageSize: 100})
	s.observeQuery("daily_registrations", started)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily registrations")
	}

	dataset := buildDailyDataset(registrations)
	title := "registrations " + dayStart.Format("2006-01-02")

	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileName := fmt.Sprintf("daily-%s-%d.%s", dayStart.Format("2006-01-02"), time.Now().UnixNano(), format)
	if _, err := s.storage.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}

	return &dto.ExportResult{FileName: fileName, Format: format, DownloadToken: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the absolute file path
// and the served file name.
func (s *ReportService) ResolveDownload(token string) (path, name string, err error) {
	if s.signer == nil || s.storage == nil {
		return "", "", appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}
	relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrLinkExpired, "download link invalid or expired")
	}
	return s.storage.Path(relPath), relPath, nil
}

func (s *ReportService) observeQuery(label string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(started))
	}
}

func buildDailyDataset(registrations []models.RegistrationDetail) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"registration_id", "student", "instructor", "class", "start_time", "duration_minutes"},
	}
	for _, r := range registrations {
		dataset.Rows = append(dataset.Rows, []string{
			r.ID,
			displayName(r.StudentName, r.StudentID),
			displayName(r.InstructorName, r.InstructorID),
			displayName(r.ClassName, r.ClassID),
			r.StartTime.Format(time.RFC3339),
			strconv.Itoa(r.DurationMinutes),
		})
	}
	return dataset
}

func displayName(name *string, fallback string) string {
	if name != nil && *name != "" {
		return *name
	}
	return fallback
}
