package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/export"
	"github.com/campushire/placement-api/pkg/storage"
)

// ReportFormat selects the rendered file type.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type exportApplicationLister interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

type exportOfferLister interface {
	List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error)
}

type exportDriveReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.DriveDetail, error)
	StatisticsInputs(ctx context.Context, driveID string) ([]lifecycle.CandidateEntry, []lifecycle.ApplicationEntry, []lifecycle.OfferEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes report behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders drive reports to CSV or PDF, stores the files and
// hands out signed download URLs.
type ExportService struct {
	drives  exportDriveReader
	apps    exportApplicationLister
	offers  exportOfferLister
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(drives exportDriveReader, apps exportApplicationLister, offers exportOfferLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		drives:  drives,
		apps:    apps,
		offers:  offers,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// DriveReport renders the full selection outcome of one drive.
func (s *ExportService) DriveReport(ctx context.Context, driveID string, format ReportFormat) (*ExportResult, error) {
	drive, err := s.drives.FindDetailByID(ctx, driveID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
	}

	apps, _, err := s.apps.List(ctx, models.ApplicationFilter{DriveID: driveID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}

	candidates, appEntries, offerEntries, err := s.drives.StatisticsInputs(ctx, driveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics")
	}
	stats := lifecycle.ComputeStatistics(candidates, appEntries, offerEntries)

	dataset := export.Dataset{
		Headers: []string{"Student", "Status", "Applied At", "Withdrawn", "Reason"},
	}
	for _, app := range apps {
		withdrawn := ""
		reason := ""
		if app.WithdrawnAt != nil {
			withdrawn = app.WithdrawnAt.Format(time.RFC3339)
		}
		if app.WithdrawalReason != nil {
			reason = *app.WithdrawalReason
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    app.StudentName,
			"Status":     string(app.Status),
			"Applied At": app.AppliedAt.Format(time.RFC3339),
			"Withdrawn":  withdrawn,
			"Reason":     reason,
		})
	}
	dataset.Rows = append(dataset.Rows,
		map[string]string{},
		map[string]string{"Student": "Eligible", "Status": strconv.Itoa(stats.Eligible)},
		map[string]string{"Student": "Applied", "Status": strconv.Itoa(stats.Applied)},
		map[string]string{"Student": "Shortlisted", "Status": strconv.Itoa(stats.Shortlisted)},
		map[string]string{"Student": "Selected", "Status": strconv.Itoa(stats.Selected)},
		map[string]string{"Student": "Offers Issued", "Status": strconv.Itoa(stats.OffersIssued)},
		map[string]string{"Student": "Offers Accepted", "Status": strconv.Itoa(stats.OffersAccepted)},
	)

	title := fmt.Sprintf("Placement Report - %s (%s)", drive.Title, drive.CompanyName)
	return s.render(dataset, title, "drives/"+driveID, format)
}

// OfferReport renders all offers of one drive.
func (s *ExportService) OfferReport(ctx context.Context, driveID string, format ReportFormat) (*ExportResult, error) {
	drive, err := s.drives.FindDetailByID(ctx, driveID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
	}

	offers, _, err := s.offers.List(ctx, models.OfferFilter{DriveID: driveID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offers")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Role", "Package", "Status", "Issued At", "Expires At"},
	}
	for _, offer := range offers {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    offer.StudentName,
			"Role":       offer.JobRole,
			"Package":    fmt.Sprintf("%.2f %s", offer.Package, offer.Currency),
			"Status":     string(offer.Status),
			"Issued At":  offer.IssuedAt.Format(time.RFC3339),
			"Expires At": offer.ExpiresAt.Format(time.RFC3339),
		})
	}

	title := fmt.Sprintf("Offer Report - %s (%s)", drive.Title, drive.CompanyName)
	return s.render(dataset, title, "offers/"+driveID, format)
}

// Open resolves a signed download token back to the stored file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes rendered files past their TTL.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("stale reports removed", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) render(dataset export.Dataset, title, prefix string, format ReportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	filename := fmt.Sprintf("reports/%s/%s.%s", prefix, reportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	url := token
	if s.cfg.APIPrefix != "" {
		url = strings.TrimSuffix(s.cfg.APIPrefix, "/") + "/reports/download?token=" + token
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          url,
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}
