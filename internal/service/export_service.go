package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	appErrors "github.com/noah-isme/assignment-portal-api/pkg/errors"
	"github.com/noah-isme/assignment-portal-api/pkg/export"
)

// ExportFormat names a supported export rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

type pdfRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// ExportResult carries a rendered document and its HTTP metadata.
type ExportResult struct {
	Payload     []byte
	ContentType string
	Filename    string
}

// ExportService renders an assignment's submissions as CSV or PDF for
// the owning teacher.
type ExportService struct {
	submissions *SubmissionService
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(submissions *SubmissionService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{submissions: submissions, csv: csv, pdf: pdf, logger: logger}
}

// SubmissionsForAssignment renders the submission sheet. Ownership is
// enforced by the underlying submission listing.
func (s *ExportService) SubmissionsForAssignment(ctx context.Context, claims *models.JWTClaims, assignmentID string, format ExportFormat) (*ExportResult, error) {
	details, err := s.submissions.ListForAssignment(ctx, claims, assignmentID)
	if err != nil {
		return nil, err
	}

	title := "submissions"
	sheet := export.Sheet{
		Columns: []string{"Student", "Email", "Submitted At", "Reviewed", "Answer"},
	}
	for _, d := range details {
		if title == "submissions" && d.AssignmentTitle != "" {
			title = d.AssignmentTitle
		}
		reviewed := "no"
		if d.Reviewed {
			reviewed = "yes"
		}
		sheet.Rows = append(sheet.Rows, []string{
			d.StudentName,
			d.StudentEmail,
			d.SubmittedAt.Format("2006-01-02 15:04"),
			reviewed,
			d.Answer,
		})
	}
	sheet.Title = title

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(sheet)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(sheet)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s-submissions.%s", slugify(title), format)
	return &ExportResult{Payload: payload, ContentType: contentType, Filename: filename}, nil
}

func slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "assignment"
	}
	return b.String()
}
