package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/export"
)

// ExportFormat selects the rendering of a catalog export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"

	exportPageSize = maxPageSize
	maxExportRows  = 10000
)

// templateRows are sample books that pass every import rule.
var templateRows = [][]string{
	{"Clean Code", "Robert C. Martin", "1", "9780132350884", "5", "2008", "A handbook of agile software craftsmanship", ""},
	{"Pride and Prejudice", "Jane Austen", "2", "9780141439518", "3", "1813", "Classic novel of manners", ""},
	{"A Brief History of Time", "Stephen Hawking", "3", "9780553380163", "4", "1988", "Cosmology for general readers", ""},
	{"The Guns of August", "Barbara W. Tuchman", "4", "9780345476098", "2", "1962", "The opening month of World War I", ""},
	{"Watchmen", "Alan Moore", "5", "9780930289232", "6", "1987", "Graphic novel", ""},
}

var exportColumns = []string{"ID", "Title", "Author", "ISBN", "Category", "Quantity", "PublishYear", "Status", "CreatedAt"}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, weights ...float64) ([]byte, error)
}

// ExportService renders the import template and catalog exports.
type ExportService struct {
	repo   catalogRepository
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(repo catalogRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{repo: repo, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Template returns the downloadable import template.
func (s *ExportService) Template() (*ExportFile, error) {
	dataset := export.Dataset{Headers: ImportColumns}
	for _, row := range templateRows {
		dataset.Append(row...)
	}
	content, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return &ExportFile{Filename: "book_import_template.csv", ContentType: "text/csv; charset=utf-8", Content: content}, nil
}

// Export renders every book matching the listing query in the requested format.
func (s *ExportService) Export(ctx context.Context, q dto.ListBooksQuery, format ExportFormat) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	q.Page, q.Limit = 1, exportPageSize
	filter, _, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: exportColumns}
	for filter.Offset < maxExportRows {
		books, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load books for export")
		}
		for _, book := range books {
			dataset.Append(exportRow(book)...)
		}
		filter.Offset += len(books)
		if len(books) < filter.Limit || filter.Offset >= total {
			break
		}
	}

	stamp := s.now().UTC().Format("20060102_150405")
	base := fmt.Sprintf("books_%s_%s", filter.View, stamp)
	s.logger.Info("catalog exported", zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))

	if format == ExportFormatPDF {
		title := fmt.Sprintf("Library catalog (%d books)", len(dataset.Rows))
		content, err := s.pdf.Render(dataset, title, 1, 4, 3, 2.2, 1.6, 1.2, 1.4, 1.4, 2.4)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	}

	content, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return &ExportFile{Filename: base + ".csv", ContentType: "text/csv; charset=utf-8", Content: content}, nil
}

func exportRow(book models.Book) []string {
	year := ""
	if book.PublishYear != nil {
		year = strconv.Itoa(*book.PublishYear)
	}
	return []string{
		strconv.FormatInt(book.ID, 10),
		book.Title,
		book.Author,
		book.ISBN,
		models.CategoryName(book.CategoryID),
		strconv.Itoa(book.Quantity),
		year,
		string(book.Status),
		book.CreatedAt.UTC().Format(time.RFC3339),
	}
}
