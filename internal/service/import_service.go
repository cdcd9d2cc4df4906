package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/validation"
)

const (
	defaultMaxImportSize = 5 * 1024 * 1024
	defaultMaxExamples   = 10
	maxSummaryReasons    = 5
)

type importRepository interface {
	ExistsLiveISBN(ctx context.Context, isbn string, excludeID int64) (bool, error)
	BeginImport(ctx context.Context) (repository.ImportTx, error)
}

// ImportUpload is an uploaded file as received from the transport.
type ImportUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// ImportServiceConfig bounds uploads and reported examples.
type ImportServiceConfig struct {
	MaxFileSize int64
	MaxExamples int
}

// ImportService turns uploaded CSV files into new active books.
type ImportService struct {
	repo        importRepository
	validator   *validator.Validate
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	maxFileSize int64
	maxExamples int
}

// NewImportService constructs the import pipeline.
func NewImportService(repo importRepository, validate *validator.Validate, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ImportServiceConfig) *ImportService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxImportSize
	}
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = defaultMaxExamples
	}
	return &ImportService{
		repo:        repo,
		validator:   validate,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		maxFileSize: cfg.MaxFileSize,
		maxExamples: cfg.MaxExamples,
	}
}

// importBatch accumulates per-row classifications.
type importBatch struct {
	candidates       []importRow
	validationErrors []string
	duplicates       []string
	importErrors     []string
	importedIDs      []int64
	success          int
}

// Import parses, classifies and inserts one uploaded file. Inserts run in a
// single transaction in which a failing row is recorded and skipped.
func (s *ImportService) Import(ctx context.Context, upload ImportUpload, opts models.ImportOptions) (*models.ImportResult, error) {
	started := time.Now()
	batchID := uuid.NewString()
	log := s.logger.With(zap.String("batch_id", batchID), zap.String("filename", upload.Filename))

	content, err := s.readUpload(upload)
	if err != nil {
		return nil, err
	}
	records, err := readCSV(bytes.NewReader(content))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read CSV file")
	}

	batch, err := s.classify(ctx, records, opts)
	if err != nil {
		return nil, err
	}
	if len(batch.candidates) == 0 && len(batch.validationErrors) > 0 {
		log.Info("import rejected", zap.Int("validation_errors", len(batch.validationErrors)))
		reasons := batch.validationErrors[:min(maxSummaryReasons, len(batch.validationErrors))]
		return nil, appErrors.Clone(appErrors.ErrValidation, "no valid rows to import: "+strings.Join(reasons, "; "))
	}

	if len(batch.candidates) > 0 {
		if err := s.insert(ctx, batch, log); err != nil {
			log.Error("import transaction failed", zap.Error(err))
			return nil, err
		}
	}

	result := &models.ImportResult{
		BatchID: batchID,
		Counts: models.ImportCounts{
			TotalProcessed:       len(batch.candidates),
			SuccessCount:         batch.success,
			ErrorCount:           len(batch.importErrors),
			DuplicateCount:       len(batch.duplicates),
			ValidationErrorCount: len(batch.validationErrors),
		},
		Details: models.ImportDetails{
			ValidationErrors: s.examples(batch.validationErrors),
			Duplicates:       s.examples(batch.duplicates),
			ImportErrors:     s.examples(batch.importErrors),
		},
		ImportedIDs: batch.importedIDs,
	}

	if result.Committed() {
		s.cache.InvalidateStats(ctx)
	}
	s.metrics.RecordImport(result.Counts, time.Since(started))
	log.Info("import finished",
		zap.Int("processed", result.Counts.TotalProcessed),
		zap.Int("imported", result.Counts.SuccessCount),
		zap.Int("insert_failed", result.Counts.ErrorCount),
		zap.Int("duplicates", result.Counts.DuplicateCount),
		zap.Int("validation_errors", result.Counts.ValidationErrorCount),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func (s *ImportService) readUpload(upload ImportUpload) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(upload.Filename), ".csv") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .csv files are accepted")
	}
	tooLarge := appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file too large; maximum size is %d bytes", s.maxFileSize))
	if upload.Size > s.maxFileSize {
		return nil, tooLarge
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no file uploaded")
	}
	content, err := io.ReadAll(io.LimitReader(upload.Content, s.maxFileSize+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read uploaded file")
	}
	if int64(len(content)) > s.maxFileSize {
		return nil, tooLarge
	}
	return content, nil
}

func (s *ImportService) classify(ctx context.Context, records []csvRecord, opts models.ImportOptions) (*importBatch, error) {
	batch := &importBatch{}
	seenISBN := make(map[string]int)

	for i, record := range records {
		if opts.SkipFirstRow && i == 0 {
			continue
		}
		if record.Err != nil {
			batch.validationErrors = append(batch.validationErrors, fmt.Sprintf("line %d: malformed CSV: %v", record.Line, record.Err))
			continue
		}
		if len(record.Fields) < minImportColumns {
			batch.validationErrors = append(batch.validationErrors,
				fmt.Sprintf("line %d: not enough columns (need at least %d)", record.Line, minImportColumns))
			continue
		}

		row := rowFromFields(record.Line, record.Fields)
		if opts.ValidateData {
			if err := s.validator.Struct(row); err != nil {
				messages := validation.Messages(err, importRowMessages)
				batch.validationErrors = append(batch.validationErrors,
					fmt.Sprintf("line %d: %s", row.Line, strings.Join(messages, ", ")))
				continue
			}
		}

		if opts.SkipDuplicates && row.ISBN != "" {
			if first, ok := seenISBN[row.ISBN]; ok {
				batch.duplicates = append(batch.duplicates,
					fmt.Sprintf("line %d: book with ISBN '%s' already appears on line %d", row.Line, row.ISBN, first))
				continue
			}
			exists, err := s.repo.ExistsLiveISBN(ctx, row.ISBN, 0)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to check duplicate isbn")
			}
			if exists {
				batch.duplicates = append(batch.duplicates,
					fmt.Sprintf("line %d: book with ISBN '%s' already exists", row.Line, row.ISBN))
				continue
			}
			seenISBN[row.ISBN] = row.Line
		}

		batch.candidates = append(batch.candidates, row)
	}
	return batch, nil
}

func (s *ImportService) insert(ctx context.Context, batch *importBatch, log *zap.Logger) error {
	tx, err := s.repo.BeginImport(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to start import")
	}

	now := time.Now().UTC()
	for _, row := range batch.candidates {
		book := row.book(now)
		err := tx.Insert(ctx, book)
		switch {
		case err == nil:
			batch.success++
			batch.importedIDs = append(batch.importedIDs, book.ID)
		case errors.Is(err, repository.ErrImportAborted):
			_ = tx.Rollback()
			return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "import aborted; no rows were saved")
		default:
			log.Warn("import row rejected by store", zap.Int("line", row.Line), zap.Error(err))
			batch.importErrors = append(batch.importErrors,
				fmt.Sprintf("line %d: cannot import book '%s': %s", row.Line, row.Title, insertFailureReason(err)))
		}
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to commit import")
	}
	return nil
}

func (s *ImportService) examples(messages []string) []string {
	if len(messages) == 0 {
		return []string{}
	}
	return messages[:min(s.maxExamples, len(messages))]
}

func (r importRow) book(createdAt time.Time) *models.Book {
	book := &models.Book{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		Quantity:    r.Quantity,
		Description: r.Description,
		ImagePath:   r.ImagePath,
		CreatedAt:   createdAt,
	}
	if r.CategoryID != 0 {
		category := r.CategoryID
		book.CategoryID = &category
	}
	if r.PublishYear > 0 {
		year := r.PublishYear
		book.PublishYear = &year
	}
	return book
}

func insertFailureReason(err error) string {
	if errors.Is(err, repository.ErrDuplicateISBN) {
		return "isbn already exists"
	}
	return "store rejected the row"
}
