package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/validation"
)

type bookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, id int64) (*models.Book, error)
	ExistsLiveISBN(ctx context.Context, isbn string, excludeID int64) (bool, error)
	UpdateFields(ctx context.Context, id int64, update models.BookFieldUpdate, at time.Time) (int64, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.BookStatus, at time.Time) (int64, error)
	TransitionAll(ctx context.Context, from, to models.BookStatus, at time.Time) ([]models.BookRef, error)
	SetCategory(ctx context.Context, id int64, categoryID int, at time.Time) (int64, error)
}

var bookFieldMessages = map[string]string{
	"Title":       "title is required and must be at most 255 characters",
	"Author":      "author is required and must be at most 255 characters",
	"ISBN":        "isbn must be at most 20 characters",
	"CategoryID":  "categoryId must be between 1 and 6",
	"PublishYear": "publishYear must be between 1000 and the current year",
	"Quantity":    "quantity must not be negative",
	"ImagePath":   "imagePath must be at most 500 characters",
}

// BookService handles single-record catalog use-cases and the lifecycle transitions.
type BookService struct {
	repo      bookRepository
	validator *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookService constructs the book service.
func NewBookService(repo bookRepository, validate *validator.Validate, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *BookService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{
		repo:      repo,
		validator: validate,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a book in any status.
func (s *BookService) Get(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load book")
	}
	return book, nil
}

// Create registers a new active book.
func (s *BookService) Create(ctx context.Context, req dto.CreateBookRequest) (*models.Book, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	if err := s.ensureISBNFree(ctx, req.ISBN, 0); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		CategoryID:  req.CategoryID,
		PublishYear: req.PublishYear,
		Description: req.Description,
		ImagePath:   req.ImagePath,
		CreatedAt:   s.now(),
	}
	if req.Quantity != nil {
		book.Quantity = *req.Quantity
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, storeWriteError(err, "failed to create book")
	}

	s.cache.InvalidateStats(ctx)
	s.logger.Info("book created", zap.Int64("book_id", book.ID), zap.String("isbn", book.ISBN))
	return book, nil
}

// Update writes the provided descriptive fields of an active book.
func (s *BookService) Update(ctx context.Context, id int64, req dto.UpdateBookRequest) (*models.Book, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	update := req.FieldUpdate()
	if update.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(book.Status, "update"); err != nil {
		return nil, err
	}
	if update.ISBN != nil && *update.ISBN != book.ISBN {
		if err := s.ensureISBNFree(ctx, *update.ISBN, id); err != nil {
			return nil, err
		}
	}

	affected, err := s.repo.UpdateFields(ctx, id, update, s.now())
	if err != nil {
		return nil, storeWriteError(err, "failed to update book")
	}
	if affected == 0 {
		return nil, s.lostRace(ctx, id, "update")
	}

	s.cache.InvalidateStats(ctx)
	return s.Get(ctx, id)
}

// Delete soft-deletes an active book.
func (s *BookService) Delete(ctx context.Context, id int64) (*dto.TransitionResult, error) {
	return s.Transition(ctx, id, models.BookActionDelete)
}

// Restore returns a soft-deleted book to the active catalog.
func (s *BookService) Restore(ctx context.Context, id int64) (*dto.TransitionResult, error) {
	return s.Transition(ctx, id, models.BookActionRestore)
}

// Archive permanently retires a soft-deleted book.
func (s *BookService) Archive(ctx context.Context, id int64) (*dto.TransitionResult, error) {
	return s.Transition(ctx, id, models.BookActionArchive)
}

// Transition applies a lifecycle action to one book as a conditional update.
func (s *BookService) Transition(ctx context.Context, id int64, action models.BookAction) (result *dto.TransitionResult, err error) {
	defer func() { s.metrics.RecordTransition(action, err) }()

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := planTransition(book.Status, action)
	if err != nil {
		return nil, err
	}

	at := s.now()
	affected, err := s.repo.TransitionStatus(ctx, id, plan.From, plan.To, at)
	if err != nil {
		return nil, storeWriteError(err, "failed to "+string(action)+" book")
	}
	if affected == 0 {
		return nil, s.lostRace(ctx, id, string(action))
	}

	s.cache.InvalidateStats(ctx)
	s.logger.Info("book transitioned",
		zap.Int64("book_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(plan.From)),
		zap.String("to", string(plan.To)),
	)
	return &dto.TransitionResult{
		BookID:    id,
		Title:     book.Title,
		Action:    action,
		From:      plan.From,
		To:        plan.To,
		UpdatedAt: at,
	}, nil
}

// ArchiveAll retires every soft-deleted book in one statement.
func (s *BookService) ArchiveAll(ctx context.Context) (*dto.SetTransitionResult, error) {
	return s.transitionAll(ctx, models.BookActionArchive)
}

// RestoreAll reactivates every soft-deleted book in one statement.
func (s *BookService) RestoreAll(ctx context.Context) (*dto.SetTransitionResult, error) {
	return s.transitionAll(ctx, models.BookActionRestore)
}

func (s *BookService) transitionAll(ctx context.Context, action models.BookAction) (result *dto.SetTransitionResult, err error) {
	defer func() { s.metrics.RecordTransition(action, err) }()

	plan, err := planTransition(models.BookStatusDeleted, action)
	if err != nil {
		return nil, err
	}
	refs, err := s.repo.TransitionAll(ctx, plan.From, plan.To, s.now())
	if err != nil {
		return nil, storeWriteError(err, "failed to "+string(action)+" deleted books")
	}
	if refs == nil {
		refs = []models.BookRef{}
	}
	if len(refs) > 0 {
		s.cache.InvalidateStats(ctx)
	}
	s.logger.Info("set-wise transition applied", zap.String("action", string(action)), zap.Int("affected", len(refs)))
	return &dto.SetTransitionResult{Action: action, Affected: len(refs), Books: refs}, nil
}

// SetCategory reassigns the category of an active book. Assigning the current category is a no-op.
func (s *BookService) SetCategory(ctx context.Context, id int64, categoryID int) (*dto.CategoryChange, error) {
	if !models.ValidCategory(categoryID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "categoryId must be between 1 and 6")
	}
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(book.Status, "change category of"); err != nil {
		return nil, err
	}

	change := &dto.CategoryChange{
		BookID:          id,
		Title:           book.Title,
		OldCategoryID:   book.CategoryID,
		NewCategoryID:   categoryID,
		OldCategoryName: models.CategoryName(book.CategoryID),
		NewCategoryName: models.CategoryName(&categoryID),
	}
	if book.CategoryID != nil && *book.CategoryID == categoryID {
		return change, nil
	}

	at := s.now()
	affected, err := s.repo.SetCategory(ctx, id, categoryID, at)
	if err != nil {
		return nil, storeWriteError(err, "failed to change book category")
	}
	if affected == 0 {
		return nil, s.lostRace(ctx, id, "change category of")
	}

	s.cache.InvalidateStats(ctx)
	change.Changed = true
	change.UpdatedAt = &at
	return change, nil
}

func (s *BookService) ensureISBNFree(ctx context.Context, isbn string, excludeID int64) error {
	if isbn == "" {
		return nil
	}
	exists, err := s.repo.ExistsLiveISBN(ctx, isbn, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to validate isbn")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "isbn already exists")
	}
	return nil
}

// lostRace explains a conditional update that matched no row.
func (s *BookService) lostRace(ctx context.Context, id int64, operation string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Warn("conditional update lost race", zap.Int64("book_id", id), zap.String("operation", operation), zap.String("status", string(current.Status)))
	return appErrors.Clone(appErrors.ErrConflict, "cannot "+operation+" book: status changed concurrently to "+string(current.Status))
}

func invalidPayload(err error) error {
	messages := validation.Messages(err, bookFieldMessages)
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(messages, ", "))
}

func storeWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateISBN) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "isbn already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, message)
}
