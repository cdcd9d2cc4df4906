package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

// CreateBookRequest is the payload for single-record inserts.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Author      string `json:"author" validate:"required,max=255"`
	ISBN        string `json:"isbn" validate:"omitempty,max=20"`
	CategoryID  *int   `json:"categoryId" validate:"omitnil,min=1,max=6"`
	PublishYear *int   `json:"publishYear" validate:"omitnil,publishyear"`
	Quantity    *int   `json:"quantity" validate:"omitnil,min=0"`
	Description string `json:"description"`
	ImagePath   string `json:"imagePath" validate:"omitempty,max=500"`
}

// Normalize trims text fields and treats a zero publish year as absent.
func (r *CreateBookRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.ISBN = strings.TrimSpace(r.ISBN)
	r.Description = strings.TrimSpace(r.Description)
	r.ImagePath = strings.TrimSpace(r.ImagePath)
	if r.PublishYear != nil && *r.PublishYear == 0 {
		r.PublishYear = nil
	}
}

// UpdateBookRequest changes any subset of descriptive fields. Unknown JSON keys are ignored.
type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=255"`
	Author      *string `json:"author" validate:"omitnil,min=1,max=255"`
	ISBN        *string `json:"isbn" validate:"omitnil,max=20"`
	CategoryID  *int    `json:"categoryId" validate:"omitnil,min=1,max=6"`
	PublishYear *int    `json:"publishYear" validate:"omitnil,publishyear"`
	Quantity    *int    `json:"quantity" validate:"omitnil,min=0"`
	Description *string `json:"description"`
	ImagePath   *string `json:"imagePath" validate:"omitnil,max=500"`
}

// Normalize trims every provided text field.
func (r *UpdateBookRequest) Normalize() {
	for _, field := range []*string{r.Title, r.Author, r.ISBN, r.Description, r.ImagePath} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// FieldUpdate converts the request into the repository's explicit update set.
func (r UpdateBookRequest) FieldUpdate() models.BookFieldUpdate {
	return models.BookFieldUpdate{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		CategoryID:  r.CategoryID,
		PublishYear: r.PublishYear,
		Quantity:    r.Quantity,
		Description: r.Description,
		ImagePath:   r.ImagePath,
	}
}

// SetCategoryRequest reassigns a book's category.
type SetCategoryRequest struct {
	CategoryID int `json:"categoryId" form:"categoryId"`
}

// TransitionResult reports one successful lifecycle transition.
type TransitionResult struct {
	BookID    int64             `json:"bookId"`
	Title     string            `json:"title"`
	Action    models.BookAction `json:"action"`
	From      models.BookStatus `json:"from"`
	To        models.BookStatus `json:"to"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// SetTransitionResult reports a set-wise transition (archive-all / restore-all).
type SetTransitionResult struct {
	Action   models.BookAction `json:"action"`
	Affected int               `json:"affected"`
	Books    []models.BookRef  `json:"books"`
}

// CategoryChange reports a category reassignment.
type CategoryChange struct {
	BookID          int64      `json:"bookId"`
	Title           string     `json:"title"`
	OldCategoryID   *int       `json:"oldCategoryId"`
	NewCategoryID   int        `json:"newCategoryId"`
	OldCategoryName string     `json:"oldCategoryName"`
	NewCategoryName string     `json:"newCategoryName"`
	Changed         bool       `json:"changed"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// ListBooksQuery captures listing query parameters.
type ListBooksQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
	Status   string
	View     models.CatalogView
}

// BookPage is one page of a catalog listing with its statistics.
type BookPage struct {
	Books         []models.Book         `json:"books"`
	Pagination    *models.Pagination    `json:"pagination"`
	Stats         models.CatalogStats   `json:"stats"`
	CategoryStats []models.CategoryStat `json:"categoryStats"`
	Filters       map[string]any        `json:"filters"`
}

// BulkOperation names the mutation applied by a bulk request.
type BulkOperation string

const (
	BulkOperationDelete      BulkOperation = "delete"
	BulkOperationRestore     BulkOperation = "restore"
	BulkOperationArchive     BulkOperation = "archive"
	BulkOperationSetCategory BulkOperation = "setCategory"
)

// BulkRequest applies one operation to many books.
type BulkRequest struct {
	IDs        []int64       `json:"ids"`
	Operation  BulkOperation `json:"operation"`
	CategoryID *int          `json:"categoryId"`
}

// BulkItemResult is the outcome for a single target.
type BulkItemResult struct {
	ID      int64            `json:"id"`
	Success bool             `json:"success"`
	Changed bool             `json:"changed"`
	Error   *appErrors.Error `json:"error,omitempty"`
}

// BulkResult aggregates per-target outcomes in input order.
type BulkResult struct {
	Operation    BulkOperation    `json:"operation"`
	Results      []BulkItemResult `json:"results"`
	SuccessCount int              `json:"successCount"`
	FailureCount int              `json:"failureCount"`
}

// Partial reports whether the batch mixed successes and failures.
func (r *BulkResult) Partial() bool {
	return r != nil && r.SuccessCount > 0 && r.FailureCount > 0
}
