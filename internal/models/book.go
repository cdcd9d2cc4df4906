package models

import "time"

// BookStatus is the lifecycle state of a catalog record.
type BookStatus string

const (
	BookStatusActive   BookStatus = "active"
	BookStatusDeleted  BookStatus = "deleted"
	BookStatusArchived BookStatus = "archived"
)

// Valid reports whether s is one of the known lifecycle states.
func (s BookStatus) Valid() bool {
	switch s {
	case BookStatusActive, BookStatusDeleted, BookStatusArchived:
		return true
	default:
		return false
	}
}

// BookAction names a lifecycle transition request.
type BookAction string

const (
	BookActionDelete  BookAction = "delete"
	BookActionRestore BookAction = "restore"
	BookActionArchive BookAction = "archive"
)

// Book is the central catalog record.
type Book struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Author      string     `db:"author" json:"author"`
	ISBN        string     `db:"isbn" json:"isbn"`
	CategoryID  *int       `db:"category_id" json:"categoryId"`
	PublishYear *int       `db:"publish_year" json:"publishYear"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Description string     `db:"description" json:"description"`
	ImagePath   string     `db:"image_path" json:"imagePath"`
	Status      BookStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// BookRef identifies a book affected by a set-wise transition.
type BookRef struct {
	ID     int64  `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
}

// BookFieldUpdate lists the descriptive fields a caller may change. Nil means untouched.
type BookFieldUpdate struct {
	Title       *string
	Author      *string
	ISBN        *string
	CategoryID  *int
	PublishYear *int
	Quantity    *int
	Description *string
	ImagePath   *string
}

// Empty reports whether no field is set.
func (u BookFieldUpdate) Empty() bool {
	return u.Title == nil && u.Author == nil && u.ISBN == nil && u.CategoryID == nil &&
		u.PublishYear == nil && u.Quantity == nil && u.Description == nil && u.ImagePath == nil
}

// CatalogView selects which slice of the catalog a listing reads.
type CatalogView string

const (
	CatalogViewMain    CatalogView = "main"
	CatalogViewDeleted CatalogView = "deleted"
)

// BookFilter narrows listing queries.
type BookFilter struct {
	View       CatalogView
	Status     BookStatus
	Search     string
	CategoryID *int
	Limit      int
	Offset     int
}

// CatalogStats aggregates counts over one catalog view.
type CatalogStats struct {
	TotalBooks         int     `db:"total_books" json:"totalBooks"`
	TotalCopies        int     `db:"total_copies" json:"totalCopies"`
	DistinctCategories int     `db:"distinct_categories" json:"distinctCategories"`
	AvgQuantityPerBook float64 `db:"avg_quantity" json:"avgQuantityPerBook"`
}

// CategoryStat is one row of the per-category breakdown.
type CategoryStat struct {
	CategoryID   *int   `db:"category_id" json:"categoryId"`
	CategoryName string `db:"-" json:"categoryName"`
	BookCount    int    `db:"book_count" json:"bookCount"`
	TotalCopies  int    `db:"total_copies" json:"totalCopies"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
	ShowingFrom int  `json:"showing_from"`
	ShowingTo   int  `json:"showing_to"`
}

// NewPagination derives page metadata from a total count.
func NewPagination(page, size, total int) *Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	offset := (page - 1) * size
	p := &Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
	if total > 0 {
		p.ShowingFrom = offset + 1
		p.ShowingTo = min(offset+size, total)
		if p.ShowingFrom > total {
			p.ShowingFrom, p.ShowingTo = 0, 0
		}
	}
	return p
}
