package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/library-catalog-api/internal/models"
)

const (
	dialectPostgres     = "postgres"
	tableBooks          = "books"
	uniqueViolationCode = "23505"
)

// ErrDuplicateISBN is returned when the live-ISBN unique index rejects a write.
var ErrDuplicateISBN = errors.New("isbn already exists")

var bookColumns = []interface{}{
	"id", "title", "author", "isbn", "category_id", "publish_year", "quantity",
	"description", "image_path", "status", "created_at", "updated_at",
}

// BookRepository manages persistence for catalog records.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts a new active book and fills its identity and timestamps.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	return insertBook(ctx, r.db, book)
}

func insertBook(ctx context.Context, q sqlx.QueryerContext, book *models.Book) error {
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	book.Status = models.BookStatusActive

	const query = `INSERT INTO books (title, author, isbn, category_id, publish_year, quantity, description, image_path, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := q.QueryRowxContext(ctx, query,
		book.Title, book.Author, book.ISBN, book.CategoryID, book.PublishYear, book.Quantity,
		book.Description, book.ImagePath, book.Status, book.CreatedAt, book.UpdatedAt,
	).Scan(&book.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create book: %w", ErrDuplicateISBN)
		}
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// FindByID fetches a book in any status.
func (r *BookRepository) FindByID(ctx context.Context, id int64) (*models.Book, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find book query: %w", err)
	}
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		return nil, err
	}
	return &book, nil
}

// ExistsLiveISBN reports whether an active or deleted book other than excludeID holds isbn.
func (r *BookRepository) ExistsLiveISBN(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	const query = `SELECT 1 FROM books WHERE isbn = $1 AND status IN ('active', 'deleted') AND id <> $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, isbn, excludeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check isbn: %w", err)
	}
	return true, nil
}

// UpdateFields writes the provided fields of an active book and returns the affected row count.
func (r *BookRepository) UpdateFields(ctx context.Context, id int64, update models.BookFieldUpdate, at time.Time) (int64, error) {
	record := goqu.Record{"updated_at": at}
	if update.Title != nil {
		record["title"] = *update.Title
	}
	if update.Author != nil {
		record["author"] = *update.Author
	}
	if update.ISBN != nil {
		record["isbn"] = *update.ISBN
	}
	if update.CategoryID != nil {
		record["category_id"] = *update.CategoryID
	}
	if update.PublishYear != nil {
		record["publish_year"] = *update.PublishYear
	}
	if update.Quantity != nil {
		record["quantity"] = *update.Quantity
	}
	if update.Description != nil {
		record["description"] = *update.Description
	}
	if update.ImagePath != nil {
		record["image_path"] = *update.ImagePath
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		Update(tableBooks).
		Set(record).
		Where(goqu.C("id").Eq(id), goqu.C("status").Eq(models.BookStatusActive)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build update book query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("update book: %w", ErrDuplicateISBN)
		}
		return 0, fmt.Errorf("update book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check book update rows: %w", err)
	}
	return affected, nil
}

// TransitionStatus moves one book from -> to only if it is still in from.
func (r *BookRepository) TransitionStatus(ctx context.Context, id int64, from, to models.BookStatus, at time.Time) (int64, error) {
	const query = `UPDATE books SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("transition book status: %w", ErrDuplicateISBN)
		}
		return 0, fmt.Errorf("transition book status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check book transition rows: %w", err)
	}
	return affected, nil
}

// TransitionAll moves every book in from to to in a single statement.
func (r *BookRepository) TransitionAll(ctx context.Context, from, to models.BookStatus, at time.Time) ([]models.BookRef, error) {
	const query = `UPDATE books SET status = $1, updated_at = $2 WHERE status = $3 RETURNING id, title, author`
	var refs []models.BookRef
	if err := r.db.SelectContext(ctx, &refs, query, to, at, from); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transition books: %w", ErrDuplicateISBN)
		}
		return nil, fmt.Errorf("transition books: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// SetCategory reassigns the category of an active book.
func (r *BookRepository) SetCategory(ctx context.Context, id int64, categoryID int, at time.Time) (int64, error) {
	const query = `UPDATE books SET category_id = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, categoryID, at, id, models.BookStatusActive)
	if err != nil {
		return 0, fmt.Errorf("set book category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check book category rows: %w", err)
	}
	return affected, nil
}

// List returns one page of books matching filter and the total match count.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	where := filterExpressions(filter)
	order := goqu.C("created_at").Desc()
	if filter.View == models.CatalogViewDeleted {
		order = goqu.C("updated_at").Desc()
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	builder := goqu.Dialect(dialectPostgres)
	query, args, err := builder.From(tableBooks).
		Select(bookColumns...).
		Where(where...).
		Order(order, goqu.C("id").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list books query: %w", err)
	}
	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery, countArgs, err := builder.From(tableBooks).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count books query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// Stats aggregates quantity and category figures over a catalog view.
func (r *BookRepository) Stats(ctx context.Context, view models.CatalogView) (*models.CatalogStats, []models.CategoryStat, error) {
	where := viewExpressions(view)
	builder := goqu.Dialect(dialectPostgres)

	query, args, err := builder.From(tableBooks).
		Select(
			goqu.COUNT(goqu.Star()).As("total_books"),
			goqu.COALESCE(goqu.SUM("quantity"), goqu.L("0")).As("total_copies"),
			goqu.COUNT(goqu.DISTINCT("category_id")).As("distinct_categories"),
			goqu.COALESCE(goqu.AVG("quantity"), goqu.L("0")).As("avg_quantity"),
		).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, nil, fmt.Errorf("build stats query: %w", err)
	}
	var stats models.CatalogStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, nil, fmt.Errorf("catalog stats: %w", err)
	}

	breakdownQuery, breakdownArgs, err := builder.From(tableBooks).
		Select(
			goqu.C("category_id"),
			goqu.COUNT(goqu.Star()).As("book_count"),
			goqu.COALESCE(goqu.SUM("quantity"), goqu.L("0")).As("total_copies"),
		).
		Where(where...).
		GroupBy("category_id").
		Order(goqu.I("book_count").Desc(), goqu.C("category_id").Asc().NullsLast()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, nil, fmt.Errorf("build category stats query: %w", err)
	}
	var breakdown []models.CategoryStat
	if err := r.db.SelectContext(ctx, &breakdown, breakdownQuery, breakdownArgs...); err != nil {
		return nil, nil, fmt.Errorf("category stats: %w", err)
	}
	for i := range breakdown {
		breakdown[i].CategoryName = models.CategoryName(breakdown[i].CategoryID)
	}
	return &stats, breakdown, nil
}

// Ping checks store connectivity.
func (r *BookRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func viewExpressions(view models.CatalogView) []exp.Expression {
	if view == models.CatalogViewDeleted {
		return []exp.Expression{goqu.C("status").Eq(models.BookStatusDeleted)}
	}
	return []exp.Expression{goqu.C("status").Neq(models.BookStatusArchived)}
}

func filterExpressions(filter models.BookFilter) []exp.Expression {
	where := viewExpressions(filter.View)
	if filter.View != models.CatalogViewDeleted && filter.Status != "" {
		where = append(where, goqu.C("status").Eq(filter.Status))
	}
	if filter.CategoryID != nil {
		where = append(where, goqu.C("category_id").Eq(*filter.CategoryID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
		))
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(raw string) string {
	return likeEscaper.Replace(raw)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
