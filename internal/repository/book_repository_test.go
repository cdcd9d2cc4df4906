package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-catalog-api/internal/models"
)

var bookRowColumns = []string{"id", "title", "author", "isbn", "category_id", "publish_year", "quantity", "description", "image_path", "status", "created_at", "updated_at"}

func newBookMock(t *testing.T) (*BookRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewBookRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func intPtr(v int) *int { return &v }

func TestBookRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO books").
		WithArgs("Clean Code", "Robert C. Martin", "9780132350884", 1, 2008, 5, "", "", models.BookStatusActive, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	book := &models.Book{Title: "Clean Code", Author: "Robert C. Martin", ISBN: "9780132350884", CategoryID: intPtr(1), PublishYear: intPtr(2008), Quantity: 5}
	require.NoError(t, repo.Create(context.Background(), book))
	assert.Equal(t, int64(7), book.ID)
	assert.Equal(t, models.BookStatusActive, book.Status)
	assert.Equal(t, book.CreatedAt, book.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryCreateDuplicateISBN(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO books").WillReturnError(&pq.Error{Code: "23505", Constraint: "books_isbn_live_key"})

	err := repo.Create(context.Background(), &models.Book{Title: "A", Author: "B", ISBN: "1234567890"})
	assert.ErrorIs(t, err, ErrDuplicateISBN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM "books" WHERE \("id" = \$1\)`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow(5, "Dune", "Frank Herbert", "", nil, 1965, 2, "", "", "deleted", now, now))

	book, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Nil(t, book.CategoryID)
	require.NotNil(t, book.PublishYear)
	assert.Equal(t, 1965, *book.PublishYear)
	assert.Equal(t, models.BookStatusDeleted, book.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryFindByIDMissing(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "books"`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestBookRepositoryExistsLiveISBN(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	query := regexp.QuoteMeta("SELECT 1 FROM books WHERE isbn = $1 AND status IN ('active', 'deleted') AND id <> $2 LIMIT 1")
	mock.ExpectQuery(query).WithArgs("1234567890", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(query).WithArgs("0987654321", int64(4)).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsLiveISBN(context.Background(), "1234567890", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsLiveISBN(context.Background(), "0987654321", 4)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryUpdateFieldsOnlyActive(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	title := "Refactoring"
	mock.ExpectExec(`UPDATE "books" SET .*"title"=.*WHERE \(\("id" = \$\d+\) AND \("status" = \$\d+\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateFields(context.Background(), 3, models.BookFieldUpdate{Title: &title}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryTransitionStatus(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("UPDATE books SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")
	mock.ExpectExec(query).WithArgs(models.BookStatusDeleted, at, int64(3), models.BookStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(models.BookStatusDeleted, at, int64(3), models.BookStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.TransitionStatus(context.Background(), 3, models.BookStatusActive, models.BookStatusDeleted, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.TransitionStatus(context.Background(), 3, models.BookStatusActive, models.BookStatusDeleted, at)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryTransitionAll(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	at := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE books SET status = $1, updated_at = $2 WHERE status = $3 RETURNING id, title, author")).
		WithArgs(models.BookStatusArchived, at, models.BookStatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author"}).
			AddRow(9, "B", "Author B").
			AddRow(2, "A", "Author A"))

	refs, err := repo.TransitionAll(context.Background(), models.BookStatusDeleted, models.BookStatusArchived, at)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, int64(2), refs[0].ID)
	assert.Equal(t, int64(9), refs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryTransitionAllUniqueViolation(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE books SET status").WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.TransitionAll(context.Background(), models.BookStatusArchived, models.BookStatusActive, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateISBN)
}

func TestBookRepositorySetCategory(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET category_id = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs(4, at, int64(8), models.BookStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.SetCategory(context.Background(), 8, 4, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListMainView(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM "books" WHERE .*"status" != .*"category_id" = .*"title" ILIKE .* ORDER BY "created_at" DESC, "id" DESC`).
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow(1, "50% Off", "Someone", "", 1, nil, 1, "", "", "active", now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "books" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	books, total, err := repo.List(context.Background(), models.BookFilter{
		View:       models.CatalogViewMain,
		Search:     " 50% ",
		CategoryID: intPtr(1),
		Limit:      10,
		Offset:     10,
	})
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListDeletedView(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "books" WHERE \("status" = \$1\) ORDER BY "updated_at" DESC, "id" DESC`).
		WillReturnRows(sqlmock.NewRows(bookRowColumns))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "books" WHERE \("status" = \$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	books, total, err := repo.List(context.Background(), models.BookFilter{View: models.CatalogViewDeleted, Status: models.BookStatusActive})
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryStats(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS "total_books", COALESCE\(SUM\("quantity"\), 0\) AS "total_copies", .*COALESCE\(AVG\("quantity"\), 0\) AS "avg_quantity" FROM "books" WHERE \("status" != \$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"total_books", "total_copies", "distinct_categories", "avg_quantity"}).
			AddRow(3, 10, 2, 3.3333))
	mock.ExpectQuery(`SELECT "category_id", .*COALESCE\(SUM\("quantity"\), 0\) AS "total_copies" FROM "books" WHERE \("status" != \$1\) GROUP BY "category_id"`).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "book_count", "total_copies"}).
			AddRow(1, 2, 7).
			AddRow(nil, 1, 3))

	stats, breakdown, err := repo.Stats(context.Background(), models.CatalogViewMain)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBooks)
	assert.Equal(t, 10, stats.TotalCopies)
	assert.InDelta(t, 3.3333, stats.AvgQuantityPerBook, 0.0001)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "Technology", breakdown[0].CategoryName)
	assert.Equal(t, "Unknown", breakdown[1].CategoryName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookImportTxAbsorbsFailedInsert(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO books").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("^RELEASE SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO books").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO books").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec("^RELEASE SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := repo.BeginImport(ctx)
	require.NoError(t, err)

	first := &models.Book{Title: "A", Author: "X"}
	require.NoError(t, tx.Insert(ctx, first))
	assert.ErrorIs(t, tx.Insert(ctx, &models.Book{Title: "B", Author: "Y", ISBN: "1234567890"}), ErrDuplicateISBN)
	third := &models.Book{Title: "C", Author: "Z"}
	require.NoError(t, tx.Insert(ctx, third))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(3), third.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookImportTxAbortsWhenSavepointRollbackFails(t *testing.T) {
	repo, mock, cleanup := newBookMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT import_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO books").WillReturnError(errors.New("connection reset"))
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT import_row").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := repo.BeginImport(ctx)
	require.NoError(t, err)

	err = tx.Insert(ctx, &models.Book{Title: "A", Author: "X"})
	assert.ErrorIs(t, err, ErrImportAborted)
	assert.ErrorIs(t, tx.Insert(ctx, &models.Book{Title: "B", Author: "Y"}), ErrImportAborted)
	assert.ErrorIs(t, tx.Commit(), ErrImportAborted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b\\c`, escapeLike(`a_b\c`))
}
