package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/repository"
)

// memBookStore is an in-memory record store honouring the same conditional
// update and live-ISBN rules as the PostgreSQL repository.
type memBookStore struct {
	mu     sync.Mutex
	books  map[int64]*models.Book
	nextID int64

	failInsert  func(book *models.Book) error
	beginCalls  int
	statsCalls  int
	findCalls   int
	findBarrier *sync.WaitGroup
}

func newMemBookStore() *memBookStore {
	return &memBookStore{books: make(map[int64]*models.Book)}
}

func (m *memBookStore) seed(book models.Book) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	book.ID = m.nextID
	if book.Status == "" {
		book.Status = models.BookStatusActive
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if book.UpdatedAt.IsZero() {
		book.UpdatedAt = book.CreatedAt
	}
	m.books[book.ID] = &book
	return book.ID
}

func (m *memBookStore) get(id int64) models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.books[id]
}

func (m *memBookStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}

func (m *memBookStore) isbnTakenLocked(isbn string, excludeID int64) bool {
	if isbn == "" {
		return false
	}
	for _, b := range m.books {
		if b.ID != excludeID && b.ISBN == isbn && b.Status != models.BookStatusArchived {
			return true
		}
	}
	return false
}

func (m *memBookStore) Create(_ context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isbnTakenLocked(book.ISBN, 0) {
		return fmt.Errorf("create book: %w", repository.ErrDuplicateISBN)
	}
	m.nextID++
	book.ID = m.nextID
	book.Status = models.BookStatusActive
	book.UpdatedAt = book.CreatedAt
	stored := *book
	m.books[book.ID] = &stored
	return nil
}

func (m *memBookStore) FindByID(_ context.Context, id int64) (*models.Book, error) {
	m.mu.Lock()
	call := m.findCalls
	m.findCalls++
	book, ok := m.books[id]
	var copied models.Book
	if ok {
		copied = *book
	}
	barrier := m.findBarrier
	m.mu.Unlock()

	if barrier != nil && call < 2 {
		barrier.Done()
		barrier.Wait()
	}
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &copied, nil
}

func (m *memBookStore) ExistsLiveISBN(_ context.Context, isbn string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isbnTakenLocked(isbn, excludeID), nil
}

func (m *memBookStore) UpdateFields(_ context.Context, id int64, update models.BookFieldUpdate, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok || book.Status != models.BookStatusActive {
		return 0, nil
	}
	if update.ISBN != nil && m.isbnTakenLocked(*update.ISBN, id) {
		return 0, fmt.Errorf("update book: %w", repository.ErrDuplicateISBN)
	}
	if update.Title != nil {
		book.Title = *update.Title
	}
	if update.Author != nil {
		book.Author = *update.Author
	}
	if update.ISBN != nil {
		book.ISBN = *update.ISBN
	}
	if update.CategoryID != nil {
		book.CategoryID = update.CategoryID
	}
	if update.PublishYear != nil {
		book.PublishYear = update.PublishYear
	}
	if update.Quantity != nil {
		book.Quantity = *update.Quantity
	}
	if update.Description != nil {
		book.Description = *update.Description
	}
	if update.ImagePath != nil {
		book.ImagePath = *update.ImagePath
	}
	book.UpdatedAt = at
	return 1, nil
}

func (m *memBookStore) TransitionStatus(_ context.Context, id int64, from, to models.BookStatus, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok || book.Status != from {
		return 0, nil
	}
	book.Status = to
	book.UpdatedAt = at
	return 1, nil
}

func (m *memBookStore) TransitionAll(_ context.Context, from, to models.BookStatus, at time.Time) ([]models.BookRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []models.BookRef
	for _, book := range m.books {
		if book.Status != from {
			continue
		}
		book.Status = to
		book.UpdatedAt = at
		refs = append(refs, models.BookRef{ID: book.ID, Title: book.Title, Author: book.Author})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (m *memBookStore) SetCategory(_ context.Context, id int64, categoryID int, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok || book.Status != models.BookStatusActive {
		return 0, nil
	}
	book.CategoryID = &categoryID
	book.UpdatedAt = at
	return 1, nil
}

func (m *memBookStore) inView(book *models.Book, view models.CatalogView) bool {
	if view == models.CatalogViewDeleted {
		return book.Status == models.BookStatusDeleted
	}
	return book.Status != models.BookStatusArchived
}

func (m *memBookStore) List(_ context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Book
	search := strings.ToLower(filter.Search)
	for _, book := range m.books {
		if !m.inView(book, filter.View) {
			continue
		}
		if filter.Status != "" && book.Status != filter.Status {
			continue
		}
		if filter.CategoryID != nil && (book.CategoryID == nil || *book.CategoryID != *filter.CategoryID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(book.Title+"\x00"+book.Author+"\x00"+book.ISBN), search) {
			continue
		}
		matched = append(matched, *book)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (m *memBookStore) Stats(_ context.Context, view models.CatalogView) (*models.CatalogStats, []models.CategoryStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsCalls++
	stats := &models.CatalogStats{}
	byCategory := map[int]*models.CategoryStat{}
	for _, book := range m.books {
		if !m.inView(book, view) {
			continue
		}
		stats.TotalBooks++
		stats.TotalCopies += book.Quantity
		key := 0
		if book.CategoryID != nil {
			key = *book.CategoryID
		}
		stat, ok := byCategory[key]
		if !ok {
			stat = &models.CategoryStat{CategoryID: book.CategoryID}
			byCategory[key] = stat
		}
		stat.BookCount++
		stat.TotalCopies += book.Quantity
	}
	if stats.TotalBooks > 0 {
		stats.AvgQuantityPerBook = float64(stats.TotalCopies) / float64(stats.TotalBooks)
	}
	var categories []models.CategoryStat
	for key, stat := range byCategory {
		if key != 0 {
			stats.DistinctCategories++
		}
		stat.CategoryName = models.CategoryName(stat.CategoryID)
		categories = append(categories, *stat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].BookCount > categories[j].BookCount })
	return stats, categories, nil
}

func (m *memBookStore) BeginImport(_ context.Context) (repository.ImportTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginCalls++
	return &memImportTx{store: m}, nil
}

type memImportTx struct {
	store   *memBookStore
	pending []*models.Book
	aborted bool
	done    bool
}

func (t *memImportTx) Insert(_ context.Context, book *models.Book) error {
	if t.aborted {
		return repository.ErrImportAborted
	}
	if hook := t.store.failInsert; hook != nil {
		if err := hook(book); err != nil {
			if err == repository.ErrImportAborted {
				t.aborted = true
			}
			return err
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if book.ISBN != "" {
		if t.store.isbnTakenLocked(book.ISBN, 0) {
			return repository.ErrDuplicateISBN
		}
		for _, p := range t.pending {
			if p.ISBN == book.ISBN {
				return repository.ErrDuplicateISBN
			}
		}
	}
	t.store.nextID++
	book.ID = t.store.nextID
	book.Status = models.BookStatusActive
	book.UpdatedAt = book.CreatedAt
	stored := *book
	t.pending = append(t.pending, &stored)
	return nil
}

func (t *memImportTx) Commit() error {
	if t.aborted {
		return repository.ErrImportAborted
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, book := range t.pending {
		t.store.books[book.ID] = book
	}
	t.done = true
	return nil
}

func (t *memImportTx) Rollback() error {
	t.pending = nil
	t.done = true
	return nil
}
