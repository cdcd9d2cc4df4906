package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/response"
)

type bookService interface {
	Get(ctx context.Context, id int64) (*models.Book, error)
	Create(ctx context.Context, req dto.CreateBookRequest) (*models.Book, error)
	Update(ctx context.Context, id int64, req dto.UpdateBookRequest) (*models.Book, error)
	Delete(ctx context.Context, id int64) (*dto.TransitionResult, error)
	Restore(ctx context.Context, id int64) (*dto.TransitionResult, error)
	Archive(ctx context.Context, id int64) (*dto.TransitionResult, error)
	ArchiveAll(ctx context.Context) (*dto.SetTransitionResult, error)
	RestoreAll(ctx context.Context) (*dto.SetTransitionResult, error)
	SetCategory(ctx context.Context, id int64, categoryID int) (*dto.CategoryChange, error)
}

type catalogService interface {
	List(ctx context.Context, q dto.ListBooksQuery) (*dto.BookPage, error)
}

// BookHandler exposes single-record catalog endpoints and listings.
type BookHandler struct {
	books   bookService
	catalog catalogService
}

// NewBookHandler builds a book handler.
func NewBookHandler(books bookService, catalog catalogService) *BookHandler {
	return &BookHandler{books: books, catalog: catalog}
}

// List godoc
// @Summary List the main catalog view
// @Tags Books
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Param search query string false "Title, author or ISBN fragment"
// @Param category query string false "Category ID"
// @Param status query string false "active or deleted"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	h.list(c, models.CatalogViewMain)
}

// ListDeleted godoc
// @Summary List the deleted view
// @Tags Books
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Param search query string false "Title, author or ISBN fragment"
// @Param category query string false "Category ID"
// @Success 200 {object} response.Envelope
// @Router /books/deleted [get]
func (h *BookHandler) ListDeleted(c *gin.Context) {
	h.list(c, models.CatalogViewDeleted)
}

func (h *BookHandler) list(c *gin.Context, view models.CatalogView) {
	page, err := h.catalog.List(c.Request.Context(), listQuery(c, view))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Books, page.Pagination, map[string]interface{}{
		"stats":         page.Stats,
		"categoryStats": page.CategoryStats,
		"filters":       page.Filters,
	})
}

func listQuery(c *gin.Context, view models.CatalogView) dto.ListBooksQuery {
	return dto.ListBooksQuery{
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
		View:     view,
	}
}

// Get godoc
// @Summary Get a book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	id, err := bookIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	book, err := h.books.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Create godoc
// @Summary Create a book
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid book payload"))
		return
	}
	book, err := h.books.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Update godoc
// @Summary Update descriptive fields of an active book
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.UpdateBookRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	id, err := bookIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid book payload"))
		return
	}
	book, err := h.books.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Delete godoc
// @Summary Soft delete a book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	h.transition(c, h.books.Delete)
}

// Restore godoc
// @Summary Restore a soft-deleted book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/restore [post]
func (h *BookHandler) Restore(c *gin.Context) {
	h.transition(c, h.books.Restore)
}

// Archive godoc
// @Summary Archive a deleted book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/archive [post]
func (h *BookHandler) Archive(c *gin.Context) {
	h.transition(c, h.books.Archive)
}

func (h *BookHandler) transition(c *gin.Context, apply func(context.Context, int64) (*dto.TransitionResult, error)) {
	id, err := bookIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := apply(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ArchiveAll godoc
// @Summary Archive every deleted book
// @Tags Books
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /books/archive-all [post]
func (h *BookHandler) ArchiveAll(c *gin.Context) {
	result, err := h.books.ArchiveAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RestoreAll godoc
// @Summary Restore every deleted book
// @Tags Books
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /books/restore-all [post]
func (h *BookHandler) RestoreAll(c *gin.Context) {
	result, err := h.books.RestoreAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SetCategory godoc
// @Summary Reassign a book's category
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param payload body dto.SetCategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/category [patch]
func (h *BookHandler) SetCategory(c *gin.Context) {
	id, err := bookIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SetCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}
	change, err := h.books.SetCategory(c.Request.Context(), id, req.CategoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}
