package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/service"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

type exportServiceMock struct {
	file       *service.ExportFile
	err        error
	lastQuery  dto.ListBooksQuery
	lastFormat service.ExportFormat
}

func (m *exportServiceMock) Template() (*service.ExportFile, error) {
	return m.file, m.err
}

func (m *exportServiceMock) Export(ctx context.Context, q dto.ListBooksQuery, format service.ExportFormat) (*service.ExportFile, error) {
	m.lastQuery = q
	m.lastFormat = format
	return m.file, m.err
}

func TestExportHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &exportServiceMock{file: &service.ExportFile{
		Filename:    "book_import_template.csv",
		ContentType: "text/csv; charset=utf-8",
		Content:     []byte("Title,Author\n"),
	}}
	handler := NewExportHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/books/import/template", nil)

	handler.Template(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="book_import_template.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Title,Author\n", w.Body.String())
}

func TestExportHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &exportServiceMock{file: &service.ExportFile{Filename: "books_deleted.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}}
	handler := NewExportHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/books/export?format=pdf&view=deleted&search=dune", nil)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatPDF, svc.lastFormat)
	assert.Equal(t, models.CatalogViewDeleted, svc.lastQuery.View)
	assert.Equal(t, "dune", svc.lastQuery.Search)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestExportHandlerUnknownViewFallsBackToMain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &exportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")}
	handler := NewExportHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/books/export?format=xlsx&view=archive", nil)

	handler.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.CatalogViewMain, svc.lastQuery.View)
}
