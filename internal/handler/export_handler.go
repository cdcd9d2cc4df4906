package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/service"
	"github.com/noah-isme/library-catalog-api/pkg/response"
)

type exportService interface {
	Template() (*service.ExportFile, error)
	Export(ctx context.Context, q dto.ListBooksQuery, format service.ExportFormat) (*service.ExportFile, error)
}

// ExportHandler serves downloadable catalog files.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds an export handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Template godoc
// @Summary Download the CSV import template
// @Tags Import
// @Produce text/csv
// @Success 200 {file} file
// @Router /books/import/template [get]
func (h *ExportHandler) Template(c *gin.Context) {
	file, err := h.service.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	attach(c, file)
}

// Export godoc
// @Summary Export the catalog listing as CSV or PDF
// @Tags Books
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param view query string false "main (default) or deleted"
// @Param search query string false "Title, author or ISBN fragment"
// @Param category query string false "Category ID"
// @Param status query string false "active or deleted"
// @Success 200 {file} file
// @Router /books/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	view := models.CatalogView(c.DefaultQuery("view", string(models.CatalogViewMain)))
	if view != models.CatalogViewDeleted {
		view = models.CatalogViewMain
	}
	file, err := h.service.Export(c.Request.Context(), listQuery(c, view), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	attach(c, file)
}

func attach(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
