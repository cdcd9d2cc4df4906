package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-catalog-api/internal/models"
	"github.com/noah-isme/library-catalog-api/internal/service"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/response"
)

const importFileField = "csvFile"

type importService interface {
	Import(ctx context.Context, upload service.ImportUpload, opts models.ImportOptions) (*models.ImportResult, error)
}

// ImportHandler accepts CSV uploads of catalog records.
type ImportHandler struct {
	service importService
}

// NewImportHandler builds an import handler.
func NewImportHandler(service importService) *ImportHandler {
	return &ImportHandler{service: service}
}

// Import godoc
// @Summary Import books from a CSV file
// @Description Rows failing validation or duplicating a live ISBN are reported, not fatal.
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param csvFile formData file true "CSV file (max 5 MiB)"
// @Param skipFirstRow formData string false "true to skip the header row"
// @Param validateData formData string false "true to validate each row"
// @Param skipDuplicates formData string false "true to skip ISBNs already in the catalog"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /books/import [post]
func (h *ImportHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile(importFileField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "csvFile is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	opts := models.ImportOptions{
		SkipFirstRow:   formFlag(c, "skipFirstRow"),
		ValidateData:   formFlag(c, "validateData"),
		SkipDuplicates: formFlag(c, "skipDuplicates"),
	}
	upload := service.ImportUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	}
	result, err := h.service.Import(c.Request.Context(), upload, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	var details interface{}
	if !result.Details.Empty() {
		details = result.Details
	}
	meta := map[string]interface{}{"batchId": result.BatchID}
	if result.Partial() {
		meta["code"] = appErrors.ErrPartialBatch.Code
	}
	response.Report(c, http.StatusOK, result.Committed(), importMessage(result.Counts), result.Counts, details, meta)
}

func importMessage(counts models.ImportCounts) string {
	if counts.SuccessCount == 0 {
		return "no books were imported"
	}
	message := fmt.Sprintf("imported %d books", counts.SuccessCount)
	var skipped []string
	if counts.DuplicateCount > 0 {
		skipped = append(skipped, fmt.Sprintf("%d duplicates skipped", counts.DuplicateCount))
	}
	if counts.ValidationErrorCount > 0 {
		skipped = append(skipped, fmt.Sprintf("%d rows rejected", counts.ValidationErrorCount))
	}
	if counts.ErrorCount > 0 {
		skipped = append(skipped, fmt.Sprintf("%d rows failed", counts.ErrorCount))
	}
	if len(skipped) > 0 {
		message += " (" + strings.Join(skipped, ", ") + ")"
	}
	return message
}
