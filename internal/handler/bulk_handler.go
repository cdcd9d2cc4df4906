package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/response"
)

type bulkService interface {
	Apply(ctx context.Context, req dto.BulkRequest) (*dto.BulkResult, error)
}

// BulkHandler applies one operation to many books.
type BulkHandler struct {
	service bulkService
}

// NewBulkHandler builds a bulk handler.
func NewBulkHandler(service bulkService) *BulkHandler {
	return &BulkHandler{service: service}
}

// Apply godoc
// @Summary Apply delete, restore, archive or setCategory to many books
// @Description Each target succeeds or fails on its own; results keep the request order.
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /books/bulk [post]
func (h *BulkHandler) Apply(c *gin.Context) {
	var req dto.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if result.Partial() {
		meta = map[string]interface{}{"code": appErrors.ErrPartialBatch.Code}
	}
	response.Report(c, http.StatusOK, result.SuccessCount > 0, "", result, nil, meta)
}
