package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

// bookIDParam reads the :id path parameter as a positive book id.
func bookIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "book id must be a positive integer")
	}
	return id, nil
}

// formFlag is true only for the literal string "true".
func formFlag(c *gin.Context, key string) bool {
	return strings.TrimSpace(c.PostForm(key)) == "true"
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}
