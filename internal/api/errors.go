package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gofolio/internal/content"
)

const maxLimit = 100

// respondError maps repository errors to HTTP responses.
func respondError(c *gin.Context, err error, entityType, operation string) {
	switch {
	case errors.Is(err, content.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": entityType + " not found"})
	case errors.Is(err, content.ErrStoreUnavailable):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content store unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + operation + " " + entityType})
	}
}

// respondBindError reports a request body that failed to bind.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request payload",
		"details": err.Error(),
	})
}

func notFound(c *gin.Context, entityType string) {
	c.JSON(http.StatusNotFound, gin.H{"error": entityType + " not found"})
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, content.ValidationError(name, "must be a boolean")
	}
	return &v, nil
}

// queryLimit parses the optional limit parameter; 0 means no limit.
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > maxLimit {
		return 0, content.ValidationError("limit", "must be between 0 and "+strconv.Itoa(maxLimit))
	}
	return v, nil
}
