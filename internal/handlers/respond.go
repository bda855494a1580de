package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
)

// respondError writes the error body for err. Internal errors are attached to
// the context for the request logger and answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// dbError maps record-not-found to a NotFound error naming what.
func dbError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
	}
	return err
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"error": msg})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+param)
		return 0, false
	}
	return uint(id), true
}

type page struct {
	Page  int
	Limit int
}

func (p page) Offset() int { return (p.Page - 1) * p.Limit }

func parsePage(c *gin.Context, defaultLimit, maxLimit int) page {
	p := page{Page: 1, Limit: defaultLimit}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxLimit)
	}
	return p
}

// pagination builds the pagination block the web client reads. totalKey names
// the total counter, for example "totalQuestions".
func pagination(p page, total int64, totalKey string) gin.H {
	return gin.H{
		"currentPage": p.Page,
		"totalPages":  int(math.Ceil(float64(total) / float64(p.Limit))),
		totalKey:      total,
		"hasNext":     int64(p.Page*p.Limit) < total,
		"hasPrev":     p.Page > 1,
	}
}

var ugc = bluemonday.UGCPolicy()

// sanitizeHTML strips markup the rich text editor cannot legitimately produce.
func sanitizeHTML(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}

func orderDirection(order string) string {
	if strings.EqualFold(order, "asc") {
		return "ASC"
	}
	return "DESC"
}
