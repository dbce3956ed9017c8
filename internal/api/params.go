package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loadpress/loadpress/internal/database"
)

// parseIDParam extracts a positive int64 path parameter.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		BadRequestResponse(c, "Invalid "+name+" parameter")
		return 0, false
	}
	return id, true
}

// parsePagination reads page and page_size query parameters, falling back to
// defaults for missing or out-of-range values.
func parsePagination(c *gin.Context) *database.Pagination {
	p := &database.Pagination{}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		p.PageSize = v
	}
	return database.DefaultPagination(p)
}

// queryInt64 returns a pointer to an int64 query parameter, or nil when the
// parameter is absent or malformed.
func queryInt64(c *gin.Context, name string) *int64 {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &v
		}
	}
	return nil
}

func paginationMeta(p *database.Pagination, total int64) *Meta {
	return &Meta{Pagination: NewPagination(p.Page, p.PageSize, total)}
}
