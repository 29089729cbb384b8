package helpers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/repository"
)

// ListParams are the query parameters every listing endpoint accepts
type ListParams struct {
	SearchBy string `form:"search_by"`
	Term     string `form:"term"`
	OrderBy  string `form:"order_by"`
	Desc     bool   `form:"desc"`
	Offset   int    `form:"offset" binding:"gte=0"`
	Limit    int    `form:"limit" binding:"gte=0,lte=100"`
}

// BindListQuery reads the listing parameters of c into a typed query.
// Column names are validated by the store against its closed field set.
func BindListQuery[K ~string](c *gin.Context) (repository.ListQuery[K], error) {
	var p ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		return repository.ListQuery[K]{}, fmt.Errorf("%w: %v", biddingerrors.ErrInvalidFilter, err)
	}
	return repository.ListQuery[K]{
		SearchBy: K(p.SearchBy),
		Term:     p.Term,
		OrderBy:  K(p.OrderBy),
		Desc:     p.Desc,
		Offset:   p.Offset,
		Limit:    p.Limit,
	}, nil
}

// PageParams reads offset and limit for endpoints with a fixed filter
func PageParams(c *gin.Context) (offset, limit int, err error) {
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must be a non-negative integer", biddingerrors.ErrInvalidFilter)
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 || limit > repository.MaxLimit {
			return 0, 0, fmt.Errorf("%w: limit must be between 0 and %d", biddingerrors.ErrInvalidFilter, repository.MaxLimit)
		}
	}
	return offset, limit, nil
}
