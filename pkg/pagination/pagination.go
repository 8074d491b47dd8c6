package pagination

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrInvalidParams is returned when page or pageSize is malformed or out of
// range.
var ErrInvalidParams = errors.New("invalid pagination parameters")

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext parses ?page (>=1, default 1) and ?pageSize (1..100, default
// 20). Absent values take the defaults; anything else that does not parse or
// is out of range is an error.
func FromContext(c echo.Context) (Params, error) {
	p := Params{Page: 1, PageSize: DefaultPageSize}

	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("%w: page=%q", ErrInvalidParams, v)
		}
		p.Page = n
	}
	if v := c.QueryParam("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageSize {
			return p, fmt.Errorf("%w: pageSize=%q", ErrInvalidParams, v)
		}
		p.PageSize = n
	}
	return p, nil
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit is PageSize.
func (p Params) Limit() int {
	return p.PageSize
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.PageSize, p.Offset())
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.PageSize < total
}

// Response wraps a paginated API response.
type Response struct {
	Data     interface{} `json:"data"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

func NewResponse(data interface{}, total, page, pageSize int) *Response {
	return &Response{
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
}
