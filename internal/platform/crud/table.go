// Package crud is the config-driven list/detail scaffolding shared by every
// patient record type. A Table describes where rows live and how they may be
// searched, filtered and sorted; a Resource wires a Table and a Repository to
// the standard REST routes together with the list and detail feature
// configuration the client renders.
package crud

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/validation"
	"github.com/scrypto/portal/pkg/pagination"
)

// Filter operators.
const (
	OpEq  = "="
	OpGte = ">="
	OpLte = "<="
)

// Filter maps a query parameter onto a column.
type Filter struct {
	Param  string
	Column string
	// Op defaults to OpEq. Range operators expect an ISO date.
	Op string
	// Values restricts an OpEq filter to an enumerated set.
	Values []string
}

func (f Filter) op() string {
	if f.Op == "" {
		return OpEq
	}
	return f.Op
}

func (f Filter) allows(v string) bool {
	if len(f.Values) == 0 {
		return true
	}
	for _, a := range f.Values {
		if a == v {
			return true
		}
	}
	return false
}

// Sort is one ORDER BY term.
type Sort struct {
	Column string
	Desc   bool
}

// Table describes a user-owned table and its read view.
type Table struct {
	Name          string
	View          string // defaults to "v_" + Name
	IDColumn      string // defaults to "id"
	SearchColumns []string
	Filters       []Filter
	Sorts         []string
	DefaultSort   []Sort
	SoftDelete    bool
}

func (t Table) view() string {
	if t.View != "" {
		return t.View
	}
	return "v_" + t.Name
}

// Key returns the primary key column.
func (t Table) Key() string {
	if t.IDColumn != "" {
		return t.IDColumn
	}
	return "id"
}

func (t Table) sortable(col string) bool {
	for _, s := range t.Sorts {
		if s == col {
			return true
		}
	}
	return false
}

// FilterValue is a parsed filter applied to a list query.
type FilterValue struct {
	Filter
	Value string
}

// ListQuery is the parsed form of a list request.
type ListQuery struct {
	pagination.Params
	Search  string
	Filters []FilterValue
	Sort    []Sort
}

// ParseListQuery reads page, pageSize, search, the table's filters, sort_by
// and sort_dir. Any malformed value is reported as an error; handlers answer
// 422 "Invalid query parameters".
func ParseListQuery(c echo.Context, t Table) (ListQuery, error) {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return ListQuery{}, err
	}
	q := ListQuery{Params: pg, Search: strings.TrimSpace(c.QueryParam("search"))}

	for _, f := range t.Filters {
		v := strings.TrimSpace(c.QueryParam(f.Param))
		if v == "" || v == "all" {
			continue
		}
		if !f.allows(v) {
			return ListQuery{}, validation.Fail(f.Param, "oneof")
		}
		if f.op() != OpEq {
			if err := validation.Var(f.Param, v, "isodate"); err != nil {
				return ListQuery{}, err
			}
		}
		q.Filters = append(q.Filters, FilterValue{Filter: f, Value: v})
	}

	sortBy := c.QueryParam("sort_by")
	dir := strings.ToLower(c.QueryParam("sort_dir"))
	if dir != "" && dir != "asc" && dir != "desc" {
		return ListQuery{}, validation.Fail("sort_dir", "oneof")
	}
	if sortBy != "" {
		if !t.sortable(sortBy) {
			return ListQuery{}, validation.Fail("sort_by", "oneof")
		}
		q.Sort = []Sort{{Column: sortBy, Desc: dir != "asc"}}
	} else if len(t.DefaultSort) > 0 {
		q.Sort = t.DefaultSort
	} else {
		q.Sort = []Sort{{Column: "created_at", Desc: true}}
	}
	return q, nil
}
