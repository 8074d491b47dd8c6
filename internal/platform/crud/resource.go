package crud

import (
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/validation"
	"github.com/scrypto/portal/pkg/pagination"
)

// Resource serves the standard routes for T, created from C and updated
// from U.
type Resource[T any, C any, U any] struct {
	Table  Table
	Repo   Repository[T]
	List   ListFeature[T]
	Detail DetailFeature[T]
	// CheckCreate and CheckUpdate run cross-field rules after tag validation.
	CheckCreate func(*C) error
	CheckUpdate func(*U) error
}

// RegisterRoutes mounts the routes on g, which is already scoped to the
// resource's base path.
func (r *Resource[T, C, U]) RegisterRoutes(g *echo.Group) {
	g.GET("", r.handleList)
	g.POST("", r.handleCreate)
	g.GET("/_config", r.handleConfig)
	g.GET("/:id", r.handleGet)
	g.PUT("/:id", r.handleUpdate)
	g.DELETE("/:id", r.handleDelete)
}

func (r *Resource[T, C, U]) entity() string {
	if r.List.EntityName != "" {
		return r.List.EntityName
	}
	return "Record"
}

func (r *Resource[T, C, U]) handleList(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	q, err := ParseListQuery(c, r.Table)
	if err != nil {
		return httperr.InvalidQuery()
	}

	rows, total, err := r.Repo.List(c.Request().Context(), userID, q)
	if err != nil {
		return httperr.Internal(err)
	}
	if rows == nil {
		rows = []*T{}
	}

	if c.QueryParam("view") == "items" && r.List.Transform != nil {
		return c.JSON(http.StatusOK, pagination.NewResponse(r.Items(rows), total, q.Page, q.PageSize))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, q.Page, q.PageSize))
}

// Items orders rows with List.Less and transforms them.
func (r *Resource[T, C, U]) Items(rows []*T) []ListItem {
	if r.List.Less != nil {
		sorted := make([]*T, len(rows))
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return r.List.Less(sorted[i], sorted[j]) })
		rows = sorted
	}
	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = r.List.Transform(row)
	}
	return items
}

func (r *Resource[T, C, U]) handleCreate(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	var in C
	if err := BindAndValidate(c, &in); err != nil {
		return err
	}
	if r.CheckCreate != nil {
		if err := checkErr(r.CheckCreate(&in)); err != nil {
			return err
		}
	}

	row, err := r.Repo.Create(c.Request().Context(), userID, ValuesOf(&in))
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, row)
}

type configResponse struct {
	List   listConfig   `json:"list"`
	Detail detailConfig `json:"detail"`
}

type listConfig struct {
	EntityName string        `json:"entityName"`
	BasePath   string        `json:"basePath"`
	Filters    []FilterField `json:"filters"`
	Sorts      []string      `json:"sorts"`
}

type detailConfig struct {
	FormFields []FormField `json:"formFields"`
}

func (r *Resource[T, C, U]) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, configResponse{
		List: listConfig{
			EntityName: r.List.EntityName,
			BasePath:   r.List.BasePath,
			Filters:    r.List.Filters,
			Sorts:      r.Table.Sorts,
		},
		Detail: detailConfig{FormFields: r.Detail.FormFields},
	})
}

func (r *Resource[T, C, U]) handleGet(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	row, err := r.Repo.Get(c.Request().Context(), userID, id)
	if errors.Is(err, ErrNotFound) {
		return httperr.NotFound(r.entity() + " not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (r *Resource[T, C, U]) handleUpdate(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	var in U
	if err := BindAndValidate(c, &in); err != nil {
		return err
	}
	if r.CheckUpdate != nil {
		if err := checkErr(r.CheckUpdate(&in)); err != nil {
			return err
		}
	}

	ctx := c.Request().Context()
	row, err := r.Repo.Update(ctx, userID, id, ValuesOf(&in))
	if errors.Is(err, ErrNotFound) {
		return httperr.NotFound(r.entity() + " not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	if r.Detail.OnUpdate != nil {
		if err := r.Detail.OnUpdate(ctx, row); err != nil {
			return httperr.Internal(err)
		}
	}
	return c.JSON(http.StatusOK, row)
}

func (r *Resource[T, C, U]) handleDelete(c echo.Context) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var row *T
	if r.Detail.OnDelete != nil {
		row, err = r.Repo.Get(ctx, userID, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return httperr.Internal(err)
		}
	}
	if err := r.Repo.Delete(ctx, userID, id); err != nil {
		return httperr.Internal(err)
	}
	if row != nil {
		if err := r.Detail.OnDelete(ctx, row); err != nil {
			return httperr.Internal(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// UserID returns the authenticated user's id or a 401.
func UserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, httperr.Unauthorized()
	}
	return id, nil
}

// ParseID parses the named path parameter as a uuid, or returns 422
// "Invalid id".
func ParseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, httperr.InvalidID()
	}
	return id, nil
}

// BindAndValidate decodes the request body into v and validates it.
func BindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return httperr.InvalidJSON()
	}
	if err := validation.Struct(v); err != nil {
		return httperr.Validation(validation.Details(err))
	}
	return nil
}

func checkErr(err error) error {
	if err == nil {
		return nil
	}
	var ve *validation.Error
	if errors.As(err, &ve) {
		return httperr.Validation(ve.Details)
	}
	return err
}
