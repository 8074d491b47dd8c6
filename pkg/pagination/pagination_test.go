package pagination

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxWithQuery(q string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+q, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p, err := FromContext(ctxWithQuery(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Page != 1 || p.PageSize != DefaultPageSize {
		t.Errorf("expected defaults, got %+v", p)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p, err := FromContext(ctxWithQuery("?page=3&pageSize=50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Page != 3 || p.PageSize != 50 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Offset() != 100 {
		t.Errorf("expected offset 100, got %d", p.Offset())
	}
}

func TestFromContext_Invalid(t *testing.T) {
	for _, q := range []string{"?page=0", "?page=-1", "?page=abc", "?pageSize=0", "?pageSize=101", "?pageSize=x"} {
		if _, err := FromContext(ctxWithQuery(q)); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", q, err)
		}
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Page: 2, PageSize: 20}
	if got := p.SQL(); got != "LIMIT 20 OFFSET 20" {
		t.Errorf("unexpected SQL %q", got)
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Page: 1, PageSize: 20}
	if !p.HasNext(21) {
		t.Error("expected next page for 21 rows")
	}
	if p.HasNext(20) {
		t.Error("expected no next page for 20 rows")
	}
}

func TestNewResponse_JSON(t *testing.T) {
	b, _ := json.Marshal(NewResponse([]string{"a"}, 1, 1, 20))
	want := `{"data":["a"],"total":1,"page":1,"pageSize":20}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
