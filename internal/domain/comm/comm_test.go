package comm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/pkg/pagination"
)

const (
	patientID    = "3f1c2b7e-5a4d-4e8f-9c0b-1d2e3f4a5b6c"
	pharmacistID = "6a7b8c9d-0e1f-4a2b-8c3d-4e5f6a7b8c9d"
)

var (
	patient    = uuid.MustParse(patientID)
	pharmacist = uuid.MustParse(pharmacistID)
)

type fakeStore struct {
	mu         sync.Mutex
	rows       []Communication
	directory  []Recipient
	emails     map[string]uuid.UUID
	clock      time.Time
	emailErr   error
	unreadErr  error
	searchCall string
}

func newFakeStore() *fakeStore {
	email := "lerato@example.co.za"
	first := "Lerato"
	pharmacy := "Braamfontein Pharmacy"
	return &fakeStore{
		emails: map[string]uuid.UUID{email: patient},
		directory: []Recipient{
			{UserID: patient, Email: &email, FirstName: &first, Kind: "patient"},
			{UserID: pharmacist, FirstName: &pharmacy, Kind: "pharmacy"},
		},
		clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) Send(_ context.Context, c *Communication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Minute)
	c.CommID = uuid.New()
	c.Status = StatusSent
	c.CreatedAt, c.UpdatedAt = s.clock, s.clock
	s.rows = append(s.rows, *c)
	return nil
}

// newestFirst filters rows and sorts them by created_at descending.
func (s *fakeStore) newestFirst(keep func(Communication) bool) []Communication {
	var out []Communication
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) Inbox(_ context.Context, userID uuid.UUID, commType string, p pagination.Params) ([]Communication, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.newestFirst(func(r Communication) bool {
		return r.UserTo == userID && (commType == "" || r.CommType == commType)
	})
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Limit()
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *fakeStore) MarkRead(_ context.Context, userID, commID uuid.UUID) (*ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		r := &s.rows[i]
		if r.CommID == commID && r.UserTo == userID {
			if r.ReadAt == nil {
				now := s.clock
				r.ReadAt = &now
			}
			r.Status = StatusRead
			return &ReadReceipt{CommID: r.CommID, Status: r.Status, ReadAt: r.ReadAt}, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreadErr != nil {
		return 0, s.unreadErr
	}
	return len(s.newestFirst(func(r Communication) bool { return r.UserTo == userID && r.ReadAt == nil })), nil
}

func (s *fakeStore) Conversation(_ context.Context, userID, otherID uuid.UUID, limit int) ([]Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newestFirst(func(r Communication) bool {
		return r.CommType == TypeMessage &&
			((r.UserFrom == userID && r.UserTo == otherID) || (r.UserFrom == otherID && r.UserTo == userID))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UserByEmail(_ context.Context, email string) (uuid.UUID, error) {
	if s.emailErr != nil {
		return uuid.Nil, s.emailErr
	}
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return uuid.Nil, ErrRecipientNotFound
	}
	return id, nil
}

func (s *fakeStore) SearchRecipients(_ context.Context, userID uuid.UUID, q string, limit int) ([]Recipient, error) {
	s.searchCall = q
	var out []Recipient
	for _, r := range s.directory {
		text := strings.ToLower(strings.Join([]string{deref(r.Email), deref(r.FirstName)}, " "))
		if r.UserID != userID && strings.Contains(text, strings.ToLower(q)) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type fixture struct {
	e     *echo.Echo
	store *fakeStore
}

func newFixture() *fixture {
	f := &fixture{e: echo.New(), store: newFakeStore()}
	f.e.HTTPErrorHandler = httperr.ErrorHandler(zerolog.Nop())
	g := f.e.Group("/api/comm", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, role := patientID, auth.RolePatient
			if c.Request().Header.Get("X-Test-As") == "pharmacist" {
				id, role = pharmacistID, auth.RolePharmacist
			}
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), id, role)))
			return next(c)
		}
	})
	NewHandler(f.store).RegisterRoutes(g)
	return f
}

func (f *fixture) do(as, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("X-Test-As", as)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) send(t *testing.T, as, body string) uuid.UUID {
	t.Helper()
	rec := f.do(as, http.MethodPost, "/api/comm/send", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK bool      `json:"ok"`
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.OK {
		t.Fatalf("unexpected send response %s", rec.Body.String())
	}
	return resp.ID
}

func TestSend_ByIDAndEmail(t *testing.T) {
	f := newFixture()
	f.send(t, "pharmacist", `{"to":"`+patientID+`","subject":"Your quote","body":"Ready for collection",`+
		`"context_type":"prescription","context_id":"0b6f3c1e-2a4d-4b8e-9f10-112233445566"}`)
	f.send(t, "pharmacist", `{"to":"Lerato@example.co.za","type":"alert","body":"Stock arrived"}`)

	if len(f.store.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(f.store.rows))
	}
	first, second := f.store.rows[0], f.store.rows[1]
	if first.CommType != TypeMessage || first.UserFrom != pharmacist || first.UserTo != patient {
		t.Errorf("unexpected first row %+v", first)
	}
	var meta Meta
	if err := json.Unmarshal(first.Meta, &meta); err != nil || meta.ContextType != ContextPrescription {
		t.Errorf("expected prescription meta, got %s", first.Meta)
	}
	if second.CommType != TypeAlert || second.UserTo != patient || second.Meta != nil {
		t.Errorf("unexpected second row %+v", second)
	}
}

func TestSend_Errors(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing recipient", `{"body":"hi"}`, http.StatusUnprocessableEntity},
		{"unknown type", `{"to":"` + patientID + `","type":"memo"}`, http.StatusUnprocessableEntity},
		{"subject too long", `{"to":"` + patientID + `","subject":"` + strings.Repeat("s", 201) + `"}`, http.StatusUnprocessableEntity},
		{"body too long", `{"to":"` + patientID + `","body":"` + strings.Repeat("b", 5001) + `"}`, http.StatusUnprocessableEntity},
		{"unknown context", `{"to":"` + patientID + `","context_type":"refill"}`, http.StatusUnprocessableEntity},
		{"unknown email", `{"to":"nobody@example.co.za"}`, http.StatusNotFound},
		{"malformed json", `{"to":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do("pharmacist", http.MethodPost, "/api/comm/send", tt.body); rec.Code != tt.want {
				t.Errorf("expected %d, got %d %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
	if len(f.store.rows) != 0 {
		t.Errorf("rejected sends must not be stored, got %d rows", len(f.store.rows))
	}

	f.store.emailErr = errors.New("connection reset")
	if rec := f.do("pharmacist", http.MethodPost, "/api/comm/send", `{"to":"lerato@example.co.za"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("lookup failure: expected 400, got %d", rec.Code)
	}
}

func TestInbox_FilterAndPaging(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.send(t, "pharmacist", `{"to":"`+patientID+`","body":"m"}`)
	}
	f.send(t, "pharmacist", `{"to":"`+patientID+`","type":"notification","body":"n"}`)
	f.send(t, "patient", `{"to":"`+pharmacistID+`","body":"outgoing"}`)

	var resp struct {
		Items []Communication `json:"items"`
		Total int             `json:"total"`
	}
	rec := f.do("patient", http.MethodGet, "/api/comm/inbox?pageSize=2", "")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Total != 4 || len(resp.Items) != 2 {
		t.Fatalf("unexpected inbox %d %s", rec.Code, rec.Body.String())
	}
	if resp.Items[0].CommType != TypeNotification {
		t.Errorf("expected newest first, got %s", resp.Items[0].CommType)
	}

	rec = f.do("patient", http.MethodGet, "/api/comm/inbox?type=message", "")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("type filter: expected 3, got %d", resp.Total)
	}

	for _, q := range []string{"type=memo", "page=0", "pageSize=101"} {
		if rec := f.do("patient", http.MethodGet, "/api/comm/inbox?"+q, ""); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", q, rec.Code)
		}
	}
	rec = f.do("pharmacist", http.MethodGet, "/api/comm/inbox", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("pharmacist inbox: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	f := newFixture()
	id := f.send(t, "pharmacist", `{"to":"`+patientID+`","body":"one"}`)
	f.send(t, "pharmacist", `{"to":"`+patientID+`","body":"two"}`)

	if rec := f.do("patient", http.MethodGet, "/api/comm/unread-count", ""); rec.Body.String() != "{\"count\":2}\n" {
		t.Fatalf("expected 2 unread, got %s", rec.Body.String())
	}

	if rec := f.do("pharmacist", http.MethodPost, "/api/comm/read/"+id.String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("sender cannot mark read: expected 404, got %d", rec.Code)
	}
	rec := f.do("patient", http.MethodPost, "/api/comm/read/"+id.String(), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"read"`) {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do("patient", http.MethodPost, "/api/comm/read/not-a-uuid", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad id: expected 422, got %d", rec.Code)
	}
	if rec := f.do("patient", http.MethodGet, "/api/comm/unread-count", ""); rec.Body.String() != "{\"count\":1}\n" {
		t.Errorf("expected 1 unread, got %s", rec.Body.String())
	}

	f.store.unreadErr = errors.New("timeout")
	rec = f.do("patient", http.MethodGet, "/api/comm/unread-count", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"count\":0}\n" {
		t.Errorf("store error should read as 0, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestConversation(t *testing.T) {
	f := newFixture()
	f.send(t, "patient", `{"to":"`+pharmacistID+`","body":"Do you have Amlodipine?"}`)
	f.send(t, "pharmacist", `{"to":"`+patientID+`","body":"Yes, 5mg in stock"}`)
	f.send(t, "pharmacist", `{"to":"`+patientID+`","type":"alert","body":"Collection reminder"}`)
	f.send(t, "patient", `{"to":"`+uuid.NewString()+`","body":"someone else"}`)

	rec := f.do("patient", http.MethodGet, "/api/comm/with/"+pharmacistID, "")
	var resp struct {
		Items []Communication `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || len(resp.Items) != 2 {
		t.Fatalf("expected 2 messages, got %d %s", rec.Code, rec.Body.String())
	}
	if deref(resp.Items[0].Body) != "Yes, 5mg in stock" {
		t.Errorf("expected newest first, got %q", deref(resp.Items[0].Body))
	}

	rec = f.do("patient", http.MethodGet, "/api/comm/with/"+uuid.NewString(), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("empty conversation: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRecipients(t *testing.T) {
	f := newFixture()
	rec := f.do("patient", http.MethodGet, "/api/comm/recipients?q=b", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) || f.store.searchCall != "" {
		t.Errorf("short query should not search: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do("patient", http.MethodGet, "/api/comm/recipients?q=%20braam%20", "")
	var resp struct {
		Items []Recipient `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].UserID != pharmacist || resp.Items[0].Kind != "pharmacy" {
		t.Errorf("unexpected recipients %s", rec.Body.String())
	}
	if f.store.searchCall != "braam" {
		t.Errorf("query should be trimmed, got %q", f.store.searchCall)
	}

	rec = f.do("patient", http.MethodGet, "/api/comm/recipients?q=lerato", "")
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("caller should not find themselves: %s", rec.Body.String())
	}
}
