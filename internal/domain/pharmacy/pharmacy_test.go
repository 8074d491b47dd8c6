package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/domain/presc"
	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/storage"
	"github.com/scrypto/portal/pkg/pagination"
)

const pharmacistID = "6a7b8c9d-0e1f-4a2b-8c3d-4e5f6a7b8c9d"

type fakeStore struct {
	mu       sync.Mutex
	pharmacy *Pharmacy
	rows     map[uuid.UUID]*fakeRow
	notified map[uuid.UUID]bool
}

type fakeRow struct {
	pharmacyID uuid.UUID
	rec        WorkflowRecord
	values     map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pharmacy: &Pharmacy{PharmacyID: uuid.New(), OwnerUserID: uuid.MustParse(pharmacistID), Name: "Melville Pharmacy"},
		rows:     map[uuid.UUID]*fakeRow{},
		notified: map[uuid.UUID]bool{},
	}
}

func (s *fakeStore) add(pharmacyID uuid.UUID, rec WorkflowRecord) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.QueueID = uuid.New()
	if rec.Status == "" {
		rec.Status = presc.QueuePending
	}
	rec.CreatedAt = time.Now()
	s.rows[rec.QueueID] = &fakeRow{pharmacyID: pharmacyID, rec: rec, values: map[string]interface{}{}}
	return rec.QueueID
}

func (s *fakeStore) PharmacyForOwner(_ context.Context, ownerID uuid.UUID) (*Pharmacy, error) {
	if s.pharmacy == nil || s.pharmacy.OwnerUserID != ownerID {
		return nil, ErrNoPharmacy
	}
	return s.pharmacy, nil
}

func (s *fakeStore) Inbox(_ context.Context, pharmacyID uuid.UUID, status string, p pagination.Params) ([]InboxItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InboxItem
	for _, r := range s.rows {
		if r.pharmacyID == pharmacyID && r.rec.Status == status {
			out = append(out, InboxItem{QueueID: r.rec.QueueID, PrescriptionID: r.rec.PrescriptionID, Status: r.rec.Status,
				DoctorName: r.rec.DoctorName, CreatedAt: r.rec.CreatedAt})
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) Workflow(_ context.Context, pharmacyID, queueID uuid.UUID) (*WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[queueID]
	if !ok || r.pharmacyID != pharmacyID {
		return nil, ErrNotFound
	}
	rec := r.rec
	return &rec, nil
}

func (s *fakeStore) Transition(_ context.Context, pharmacyID, queueID uuid.UUID, from []string, to string, values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[queueID]
	if !ok || r.pharmacyID != pharmacyID {
		return ErrNotFound
	}
	allowed := false
	for _, f := range from {
		if r.rec.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return ErrInvalidTransition
	}
	r.rec.Status = to
	for k, v := range values {
		r.values[k] = v
		if k == "validated_medications" {
			r.rec.ValidatedMedications = v.(json.RawMessage)
		}
	}
	return nil
}

func (s *fakeStore) MarkNotified(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if !s.notified[id] {
			s.notified[id] = true
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) row(id uuid.UUID) *fakeRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type fixture struct {
	e     *echo.Echo
	store *fakeStore
	obj   *storage.MemoryStore
}

func newFixture(userID string) *fixture {
	f := &fixture{store: newFakeStore(), obj: storage.NewMemoryStore()}
	f.e = echo.New()
	f.e.HTTPErrorHandler = httperr.ErrorHandler(zerolog.Nop())
	g := f.e.Group("/api/pharmacy", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), userID, auth.RolePharmacist)))
			return next(c)
		}
	})
	h := NewHandler(f.store, f.obj)
	h.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(g)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func strp(s string) *string { return &s }
func fltp(f float64) *float64 { return &f }

const analysis = `{"isPrescription":true,"overallConfidence":92,"aiWarnings":["Handwriting unclear on line 2"],` +
	`"medications":[` +
	`{"name":"Amoxicillin","dosage":"500mg","frequency":"three times daily","duration":"7 days","quantity":21},` +
	`{"name":"Warfarin","dosage":"5mg","frequency":"once daily","duration":"4 weeks","confidence":65},` +
	`{"name":"Aspirin","dosage":"81mg","genericAvailable":true,"instructions":"Take with food"}]}`

func sampleRecord() WorkflowRecord {
	return WorkflowRecord{
		PrescriptionID:   uuid.New(),
		AnalysisData:     json.RawMessage(analysis),
		ImageKey:         strp("u1/prescriptions/1_rx.jpg"),
		DoctorName:       strp("Thabo Nkosi"),
		PracticeNumber:   strp("PR-1234"),
		PrescriptionDate: strp("2026-02-14"),
		Diagnosis:        strp("Atrial fibrillation"),
		AIConfidence:     fltp(92),
		ScanQuality:      fltp(81),
		Patient: PatientRecord{
			FirstName:         "Lerato",
			LastName:          "Dlamini",
			IDNumber:          strp("8205050088083"),
			DateOfBirth:       strp("1982-05-05"),
			Gender:            strp("female"),
			MedicalAid:        strp("Discovery Health"),
			MedicalAidNumber:  strp("DH123"),
			Allergies:         []string{"Penicillin", "Amoxicillin"},
			ChronicConditions: []string{"Hypertension"},
		},
	}
}

func TestConfidenceColor(t *testing.T) {
	tests := []struct {
		c    float64
		want string
	}{
		{100, ColorGreen}, {90, ColorGreen}, {89.9, ColorAmber}, {70, ColorAmber}, {69, ColorRed}, {0, ColorRed},
	}
	for _, tt := range tests {
		if got := confidenceColor(tt.c); got != tt.want {
			t.Errorf("confidenceColor(%v) = %s, want %s", tt.c, got, tt.want)
		}
	}
}

func TestDaysSupplyAndAge(t *testing.T) {
	for in, want := range map[string]int{"7 days": 7, "2 weeks": 14, "1 month": 30, "as needed": 0, "": 0} {
		if got := daysSupply(in); got != want {
			t.Errorf("daysSupply(%q) = %d, want %d", in, got, want)
		}
	}
	now := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	if a := age(strp("1982-05-05"), now); a == nil || *a != 43 {
		t.Errorf("expected 43 the day before the birthday, got %v", a)
	}
	if a := age(strp("1982-05-04"), now); a == nil || *a != 44 {
		t.Errorf("expected 44 on the birthday, got %v", a)
	}
	if age(strp("unknown"), now) != nil || age(nil, now) != nil {
		t.Error("expected nil age for missing dob")
	}
}

func TestBuildWorkstation(t *testing.T) {
	rec := sampleRecord()
	ws := BuildWorkstation(context.Background(), &rec, "memory://signed", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	if ws.Patient.Name != "Lerato" || ws.Patient.Age == nil || *ws.Patient.Age != 43 || ws.Patient.MedicalAid != "Discovery Health" {
		t.Errorf("unexpected patient %+v", ws.Patient)
	}
	if ws.Prescriber.Name != "Thabo Nkosi" || ws.Prescription.AIConfidenceColor != ColorGreen || ws.Prescription.ImageURL != "memory://signed" {
		t.Errorf("unexpected prescription %+v %+v", ws.Prescriber, ws.Prescription)
	}

	if len(ws.Medications) != 3 {
		t.Fatalf("expected 3 medications, got %d", len(ws.Medications))
	}
	amox, warf, asp := ws.Medications[0], ws.Medications[1], ws.Medications[2]
	if amox.ID != "med-1" || amox.Strength != "500mg" || amox.Quantity != 21 || amox.DaysSupply != 7 || amox.Instructions != "three times daily" {
		t.Errorf("unexpected first medication %+v", amox)
	}
	if warf.Confidence != 65 || warf.ConfidenceColor != ColorRed || warf.DaysSupply != 28 {
		t.Errorf("per-medication confidence not used: %+v", warf)
	}
	if asp.Confidence != 92 || asp.StockStatus != StockIn || asp.Instructions != "Take with food" {
		t.Errorf("unexpected third medication %+v", asp)
	}

	s := ws.AISentry
	if len(s.Contraindications) != 1 || !strings.Contains(s.Contraindications[0], "Amoxicillin") {
		t.Errorf("unexpected contraindications %v", s.Contraindications)
	}
	if len(s.DrugInteractions) != 1 || !strings.Contains(s.DrugInteractions[0], "bleeding") {
		t.Errorf("expected warfarin/aspirin interaction, got %v", s.DrugInteractions)
	}
	if len(s.Warnings) != 2 || s.Warnings[1] != verifyAllergyStatus {
		t.Errorf("unexpected warnings %v", s.Warnings)
	}
	wantFlags := []string{"Low confidence on Warfarin", "Generic substitution available for Aspirin"}
	if strings.Join(s.ConfidenceFlags, "|") != strings.Join(wantFlags, "|") {
		t.Errorf("unexpected flags %v", s.ConfidenceFlags)
	}
}

func TestBuildWorkstation_NoFindings(t *testing.T) {
	rec := WorkflowRecord{AnalysisData: json.RawMessage(`{"overallConfidence":75,"medications":[{"name":"Paracetamol"}]}`)}
	ws := BuildWorkstation(context.Background(), &rec, "", time.Now())
	s := ws.AISentry
	if len(s.DrugInteractions) != 1 || s.DrugInteractions[0] != noInteractions {
		t.Errorf("expected no-interaction message, got %v", s.DrugInteractions)
	}
	if len(s.Contraindications) != 0 || len(s.Warnings) != 0 || len(s.ConfidenceFlags) != 0 {
		t.Errorf("expected empty sentry, got %+v", s)
	}
	if ws.Prescription.AIConfidence != 75 || ws.Prescription.AIConfidenceColor != ColorAmber {
		t.Errorf("confidence should fall back to the analysis, got %+v", ws.Prescription)
	}
}

func TestBuildWorkstation_UnreadableEditsLogged(t *testing.T) {
	var buf strings.Builder
	ctx := zerolog.New(&buf).WithContext(context.Background())
	rec := WorkflowRecord{
		QueueID:              uuid.New(),
		AnalysisData:         json.RawMessage(`{"overallConfidence":80,"medications":[{"name":"Paracetamol"}]}`),
		ValidatedMedications: json.RawMessage(`{"id":"med-1"`),
	}
	ws := BuildWorkstation(ctx, &rec, "", time.Now())

	if len(ws.Medications) != 1 || ws.Medications[0].Name != "Paracetamol" {
		t.Errorf("analysed lines should still be shown, got %+v", ws.Medications)
	}
	out := buf.String()
	if !strings.Contains(out, "validated medications unreadable") || !strings.Contains(out, rec.QueueID.String()) {
		t.Errorf("expected decode failure logged with queue id, got %q", out)
	}
}

func TestMedications_MergeValidation(t *testing.T) {
	edits := `[{"id":"med-2","name":"Warfarin","strength":"2.5mg","stock_status":"low_stock","notes":"Halved"},` +
		`{"id":"extra-1","name":"Vitamin K","quantity":1}]`
	var saved []ValidatedMedication
	if err := json.Unmarshal([]byte(edits), &saved); err != nil {
		t.Fatal(err)
	}
	meds := medications(json.RawMessage(analysis), saved, 92)
	if len(meds) != 4 {
		t.Fatalf("expected 4 medications, got %d", len(meds))
	}
	if meds[1].Strength != "2.5mg" || meds[1].StockStatus != StockLow || meds[1].Notes != "Halved" || meds[1].Quantity != 0 {
		t.Errorf("edit not applied: %+v", meds[1])
	}
	if meds[3].ID != "extra-1" || meds[3].Name != "Vitamin K" || meds[3].ConfidenceColor != ColorGreen {
		t.Errorf("added line not appended: %+v", meds[3])
	}
}

func TestRequirePharmacy(t *testing.T) {
	f := newFixture(uuid.NewString())
	if rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a pharmacist without a pharmacy, got %d", rec.Code)
	}
}

func TestInbox(t *testing.T) {
	f := newFixture(pharmacistID)
	mine := f.store.pharmacy.PharmacyID
	f.store.add(mine, sampleRecord())
	f.store.add(mine, WorkflowRecord{Status: presc.QueueQuoted})
	f.store.add(uuid.New(), sampleRecord())

	rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data  []InboxItem `json:"data"`
		Total int         `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Status != presc.QueuePending {
		t.Errorf("expected one pending row, got %+v", resp)
	}

	rec = f.do(http.MethodGet, "/api/pharmacy/prescriptions?status=quoted", "")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Status != presc.QueueQuoted {
		t.Errorf("expected one quoted row, got %+v", resp)
	}

	if rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions?status=lost", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown status, got %d", rec.Code)
	}
}

func TestWorkstationRoute(t *testing.T) {
	f := newFixture(pharmacistID)
	id := f.store.add(f.store.pharmacy.PharmacyID, sampleRecord())
	other := f.store.add(uuid.New(), sampleRecord())
	if _, err := f.obj.Put(context.Background(), storage.BucketPrescriptionImages, "u1/prescriptions/1_rx.jpg", "image/jpeg", strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions/"+id.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var ws Workstation
	json.Unmarshal(rec.Body.Bytes(), &ws)
	if ws.WorkflowID != id || !strings.HasPrefix(ws.Prescription.ImageURL, "memory://") || ws.WorkflowStatus != presc.QueuePending {
		t.Errorf("unexpected workstation %+v", ws)
	}

	if rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions/"+other.String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("another pharmacy's row: expected 404, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/pharmacy/prescriptions/wf-1", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad id: expected 422, got %d", rec.Code)
	}
}

func TestTransitions(t *testing.T) {
	f := newFixture(pharmacistID)
	id := f.store.add(f.store.pharmacy.PharmacyID, sampleRecord())
	base := "/api/pharmacy/prescriptions/" + id.String()

	validation := `{"medications":[{"id":"med-1","name":"Amoxicillin","quantity":21,"stock_status":"in_stock"}]}`
	if rec := f.do(http.MethodPut, base+"/validation", validation); rec.Code != http.StatusConflict {
		t.Errorf("validation while pending: expected 409, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, base+"/quote", `{"items":[{"medication_id":"med-1","unit_price":"10","quantity":1}]}`); rec.Code != http.StatusConflict {
		t.Errorf("quote while pending: expected 409, got %d", rec.Code)
	}

	if rec := f.do(http.MethodPost, base+"/review", ""); rec.Code != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, base+"/review", ""); rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "Invalid status transition") {
		t.Errorf("second review: expected 409, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := f.do(http.MethodPut, base+"/validation", `{"medications":[{"id":"med-1","stock_status":"sold"}]}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad validation body: expected 422, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPut, base+"/validation", validation); rec.Code != http.StatusOK {
		t.Fatalf("validation: expected 200, got %d", rec.Code)
	}
	if got := f.store.row(id).rec.ValidatedMedications; !strings.Contains(string(got), `"quantity":21`) {
		t.Errorf("validated medications not stored: %s", got)
	}

	quote := `{"items":[{"medication_id":"med-1","unit_price":"12.345","quantity":21},` +
		`{"medication_id":"med-3","unit_price":0.5,"quantity":3}],"notes":"Generic aspirin"}`
	if rec := f.do(http.MethodPost, base+"/quote", `{"items":[]}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty quote: expected 422, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, base+"/quote", `{"items":[{"medication_id":"med-1","unit_price":"-1","quantity":1}]}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative price: expected 422, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, base+"/quote", quote); rec.Code != http.StatusOK {
		t.Fatalf("quote: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	row := f.store.row(id)
	if row.rec.Status != presc.QueueQuoted || row.values["quote_total"] != "260.75" || row.values["quote_notes"] != "Generic aspirin" {
		t.Errorf("unexpected quote row %+v", row.values)
	}

	if rec := f.do(http.MethodPost, base+"/decline", `{"reason":"Out of stock"}`); rec.Code != http.StatusConflict {
		t.Errorf("decline after quote: expected 409, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/pharmacy/prescriptions/"+uuid.NewString()+"/review", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing row: expected 404, got %d", rec.Code)
	}
}

func TestDecline(t *testing.T) {
	f := newFixture(pharmacistID)
	id := f.store.add(f.store.pharmacy.PharmacyID, sampleRecord())
	base := "/api/pharmacy/prescriptions/" + id.String()

	if rec := f.do(http.MethodPost, base+"/decline", `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing reason: expected 422, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, base+"/decline", `{"reason":"Controlled substance"}`); rec.Code != http.StatusOK {
		t.Fatalf("decline: expected 200, got %d", rec.Code)
	}
	if row := f.store.row(id); row.rec.Status != presc.QueueDeclined || row.values["decline_reason"] != "Controlled substance" {
		t.Errorf("unexpected row %+v", row)
	}
}

func TestQuoteTotal(t *testing.T) {
	q := QuoteInput{Items: []QuoteItem{
		{UnitPrice: decimal.RequireFromString("0.1"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("0.2"), Quantity: 1},
	}}
	if got := q.Total(); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected exact 0.5, got %s", got)
	}
}

func TestNotifyHandler(t *testing.T) {
	store := newFakeStore()
	h := NotifyHandler(store, zerolog.Nop())
	a, b := uuid.New(), uuid.New()
	body, _ := json.Marshal(presc.AllocatedEvent{
		PrescriptionID: uuid.New(),
		Pharmacies: []presc.AllocatedPartner{
			{PharmacyID: uuid.New(), QueueID: a},
			{PharmacyID: uuid.New(), QueueID: b},
		},
	})
	if err := h(context.Background(), body); err != nil {
		t.Fatal(err)
	}
	if !store.notified[a] || !store.notified[b] {
		t.Errorf("expected both rows notified, got %v", store.notified)
	}
	if err := h(context.Background(), []byte("not json")); err != nil {
		t.Errorf("malformed message should be dropped, got %v", err)
	}
}

type failingStore struct{ *fakeStore }

func (failingStore) MarkNotified(context.Context, []uuid.UUID) (int64, error) {
	return 0, errors.New("db down")
}

func TestNotifyHandler_RequeuesOnStoreError(t *testing.T) {
	h := NotifyHandler(failingStore{newFakeStore()}, zerolog.Nop())
	if err := h(context.Background(), []byte(`{"pharmacies":[]}`)); err == nil {
		t.Error("expected store error to be returned for requeue")
	}
}
