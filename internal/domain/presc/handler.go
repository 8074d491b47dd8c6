package presc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/db"
	"github.com/scrypto/portal/internal/platform/events"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/storage"
	"github.com/scrypto/portal/internal/platform/validation"
	"github.com/scrypto/portal/pkg/pagination"
)

const imageURLTTL = time.Hour

type Handler struct {
	repo      crud.Repository[Prescription]
	store     Store
	objects   storage.ObjectStore
	publisher events.Publisher
}

func NewHandler(repo crud.Repository[Prescription], store Store, objects storage.ObjectStore, publisher events.Publisher) *Handler {
	return &Handler{repo: repo, store: store, objects: objects, publisher: publisher}
}

// NewPGHandler builds a Handler on Postgres.
func NewPGHandler(pool *pgxpool.Pool, objects storage.ObjectStore, publisher events.Publisher) *Handler {
	return NewHandler(crud.NewPGRepository[Prescription](pool, Table), NewStorePG(pool), objects, publisher)
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	p := g.Group("/presc/prescriptions")
	p.GET("", h.List)
	p.POST("", h.Save)
	p.GET("/:id", h.Get)
	p.POST("/:id/submit", h.Submit)
	p.POST("/:id/allocate", h.Allocate)
	p.GET("/:id/image", h.Image)
	p.GET("/:id/quotes", h.Quotes)
	p.POST("/:id/quotes/:queueId/accept", h.AcceptQuote)
}

func (h *Handler) List(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	q, err := crud.ParseListQuery(c, Table)
	if err != nil {
		return httperr.InvalidQuery()
	}
	rows, total, err := h.repo.List(c.Request().Context(), userID, q)
	if err != nil {
		return httperr.Internal(err)
	}
	if rows == nil {
		rows = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, q.Page, q.PageSize))
}

// load resolves :id to the caller's prescription.
func (h *Handler) load(c echo.Context) (*Prescription, error) {
	userID, err := crud.UserID(c)
	if err != nil {
		return nil, err
	}
	id, err := crud.ParseID(c, "id")
	if err != nil {
		return nil, err
	}
	row, err := h.repo.Get(c.Request().Context(), userID, id)
	if errors.Is(err, crud.ErrNotFound) {
		return nil, httperr.NotFound("Prescription not found")
	}
	if err != nil {
		return nil, httperr.Internal(err)
	}
	return row, nil
}

func (h *Handler) Get(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) Save(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	var in SaveInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	if !storage.OwnedBy(userID.String(), in.UploadedPath) {
		return httperr.Validation(map[string][]string{"uploadedPath": {"owner"}})
	}
	values, err := valuesFromAnalysis(&in)
	var ve *validation.Error
	if errors.As(err, &ve) {
		return httperr.Validation(ve.Details)
	}
	if err != nil {
		return httperr.Internal(err)
	}

	row, err := h.repo.Create(c.Request().Context(), userID, values)
	if err != nil {
		return httperr.Internal(err)
	}
	zerolog.Ctx(c.Request().Context()).Info().Str("prescription_id", row.PrescriptionID.String()).
		Str("session_id", in.SessionID).Msg("prescription saved")
	return c.JSON(http.StatusCreated, row)
}

func (h *Handler) Submit(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	if row.Status != StatusSaved {
		return httperr.Conflict("Prescription cannot be submitted in status " + row.Status)
	}
	updated, err := h.repo.Update(c.Request().Context(), row.UserID, row.PrescriptionID, crud.Values{
		"status":       StatusSubmitted,
		"submitted_at": time.Now().UTC(),
	})
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Allocate(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	loc, err := h.store.PatientLocation(ctx, row.UserID)
	if err != nil {
		return httperr.Internal(err)
	}
	if !loc.set() {
		return httperr.New(http.StatusBadRequest, locationMissing)
	}
	if !canAllocate(row.Status) {
		return httperr.Conflict("Prescription cannot be allocated in status " + row.Status)
	}

	pharmacies, err := h.store.ActivePharmacies(ctx)
	if err != nil {
		return httperr.Internal(err)
	}
	candidates := Nearest(loc, pharmacies, maxAllocations)
	if len(candidates) == 0 {
		return httperr.NotFound(noPharmacies)
	}

	entries, err := h.store.Allocate(ctx, row.UserID, row.PrescriptionID, candidates)
	if errors.Is(err, ErrInvalidTransition) {
		return httperr.Conflict("Prescription cannot be allocated in status " + row.Status)
	}
	if err != nil {
		return httperr.Internal(err)
	}

	ev := AllocatedEvent{PrescriptionID: row.PrescriptionID, UserID: row.UserID}
	resp := allocationResponse{Message: allocationMsg, PharmaciesCount: len(entries)}
	for _, e := range entries {
		ev.Pharmacies = append(ev.Pharmacies, AllocatedPartner{PharmacyID: e.PharmacyID, QueueID: e.QueueID, DistanceKm: e.DistanceKm})
		resp.Pharmacies = append(resp.Pharmacies, allocatedPharmacy{Name: e.PharmacyName, DistanceKm: formatKm(e.DistanceKm)})
	}
	db.AfterCommit(ctx, func(ctx context.Context) {
		if err := h.publisher.Publish(ctx, events.PrescriptionAllocated, ev); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("prescription_id", ev.PrescriptionID.String()).
				Msg("publish allocation event failed")
		}
	})
	zerolog.Ctx(ctx).Info().Str("prescription_id", row.PrescriptionID.String()).
		Int("pharmacies", len(entries)).Msg("prescription allocated")
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Image(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	if row.ImageURL == nil || *row.ImageURL == "" {
		return httperr.NotFound("Prescription image not found")
	}
	url, err := h.objects.PresignedGetURL(c.Request().Context(), storage.BucketPrescriptionImages, *row.ImageURL, imageURLTTL)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return httperr.NotFound("Prescription image not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.Redirect(http.StatusFound, url)
}

func (h *Handler) Quotes(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	quotes, err := h.store.Quotes(c.Request().Context(), row.UserID, row.PrescriptionID)
	if err != nil {
		return httperr.Internal(err)
	}
	if quotes == nil {
		quotes = []QueueEntry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": quotes})
}

func (h *Handler) AcceptQuote(c echo.Context) error {
	row, err := h.load(c)
	if err != nil {
		return err
	}
	queueID, err := crud.ParseID(c, "queueId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	entry, err := h.store.AcceptQuote(ctx, row.UserID, row.PrescriptionID, queueID)
	switch {
	case errors.Is(err, ErrQuoteNotFound):
		return httperr.NotFound("Quote not found")
	case errors.Is(err, ErrInvalidTransition):
		return httperr.Conflict("Invalid status transition")
	case err != nil:
		return httperr.Internal(err)
	}

	ev := QuoteAcceptedEvent{
		PrescriptionID: row.PrescriptionID,
		UserID:         row.UserID,
		PharmacyID:     entry.PharmacyID,
		QueueID:        entry.QueueID,
	}
	if entry.QuoteTotal != nil {
		ev.QuoteTotal = entry.QuoteTotal.StringFixed(2)
	}
	db.AfterCommit(ctx, func(ctx context.Context) {
		if err := h.publisher.Publish(ctx, events.PrescriptionQuoteAccepted, ev); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("queue_id", ev.QueueID.String()).Msg("publish quote accepted event failed")
		}
	})
	return c.JSON(http.StatusOK, entry)
}
