package pharmacy

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/domain/presc"
	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/storage"
	"github.com/scrypto/portal/pkg/pagination"
)

const (
	pharmacyKey = "pharmacy"
	imageURLTTL = time.Hour
)

type Handler struct {
	store   Store
	objects storage.ObjectStore
	now     func() time.Time
}

func NewHandler(store Store, objects storage.ObjectStore) *Handler {
	return &Handler{store: store, objects: objects, now: time.Now}
}

func NewPGHandler(pool *pgxpool.Pool, objects storage.ObjectStore) *Handler {
	return NewHandler(NewStorePG(pool), objects)
}

// RegisterRoutes mounts the workstation on g, which must already require the
// pharmacist role.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	p := g.Group("/prescriptions", h.requirePharmacy)
	p.GET("", h.Inbox)
	p.GET("/:workflowId", h.Workstation)
	p.POST("/:workflowId/review", h.Review)
	p.PUT("/:workflowId/validation", h.SaveValidation)
	p.POST("/:workflowId/quote", h.Quote)
	p.POST("/:workflowId/decline", h.Decline)
}

// requirePharmacy resolves the caller's pharmacy. Pharmacists without one
// are refused.
func (h *Handler) requirePharmacy(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := crud.UserID(c)
		if err != nil {
			return err
		}
		ph, err := h.store.PharmacyForOwner(c.Request().Context(), userID)
		if errors.Is(err, ErrNoPharmacy) {
			return httperr.Forbidden()
		}
		if err != nil {
			return httperr.Internal(err)
		}
		c.Set(pharmacyKey, ph)
		return next(c)
	}
}

func knownStatus(s string) bool {
	for _, v := range queueStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func pharmacyOf(c echo.Context) *Pharmacy {
	ph, _ := c.Get(pharmacyKey).(*Pharmacy)
	return ph
}

func (h *Handler) Inbox(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = presc.QueuePending
	}
	if !knownStatus(status) {
		return httperr.InvalidQuery()
	}
	p, err := pagination.FromContext(c)
	if err != nil {
		return httperr.InvalidQuery()
	}
	items, total, err := h.store.Inbox(c.Request().Context(), pharmacyOf(c).PharmacyID, status, p)
	if err != nil {
		return httperr.Internal(err)
	}
	if items == nil {
		items = []InboxItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Page, p.PageSize))
}

func (h *Handler) Workstation(c echo.Context) error {
	queueID, err := crud.ParseID(c, "workflowId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rec, err := h.store.Workflow(ctx, pharmacyOf(c).PharmacyID, queueID)
	if errors.Is(err, ErrNotFound) {
		return httperr.NotFound("Prescription not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}

	var imageURL string
	if rec.ImageKey != nil && *rec.ImageKey != "" {
		imageURL, err = h.objects.PresignedGetURL(ctx, storage.BucketPrescriptionImages, *rec.ImageKey, imageURLTTL)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("queue_id", queueID.String()).Msg("prescription image not signed")
			imageURL = ""
		}
	}
	return c.JSON(http.StatusOK, BuildWorkstation(ctx, rec, imageURL, h.now()))
}

// transition applies one status move and maps the store errors.
func (h *Handler) transition(c echo.Context, from []string, to string, values map[string]interface{}) error {
	queueID, err := crud.ParseID(c, "workflowId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	ph := pharmacyOf(c)
	err = h.store.Transition(ctx, ph.PharmacyID, queueID, from, to, values)
	switch {
	case errors.Is(err, ErrNotFound):
		return httperr.NotFound("Prescription not found")
	case errors.Is(err, ErrInvalidTransition):
		return httperr.Conflict("Invalid status transition")
	case err != nil:
		return httperr.Internal(err)
	}
	zerolog.Ctx(ctx).Info().Str("queue_id", queueID.String()).Str("pharmacy_id", ph.PharmacyID.String()).
		Str("status", to).Msg("workflow status changed")
	return c.JSON(http.StatusOK, map[string]interface{}{"workflow_id": queueID, "status": to})
}

func (h *Handler) Review(c echo.Context) error {
	return h.transition(c, []string{presc.QueuePending}, presc.QueueReviewing, nil)
}

func (h *Handler) SaveValidation(c echo.Context) error {
	var in ValidationInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	meds, err := json.Marshal(in.Medications)
	if err != nil {
		return httperr.Internal(err)
	}
	return h.transition(c, []string{presc.QueueReviewing}, presc.QueueReviewing, map[string]interface{}{
		"validated_medications": json.RawMessage(meds),
	})
}

func (h *Handler) Quote(c echo.Context) error {
	var in QuoteInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	for _, it := range in.Items {
		if it.UnitPrice.IsNegative() {
			return httperr.Validation(map[string][]string{"unit_price": {"gte"}})
		}
	}
	values := map[string]interface{}{
		"quote_total": in.Total().StringFixed(2),
		"quoted_at":   h.now().UTC(),
	}
	if in.Notes != nil {
		values["quote_notes"] = *in.Notes
	}
	return h.transition(c, []string{presc.QueueReviewing}, presc.QueueQuoted, values)
}

func (h *Handler) Decline(c echo.Context) error {
	var in DeclineInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	return h.transition(c, []string{presc.QueuePending, presc.QueueReviewing}, presc.QueueDeclined, map[string]interface{}{
		"decline_reason": in.Reason,
	})
}
