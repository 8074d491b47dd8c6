package comm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/pkg/pagination"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func NewPGHandler(pool *pgxpool.Pool) *Handler {
	return NewHandler(NewStorePG(pool))
}

// RegisterRoutes mounts messaging on g. Patients and pharmacists share it.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/send", h.Send)
	g.GET("/inbox", h.Inbox)
	g.POST("/read/:commId", h.MarkRead)
	g.GET("/unread-count", h.UnreadCount)
	g.GET("/with/:userId", h.Conversation)
	g.GET("/recipients", h.Recipients)
}

func (h *Handler) Send(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	var in SendInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()

	to, err := uuid.Parse(in.To)
	if err != nil {
		to, err = h.store.UserByEmail(ctx, in.To)
		if errors.Is(err, ErrRecipientNotFound) {
			return httperr.NotFound("Recipient not found")
		}
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("recipient lookup failed")
			return httperr.New(http.StatusBadRequest, "Recipient resolution failed")
		}
	}

	msg := &Communication{
		CommType: in.Type,
		UserFrom: userID,
		UserTo:   to,
		Subject:  in.Subject,
		Body:     in.Body,
	}
	if msg.CommType == "" {
		msg.CommType = TypeMessage
	}
	if in.ContextType != "" && in.ContextID != "" {
		msg.Meta, _ = json.Marshal(Meta{ContextType: in.ContextType, ContextID: in.ContextID})
	}
	if err := h.store.Send(ctx, msg); err != nil {
		return httperr.Internal(err)
	}
	zerolog.Ctx(ctx).Info().Str("comm_id", msg.CommID.String()).Str("comm_type", msg.CommType).Msg("communication sent")
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"ok":         true,
		"id":         msg.CommID,
		"created_at": msg.CreatedAt,
	})
}

func (h *Handler) Inbox(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	commType := c.QueryParam("type")
	switch commType {
	case "", TypeMessage, TypeAlert, TypeNotification:
	default:
		return httperr.InvalidQuery()
	}
	p, err := pagination.FromContext(c)
	if err != nil {
		return httperr.InvalidQuery()
	}
	items, total, err := h.store.Inbox(c.Request().Context(), userID, commType, p)
	if err != nil {
		return httperr.Internal(err)
	}
	if items == nil {
		items = []Communication{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": total})
}

func (h *Handler) MarkRead(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	commID, err := crud.ParseID(c, "commId")
	if err != nil {
		return err
	}
	receipt, err := h.store.MarkRead(c.Request().Context(), userID, commID)
	if errors.Is(err, ErrNotFound) {
		return httperr.NotFound("Message not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "item": receipt})
}

// UnreadCount never fails the badge: a store error is logged and reads as 0.
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	n, err := h.store.UnreadCount(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("unread count failed")
		n = 0
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) Conversation(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	otherID, err := crud.ParseID(c, "userId")
	if err != nil {
		return err
	}
	items, err := h.store.Conversation(c.Request().Context(), userID, otherID, conversationLimit)
	if err != nil {
		return httperr.Internal(err)
	}
	if items == nil {
		items = []Communication{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) Recipients(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if len([]rune(q)) < minRecipientQuery {
		return c.JSON(http.StatusOK, map[string]interface{}{"items": []Recipient{}})
	}
	ctx := c.Request().Context()
	items, err := h.store.SearchRecipients(ctx, userID, q, recipientLimit)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("recipient search failed")
		return httperr.New(http.StatusInternalServerError, "Search unavailable")
	}
	if items == nil {
		items = []Recipient{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}
