package pharmacy

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/scrypto/portal/internal/platform/events"
)

// NotifyHandler consumes prescription.allocated and stamps notified_at on
// every queue row it lists. Malformed messages are logged and dropped.
func NotifyHandler(store Store, logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, body []byte) error {
		if !gjson.ValidBytes(body) {
			logger.Warn().Msg("dropping malformed allocation event")
			return nil
		}
		var ids []uuid.UUID
		for _, v := range gjson.GetBytes(body, "pharmacies.#.queue_id").Array() {
			id, err := uuid.Parse(v.String())
			if err != nil {
				logger.Warn().Str("queue_id", v.String()).Msg("skipping invalid queue id")
				continue
			}
			ids = append(ids, id)
		}
		n, err := store.MarkNotified(ctx, ids)
		if err != nil {
			return err
		}
		logger.Info().Str("prescription_id", gjson.GetBytes(body, "prescription_id").String()).
			Int64("notified", n).Msg("pharmacies notified")
		return nil
	}
}
