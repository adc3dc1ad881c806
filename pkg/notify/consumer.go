package notify

import (
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
)

type queuedEvent struct {
	Identifier string
	Type       ctdf.EventType
	Timestamp  time.Time
	Body       json.RawMessage
}

// NotifyBatchConsumer reads events off the events queue and broadcasts the delay changes
type NotifyBatchConsumer struct {
	Broadcaster *Broadcaster
}

func NewNotifyBatchConsumer(broadcaster *Broadcaster) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{Broadcaster: broadcaster}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		if err := c.consumeEvent(delivery.Payload()); err != nil {
			log.Error().Err(err).Msg("Failed to broadcast event")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject event")
			}
			continue
		}

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack event")
		}
	}
}

func (c *NotifyBatchConsumer) consumeEvent(payload string) error {
	var event queuedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return err
	}

	switch event.Type {
	case ctdf.EventTypeJourneyDelayUpdated:
		var update ctdf.JourneyDelayUpdatedEvent
		if err := json.Unmarshal(event.Body, &update); err != nil {
			return err
		}

		return c.Broadcaster.BroadcastDelay(event.Identifier, event.Timestamp, update)
	default:
		log.Debug().Str("type", string(event.Type)).Msg("Ignoring event")
		return nil
	}
}
