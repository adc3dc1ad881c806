package delayestimator

import (
	"context"

	"github.com/adjust/rmq/v5"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/redis_client"
)

const EventsQueueName = "events-queue"

// QueuePublisher pushes delay change events onto the shared events queue for the notification consumers
type QueuePublisher struct {
	Queue rmq.Queue
}

func NewQueuePublisher() (*QueuePublisher, error) {
	queue, err := redis_client.QueueConnection.OpenQueue(EventsQueueName)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{Queue: queue}, nil
}

func (p *QueuePublisher) PublishDelayEvent(_ context.Context, event *ctdf.Event) error {
	eventBytes, err := event.MarshalBinary()
	if err != nil {
		return err
	}

	return p.Queue.PublishBytes(eventBytes)
}
