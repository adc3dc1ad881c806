package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
)

const AllDelaysSubject = "journeys.delays"

// MessagePublisher is the part of a NATS connection the broadcaster needs
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// DelayBroadcast is the message delivered to subscribers of delay changes
type DelayBroadcast struct {
	EventIdentifier string    `json:"eventId"`
	Timestamp       time.Time `json:"timestamp"`

	JourneyRef string `json:"journeyRef"`
	TrainRef   string `json:"trainRef,omitempty"`
	RunDate    string `json:"runDate"`

	PreviousDelayMinutes int `json:"previousDelay"`
	CurrentDelayMinutes  int `json:"currentDelay"`
	DelayChangeMinutes   int `json:"delayChange"`

	Status            string `json:"status"`
	CurrentStationRef string `json:"currentStationRef,omitempty"`
}

// Broadcaster publishes delay changes to the journey, train and global delay subjects
type Broadcaster struct {
	Conn MessagePublisher

	close func()
}

func NewNATSBroadcaster(url string) (*Broadcaster, error) {
	nc, err := nats.Connect(url,
		nats.Name("delayengine"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Warn().Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", url).Msg("NATS broadcaster connected")

	return &Broadcaster{
		Conn: nc,
		close: func() {
			nc.Drain()
		},
	}, nil
}

func (b *Broadcaster) Close() {
	if b.close != nil {
		b.close()
	}
}

func JourneyDelaySubject(journeyRef string) string {
	return fmt.Sprintf("journeys.%s.delay", subjectToken(journeyRef))
}

func TrainDelaySubject(trainRef string) string {
	return fmt.Sprintf("trains.%s.delay", subjectToken(trainRef))
}

// DelaySubjects lists every subject a delay change is sent to. Journeys without a train
// only go to the journey and global subjects.
func DelaySubjects(update ctdf.JourneyDelayUpdatedEvent) []string {
	subjects := []string{JourneyDelaySubject(update.JourneyRef)}

	if update.TrainRef != "" {
		subjects = append(subjects, TrainDelaySubject(update.TrainRef))
	}

	return append(subjects, AllDelaysSubject)
}

func NewDelayBroadcast(identifier string, timestamp time.Time, update ctdf.JourneyDelayUpdatedEvent) DelayBroadcast {
	return DelayBroadcast{
		EventIdentifier: identifier,
		Timestamp:       timestamp,

		JourneyRef: update.JourneyRef,
		TrainRef:   update.TrainRef,
		RunDate:    update.RunDate.Format(ctdf.JourneyRunDateFormat),

		PreviousDelayMinutes: update.PreviousDelayMinutes,
		CurrentDelayMinutes:  update.CurrentDelayMinutes,
		DelayChangeMinutes:   update.DelayChangeMinutes,

		Status:            string(update.Status),
		CurrentStationRef: update.CurrentStationRef,
	}
}

func (b *Broadcaster) BroadcastDelay(identifier string, timestamp time.Time, update ctdf.JourneyDelayUpdatedEvent) error {
	message, err := json.Marshal(NewDelayBroadcast(identifier, timestamp, update))
	if err != nil {
		return err
	}

	for _, subject := range DelaySubjects(update) {
		if err := b.Conn.Publish(subject, message); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
	}

	return nil
}

// PublishDelayEvent broadcasts a JourneyDelayUpdated event directly, skipping the events queue
func (b *Broadcaster) PublishDelayEvent(_ context.Context, event *ctdf.Event) error {
	update, ok := event.Body.(ctdf.JourneyDelayUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected %s event body %T", event.Type, event.Body)
	}

	return b.BroadcastDelay(event.Identifier, event.Timestamp, update)
}

// NATS tokens cannot contain whitespace, wildcards or dots
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = replacer.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
