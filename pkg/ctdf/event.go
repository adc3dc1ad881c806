package ctdf

import (
	"encoding/json"
	"time"
)

type Event struct {
	Identifier string
	Type       EventType
	Timestamp  time.Time
	Body       interface{}
}

type EventType string

const (
	EventTypeJourneyDelayUpdated EventType = "JourneyDelayUpdated"
)

// JourneyDelayUpdatedEvent is the body of an EventTypeJourneyDelayUpdated event
type JourneyDelayUpdatedEvent struct {
	JourneyRef string
	TrainRef   string
	RunDate    time.Time

	PreviousDelayMinutes int
	CurrentDelayMinutes  int
	DelayChangeMinutes   int

	Status            JourneyStatus
	CurrentStationRef string
}

func NewJourneyDelayUpdatedEvent(identifier string, previous *Journey, current *Journey, timestamp time.Time) *Event {
	return &Event{
		Identifier: identifier,
		Type:       EventTypeJourneyDelayUpdated,
		Timestamp:  timestamp,
		Body: JourneyDelayUpdatedEvent{
			JourneyRef: current.PrimaryIdentifier,
			TrainRef:   current.TrainRef,
			RunDate:    current.RunDate,

			PreviousDelayMinutes: previous.DelayMinutes,
			CurrentDelayMinutes:  current.DelayMinutes,
			DelayChangeMinutes:   current.DelayMinutes - previous.DelayMinutes,

			Status:            current.Status,
			CurrentStationRef: current.CurrentStationRef,
		},
	}
}

func (e *Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}
