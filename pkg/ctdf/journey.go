package ctdf

import (
	"errors"
	"fmt"
	"time"

	"github.com/travigo/delayengine/pkg/util"
	"golang.org/x/exp/slices"
)

const JourneyRunDateFormat = "2006-01-02"

var ErrInvalidJourney = errors.New("invalid journey")

// Journey is one scheduled run of a train on a specific service date
type Journey struct {
	PrimaryIdentifier string `groups:"basic" bson:",omitempty"`

	CreationDateTime     time.Time `groups:"detailed" bson:",omitempty"`
	ModificationDateTime time.Time `groups:"detailed" bson:",omitempty"`

	DataSource *DataSource `groups:"internal" bson:",omitempty"`

	TrainRef string `groups:"basic" bson:",omitempty"`

	RunDate           time.Time `groups:"basic"`
	DepartureTimezone string    `groups:"basic" bson:",omitempty"`

	Stops []*JourneyStop `groups:"detailed" bson:",omitempty"`

	DelayMinutes int `groups:"basic"`

	CurrentStationRef string `groups:"basic"`
	NextStationRef    string `groups:"basic"`

	Status JourneyStatus `groups:"basic"`
}

type JourneyStatus string

const (
	JourneyStatusScheduled JourneyStatus = "scheduled"
	JourneyStatusBoarding  JourneyStatus = "boarding"
	JourneyStatusActive    JourneyStatus = "active"
	JourneyStatusDeparted  JourneyStatus = "departed"
	JourneyStatusInTransit JourneyStatus = "in_transit"
	JourneyStatusDelayed   JourneyStatus = "delayed"
	JourneyStatusArrived   JourneyStatus = "arrived"
	JourneyStatusCompleted JourneyStatus = "completed"
	JourneyStatusCancelled JourneyStatus = "cancelled"
)

// IsMoving reports whether the journey has departed and not yet finished
func (s JourneyStatus) IsMoving() bool {
	switch s {
	case JourneyStatusActive, JourneyStatusDeparted, JourneyStatusInTransit, JourneyStatusDelayed:
		return true
	default:
		return false
	}
}

// JourneyStop is a scheduled station visit. Arrival and departure only carry a time of day,
// the journey RunDate anchors them to a calendar date.
type JourneyStop struct {
	StationRef string   `groups:"basic"`
	Station    *Station `groups:"basic" bson:"-"`

	SequenceNumber int `groups:"basic"`

	ArrivalTime   time.Time `groups:"basic"`
	DepartureTime time.Time `groups:"basic"`

	Platform string `groups:"basic" bson:",omitempty"`
}

// ScheduledTime is the departure time of day, or the arrival time for stops with no departure (terminus)
func (s *JourneyStop) ScheduledTime() time.Time {
	if s.DepartureTime.IsZero() {
		return s.ArrivalTime
	}

	return s.DepartureTime
}

func (j *Journey) Location() *time.Location {
	return util.LoadLocationOrUTC(j.DepartureTimezone)
}

// ScheduledDateTime anchors the stop time of day onto the journey run date in the journey timezone
func (j *Journey) ScheduledDateTime(stop *JourneyStop) time.Time {
	location := j.Location()
	runDate := time.Date(j.RunDate.Year(), j.RunDate.Month(), j.RunDate.Day(), 0, 0, 0, 0, location)

	return util.AddTimeToDate(runDate, stop.ScheduledTime())
}

// SortedStops returns the stops ordered by sequence number without modifying the journey
func (j *Journey) SortedStops() []*JourneyStop {
	stops := slices.Clone(j.Stops)

	slices.SortStableFunc(stops, func(a, b *JourneyStop) int {
		return a.SequenceNumber - b.SequenceNumber
	})

	return stops
}

// StopForStation returns the first stop in sequence order visiting the station
func (j *Journey) StopForStation(stationRef string) *JourneyStop {
	for _, stop := range j.SortedStops() {
		if stop.StationRef == stationRef {
			return stop
		}
	}

	return nil
}

func (j *Journey) LastStop() *JourneyStop {
	stops := j.SortedStops()
	if len(stops) == 0 {
		return nil
	}

	return stops[len(stops)-1]
}

// Validate checks the stop list invariant: sequence numbers are unique and strictly increasing
func (j *Journey) Validate() error {
	if j.PrimaryIdentifier == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidJourney)
	}

	for _, stop := range j.Stops {
		if stop == nil {
			return fmt.Errorf("%w: %s has an empty stop", ErrInvalidJourney, j.PrimaryIdentifier)
		}
	}

	previous := 0
	for i, stop := range j.SortedStops() {
		if i > 0 && stop.SequenceNumber <= previous {
			return fmt.Errorf("%w: %s has duplicate stop sequence %d", ErrInvalidJourney, j.PrimaryIdentifier, stop.SequenceNumber)
		}
		previous = stop.SequenceNumber
	}

	return nil
}
