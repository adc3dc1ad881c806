package delayestimator

import (
	"context"
	"sync"
	"time"

	"github.com/travigo/delayengine/pkg/ctdf"
)

var testNow = time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)

func timeOfDay(hour int, minute int) time.Time {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC)
}

func station(identifier string, latitude float64, longitude float64) *ctdf.Station {
	location := ctdf.NewPointLocation(latitude, longitude)

	return &ctdf.Station{PrimaryIdentifier: identifier, Location: &location}
}

// testJourney runs along a meridian with a stop every 0.1 degrees of latitude, hourly from 08:00
func testJourney(identifier string, stopCount int) *ctdf.Journey {
	journey := &ctdf.Journey{
		PrimaryIdentifier: identifier,
		TrainRef:          "T" + identifier,
		RunDate:           time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		Status:            ctdf.JourneyStatusInTransit,
	}

	for i := 0; i < stopCount; i++ {
		ref := string(rune('A' + i))
		journey.Stops = append(journey.Stops, &ctdf.JourneyStop{
			StationRef:     ref,
			Station:        station(ref, 24.0+float64(i)*0.1, 46.0),
			SequenceNumber: i + 1,
			ArrivalTime:    timeOfDay(8+i, 0),
			DepartureTime:  timeOfDay(8+i, 0),
		})
	}

	return journey
}

func speed(value float64) *float64 {
	return &value
}

func sampleAt(latitude float64, longitude float64, timestamp time.Time, speedKmh *float64) *ctdf.LocationSample {
	return &ctdf.LocationSample{
		Location:  ctdf.NewPointLocation(latitude, longitude),
		SpeedKmh:  speedKmh,
		Timestamp: timestamp,
	}
}

func assignmentAt(journeyRef string, latitude float64, longitude float64, updated time.Time) *ctdf.PassengerAssignment {
	location := ctdf.NewPointLocation(latitude, longitude)

	return &ctdf.PassengerAssignment{
		JourneyRef:             journeyRef,
		Status:                 ctdf.PassengerAssignmentStatusActive,
		LocationSharingEnabled: true,
		CurrentLocation:        &location,
		LastLocationUpdate:     updated,
	}
}

func delayReport(journeyRef string, delayMinutes float64, verifications int, created time.Time) *ctdf.CommunityMessage {
	return &ctdf.CommunityMessage{
		CommunityRef:      "community-" + journeyRef,
		MessageType:       ctdf.CommunityMessageTypeDelayReport,
		AdditionalData:    ctdf.CommunityMessageData{DelayMinutes: delayMinutes},
		IsVerified:        true,
		VerificationCount: verifications,
		CreationDateTime:  created,
	}
}

type memoryStore struct {
	mutex sync.Mutex

	journeys    map[string]*ctdf.Journey
	assignments map[string][]*ctdf.PassengerAssignment
	messages    map[string][]*ctdf.CommunityMessage

	journeyErr error
	signalErr  error

	updates []int
}

func newMemoryStore(journeys ...*ctdf.Journey) *memoryStore {
	store := &memoryStore{
		journeys:    map[string]*ctdf.Journey{},
		assignments: map[string][]*ctdf.PassengerAssignment{},
		messages:    map[string][]*ctdf.CommunityMessage{},
	}

	for _, journey := range journeys {
		store.journeys[journey.PrimaryIdentifier] = journey
	}

	return store
}

func (s *memoryStore) GetJourney(_ context.Context, journeyID string) (*ctdf.Journey, error) {
	if s.journeyErr != nil {
		return nil, s.journeyErr
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	journey, ok := s.journeys[journeyID]
	if !ok {
		return nil, ErrJourneyNotFound
	}

	copied := *journey
	return &copied, nil
}

func (s *memoryStore) GetJourneysForDate(_ context.Context, date time.Time) ([]*ctdf.Journey, error) {
	if s.journeyErr != nil {
		return nil, s.journeyErr
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var journeys []*ctdf.Journey
	for _, journey := range s.journeys {
		if journey.RunDate.Format(ctdf.JourneyRunDateFormat) == date.Format(ctdf.JourneyRunDateFormat) {
			copied := *journey
			journeys = append(journeys, &copied)
		}
	}

	return journeys, nil
}

func (s *memoryStore) GetPassengerAssignments(_ context.Context, journeyID string, _ time.Time) ([]*ctdf.PassengerAssignment, error) {
	if s.signalErr != nil {
		return nil, s.signalErr
	}

	return append([]*ctdf.PassengerAssignment(nil), s.assignments[journeyID]...), nil
}

func (s *memoryStore) GetCommunityMessages(_ context.Context, journeyID string, _ time.Time) ([]*ctdf.CommunityMessage, error) {
	if s.signalErr != nil {
		return nil, s.signalErr
	}

	return append([]*ctdf.CommunityMessage(nil), s.messages[journeyID]...), nil
}

func (s *memoryStore) UpdateJourneyDelay(_ context.Context, journeyID string, delayMinutes int) (*ctdf.Journey, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.updates = append(s.updates, delayMinutes)

	journey := s.journeys[journeyID]
	journey.DelayMinutes = delayMinutes

	copied := *journey
	return &copied, nil
}

func (s *memoryStore) updateCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.updates)
}

func newTestEstimator(store *memoryStore) *Estimator {
	estimator := NewEstimator(store, store, store, nil)
	estimator.Now = func() time.Time { return testNow }

	return estimator
}
