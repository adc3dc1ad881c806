package delayestimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore reads journeys and passenger signals from the shared travigo database
type MongoStore struct {
	Database *mongo.Database
}

func NewMongoStore() *MongoStore {
	return &MongoStore{Database: database.MongoGlobalInstance.Database}
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.Database.Collection(name)
}

func (s *MongoStore) GetJourney(ctx context.Context, journeyID string) (*ctdf.Journey, error) {
	var journey *ctdf.Journey

	err := s.collection(database.JourneysCollection).FindOne(ctx, bson.M{"primaryidentifier": journeyID}).Decode(&journey)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, journeyID)
	} else if err != nil {
		return nil, fmt.Errorf("load journey %s: %w", journeyID, err)
	}

	if err := s.resolveStations(ctx, []*ctdf.Journey{journey}); err != nil {
		return nil, err
	}

	return journey, nil
}

// GetJourneysForDate returns every journey running on the calendar date of date
func (s *MongoStore) GetJourneysForDate(ctx context.Context, date time.Time) ([]*ctdf.Journey, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	cursor, err := s.collection(database.JourneysCollection).Find(ctx, bson.M{
		"rundate": bson.M{
			"$gte": dayStart,
			"$lt":  dayStart.AddDate(0, 0, 1),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("find journeys: %w", err)
	}

	var journeys []*ctdf.Journey
	if err := cursor.All(ctx, &journeys); err != nil {
		return nil, fmt.Errorf("decode journeys: %w", err)
	}

	if err := s.resolveStations(ctx, journeys); err != nil {
		return nil, err
	}

	return journeys, nil
}

// resolveStations loads the stations of every stop in a single query and attaches them to the stops
func (s *MongoStore) resolveStations(ctx context.Context, journeys []*ctdf.Journey) error {
	stationRefs := []string{}
	seen := map[string]bool{}

	for _, journey := range journeys {
		for _, stop := range journey.Stops {
			if stop != nil && !seen[stop.StationRef] {
				seen[stop.StationRef] = true
				stationRefs = append(stationRefs, stop.StationRef)
			}
		}
	}

	if len(stationRefs) == 0 {
		return nil
	}

	cursor, err := s.collection(database.StationsCollection).Find(ctx, bson.M{"primaryidentifier": bson.M{"$in": stationRefs}})
	if err != nil {
		return fmt.Errorf("find stations: %w", err)
	}

	var stations []*ctdf.Station
	if err := cursor.All(ctx, &stations); err != nil {
		return fmt.Errorf("decode stations: %w", err)
	}

	stationsByRef := map[string]*ctdf.Station{}
	for _, station := range stations {
		stationsByRef[station.PrimaryIdentifier] = station
	}

	for _, journey := range journeys {
		for _, stop := range journey.Stops {
			if stop != nil {
				stop.Station = stationsByRef[stop.StationRef]
			}
		}
	}

	return nil
}

func (s *MongoStore) GetPassengerAssignments(ctx context.Context, journeyID string, since time.Time) ([]*ctdf.PassengerAssignment, error) {
	cursor, err := s.collection(database.PassengerAssignmentsCollection).Find(ctx, bson.M{
		"journeyref":             journeyID,
		"status":                 ctdf.PassengerAssignmentStatusActive,
		"locationsharingenabled": true,
		"lastlocationupdate":     bson.M{"$gt": since},
	})
	if err != nil {
		return nil, fmt.Errorf("find passenger assignments: %w", err)
	}

	var assignments []*ctdf.PassengerAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, fmt.Errorf("decode passenger assignments: %w", err)
	}

	return assignments, nil
}

func (s *MongoStore) GetCommunityMessages(ctx context.Context, journeyID string, since time.Time) ([]*ctdf.CommunityMessage, error) {
	var community *ctdf.Community

	err := s.collection(database.CommunitiesCollection).FindOne(ctx, bson.M{"journeyref": journeyID}).Decode(&community)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("load community of %s: %w", journeyID, err)
	}

	cursor, err := s.collection(database.CommunityMessagesCollection).Find(ctx, bson.M{
		"communityref":     community.PrimaryIdentifier,
		"messagetype":      ctdf.CommunityMessageTypeDelayReport,
		"isverified":       true,
		"creationdatetime": bson.M{"$gt": since},
	})
	if err != nil {
		return nil, fmt.Errorf("find community messages: %w", err)
	}

	var messages []*ctdf.CommunityMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode community messages: %w", err)
	}

	return messages, nil
}
