package delayestimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DelayEventPublisher fans a delay change out to the rest of the system
type DelayEventPublisher interface {
	PublishDelayEvent(ctx context.Context, event *ctdf.Event) error
}

// MongoDelayUpdater writes accepted estimates onto the journey record and announces the change
type MongoDelayUpdater struct {
	Database   *mongo.Database
	Publishers []DelayEventPublisher

	Now func() time.Time
}

func NewMongoDelayUpdater(publishers ...DelayEventPublisher) *MongoDelayUpdater {
	return &MongoDelayUpdater{
		Database:   database.MongoGlobalInstance.Database,
		Publishers: publishers,
		Now:        time.Now,
	}
}

// NextJourneyStatus moves a moving journey into delayed when it has a delay, and a delayed journey
// back to in transit once the delay is gone. Every other status is left alone.
func NextJourneyStatus(current ctdf.JourneyStatus, delayMinutes int) ctdf.JourneyStatus {
	switch {
	case delayMinutes > 0 && current.IsMoving():
		return ctdf.JourneyStatusDelayed
	case delayMinutes == 0 && current == ctdf.JourneyStatusDelayed:
		return ctdf.JourneyStatusInTransit
	default:
		return current
	}
}

func (u *MongoDelayUpdater) UpdateJourneyDelay(ctx context.Context, journeyID string, delayMinutes int) (*ctdf.Journey, error) {
	if delayMinutes < 0 {
		delayMinutes = 0
	}

	journeysCollection := u.Database.Collection(database.JourneysCollection)

	var previous *ctdf.Journey
	err := journeysCollection.FindOne(ctx, bson.M{"primaryidentifier": journeyID}).Decode(&previous)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, journeyID)
	} else if err != nil {
		return nil, fmt.Errorf("load journey %s: %w", journeyID, err)
	}

	now := u.Now()

	var updated *ctdf.Journey
	err = journeysCollection.FindOneAndUpdate(ctx,
		bson.M{"primaryidentifier": journeyID},
		bson.M{"$set": bson.M{
			"delayminutes":         delayMinutes,
			"status":               NextJourneyStatus(previous.Status, delayMinutes),
			"modificationdatetime": now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, journeyID)
	} else if err != nil {
		return nil, fmt.Errorf("update journey %s: %w", journeyID, err)
	}

	log.Info().
		Str("journey", journeyID).
		Int("previous", previous.DelayMinutes).
		Int("current", updated.DelayMinutes).
		Str("status", string(updated.Status)).
		Msg("Updated journey delay")

	event := ctdf.NewJourneyDelayUpdatedEvent(uuid.NewString(), previous, updated, now)
	for _, publisher := range u.Publishers {
		if err := publisher.PublishDelayEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("journey", journeyID).Msg("Failed to publish delay update")
		}
	}

	return updated, nil
}
