package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	JourneysCollection             = "journeys"
	StationsCollection             = "stations"
	PassengerAssignmentsCollection = "passenger_assignments"
	CommunitiesCollection          = "communities"
	CommunityMessagesCollection    = "community_messages"
)

func createIndexes() {
	createStationsIndexes()
	createJourneysIndexes()
	createPassengerAssignmentsIndexes()
	createCommunitiesIndexes()
}

func createIndexesFor(collectionName string, indexes []mongo.IndexModel) {
	collection := GetCollection(collectionName)

	opts := options.CreateIndexes()
	_, err := collection.Indexes().CreateMany(context.Background(), indexes, opts)
	if err != nil {
		log.Error().Err(err).Str("collection", collectionName).Msg("Creating Index")
	}
}

func createStationsIndexes() {
	createIndexesFor(StationsCollection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
	})
}

func createJourneysIndexes() {
	createIndexesFor(JourneysCollection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "rundate", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "trainref", Value: 1}},
		},
	})
}

func createPassengerAssignmentsIndexes() {
	createIndexesFor(PassengerAssignmentsCollection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "journeyref", Value: 1},
				{Key: "status", Value: 1},
				{Key: "lastlocationupdate", Value: -1},
			},
		},
	})
}

func createCommunitiesIndexes() {
	createIndexesFor(CommunitiesCollection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "journeyref", Value: 1}},
		},
	})

	createIndexesFor(CommunityMessagesCollection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "communityref", Value: 1},
				{Key: "messagetype", Value: 1},
				{Key: "creationdatetime", Value: -1},
			},
		},
	})
}
