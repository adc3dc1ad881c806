package delayestimator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/delayengine/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func toDocument(t *testing.T, value interface{}) bson.D {
	raw, err := bson.Marshal(value)
	require.NoError(t, err)

	var document bson.D
	require.NoError(t, bson.Unmarshal(raw, &document))

	return document
}

func TestMongoStoreGetJourney(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("resolves stations", func(mt *mtest.T) {
		journey := testJourney("J1", 2)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "travigo.journeys", mtest.FirstBatch, toDocument(mt.T, journey)),
			mtest.CreateCursorResponse(0, "travigo.stations", mtest.FirstBatch,
				toDocument(mt.T, journey.Stops[0].Station),
				toDocument(mt.T, journey.Stops[1].Station),
			),
		)

		store := &MongoStore{Database: mt.DB}
		loaded, err := store.GetJourney(context.Background(), "J1")
		require.NoError(mt, err)

		assert.Equal(mt, "J1", loaded.PrimaryIdentifier)
		require.Len(mt, loaded.Stops, 2)
		require.NotNil(mt, loaded.Stops[1].Station)
		assert.Equal(mt, 24.1, loaded.Stops[1].Station.Location.Latitude())
		assert.Equal(mt, 9, loaded.Stops[1].DepartureTime.Hour())
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "travigo.journeys", mtest.FirstBatch))

		store := &MongoStore{Database: mt.DB}
		_, err := store.GetJourney(context.Background(), "MISSING")

		assert.ErrorIs(mt, err, ErrJourneyNotFound)
	})

	mt.Run("storage failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query"}))

		store := &MongoStore{Database: mt.DB}
		_, err := store.GetJourney(context.Background(), "J1")

		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrJourneyNotFound)
	})
}

func TestMongoStoreGetJourneysForDate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("journeys of the day", func(mt *mtest.T) {
		first := testJourney("J1", 1)
		second := testJourney("J2", 1)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "travigo.journeys", mtest.FirstBatch, toDocument(mt.T, first), toDocument(mt.T, second)),
			mtest.CreateCursorResponse(0, "travigo.stations", mtest.FirstBatch, toDocument(mt.T, first.Stops[0].Station)),
		)

		store := &MongoStore{Database: mt.DB}
		journeys, err := store.GetJourneysForDate(context.Background(), testNow)
		require.NoError(mt, err)

		require.Len(mt, journeys, 2)
		assert.Equal(mt, "A", journeys[0].Stops[0].Station.PrimaryIdentifier)
		assert.Same(mt, journeys[0].Stops[0].Station, journeys[1].Stops[0].Station)
	})
}

func TestMongoStoreSignals(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("passenger assignments", func(mt *mtest.T) {
		assignment := assignmentAt("J1", 24.1, 46.0, testNow.Add(-time.Minute))
		assignment.PrimaryIdentifier = "PA1"
		assignment.SpeedKmh = speed(72)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "travigo.passenger_assignments", mtest.FirstBatch, toDocument(mt.T, assignment)))

		store := &MongoStore{Database: mt.DB}
		assignments, err := store.GetPassengerAssignments(context.Background(), "J1", testNow.Add(-5*time.Minute))
		require.NoError(mt, err)

		require.Len(mt, assignments, 1)
		assert.Equal(mt, 72.0, *assignments[0].SpeedKmh)
		assert.True(mt, assignments[0].IsEligibleSample(testNow, 5*time.Minute))
	})

	mt.Run("community messages", func(mt *mtest.T) {
		message := delayReport("J1", 15, 4, testNow.Add(-10*time.Minute))

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "travigo.communities", mtest.FirstBatch, toDocument(mt.T, ctdf.Community{PrimaryIdentifier: "community-J1", JourneyRef: "J1"})),
			mtest.CreateCursorResponse(0, "travigo.community_messages", mtest.FirstBatch, toDocument(mt.T, message)),
		)

		store := &MongoStore{Database: mt.DB}
		messages, err := store.GetCommunityMessages(context.Background(), "J1", testNow.Add(-2*time.Hour))
		require.NoError(mt, err)

		require.Len(mt, messages, 1)
		assert.Equal(mt, 15.0, messages[0].AdditionalData.DelayMinutes)
		assert.Equal(mt, 4, messages[0].VerificationCount)
	})

	mt.Run("journey without community", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "travigo.communities", mtest.FirstBatch))

		store := &MongoStore{Database: mt.DB}
		messages, err := store.GetCommunityMessages(context.Background(), "J1", testNow)

		require.NoError(mt, err)
		assert.Empty(mt, messages)
	})
}
