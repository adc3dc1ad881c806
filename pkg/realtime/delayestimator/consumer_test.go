package delayestimator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/adjust/rmq/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateBatchConsumer(t *testing.T) {
	journey := testJourney("J1", 3)
	journey.DelayMinutes = 15

	store := newMemoryStore(journey)
	consumer := NewEstimateBatchConsumer(newTestEstimator(store))

	known, err := EstimateRequest{JourneyRef: "J1"}.MarshalBinary()
	require.NoError(t, err)
	unknown, err := EstimateRequest{JourneyRef: "MISSING"}.MarshalBinary()
	require.NoError(t, err)

	deliveries := []*rmq.TestDelivery{
		rmq.NewTestDeliveryString(string(known)),
		rmq.NewTestDeliveryString(string(unknown)),
		rmq.NewTestDeliveryString("not json"),
		rmq.NewTestDeliveryString(`{"JourneyRef": ""}`),
	}

	batch := rmq.Deliveries{}
	for _, delivery := range deliveries {
		batch = append(batch, delivery)
	}

	consumer.Consume(batch)

	assert.Equal(t, rmq.Acked, deliveries[0].State)
	assert.Equal(t, rmq.Rejected, deliveries[1].State)
	assert.Equal(t, rmq.Rejected, deliveries[2].State)
	assert.Equal(t, rmq.Rejected, deliveries[3].State)
}

func TestScheduleActiveJourneys(t *testing.T) {
	connection := rmq.NewTestConnection()
	queue, err := connection.OpenQueue(EstimateQueueName)
	require.NoError(t, err)

	count, err := ScheduleActiveJourneys(context.Background(), newTestEstimator(batchStore()), queue, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	refs := []string{}
	for _, payload := range connection.GetDeliveries(EstimateQueueName) {
		var request EstimateRequest
		require.NoError(t, json.Unmarshal([]byte(payload), &request))

		assert.True(t, testNow.Equal(request.Requested))
		refs = append(refs, request.JourneyRef)
	}

	assert.ElementsMatch(t, []string{"J1", "J2"}, refs)
}
