package delayestimator

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/delayengine/pkg/ctdf"
)

type recordingObserver struct {
	results []*EstimationResult
}

func (o *recordingObserver) ObserveEstimation(_ context.Context, result *EstimationResult) {
	o.results = append(o.results, result)
}

func TestEstimateDelayNotFound(t *testing.T) {
	estimator := newTestEstimator(newMemoryStore())

	result, err := estimator.EstimateDelay(context.Background(), "MISSING")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrJourneyNotFound)
}

func TestEstimateDelayWithoutSignals(t *testing.T) {
	store := newMemoryStore(testJourney("J1", 3))
	estimator := newTestEstimator(store)

	result, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	assert.Equal(t, "J1", result.JourneyRef)
	assert.Equal(t, 0, result.EstimatedDelayMinutes)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Nil(t, result.EstimatedPosition)
	require.NotNil(t, result.ExpectedPosition)
	assert.Equal(t, "B", result.ExpectedPosition.StationRef)
	assert.False(t, result.DelayUpdated)
	assert.Equal(t, 0, store.updateCount())
}

func TestEstimateDelayHistoricalOnly(t *testing.T) {
	journey := testJourney("J1", 3)
	journey.DelayMinutes = 15

	store := newMemoryStore(journey)
	result, err := newTestEstimator(store).EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	assert.Equal(t, 15, result.EstimatedDelayMinutes)
	assert.False(t, result.DelayUpdated)
}

func TestEstimateDelayFromPassengerPositions(t *testing.T) {
	store := newMemoryStore(testJourney("J1", 5))

	now := testNow.Add(3 * time.Hour)
	for i := 0; i < 5; i++ {
		store.assignments["J1"] = append(store.assignments["J1"], assignmentAt("J1", 24.1, 46.0, now.Add(-time.Minute)))
	}
	store.assignments["J1"] = append(store.assignments["J1"], assignmentAt("J1", 30, 50, now.Add(-10*time.Minute)))

	estimator := newTestEstimator(store)
	estimator.Now = func() time.Time { return now }

	observer := &recordingObserver{}
	estimator.AddObserver(observer)

	result, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	assert.Equal(t, 5, result.SampleCount, "stale sample is ignored")
	assert.Equal(t, "B", result.EstimatedPosition.NearestStationRef)
	assert.Equal(t, 5, result.ExpectedPosition.StopSequence)
	assert.Equal(t, 12, result.EstimatedDelayMinutes)
	assert.Equal(t, 12, result.DelayChangeMinutes())
	assert.True(t, result.DelayUpdated)
	assert.Equal(t, []int{12}, store.updates)
	assert.True(t, now.Equal(result.EstimatedAt))

	require.Len(t, observer.results, 1)
	assert.Same(t, result, observer.results[0])
}

func TestEstimateDelayHysteresis(t *testing.T) {
	journey := testJourney("J1", 5)
	journey.DelayMinutes = 11

	store := newMemoryStore(journey)
	now := testNow.Add(3 * time.Hour)
	store.assignments["J1"] = []*ctdf.PassengerAssignment{assignmentAt("J1", 24.1, 46.0, now)}

	estimator := newTestEstimator(store)
	estimator.Now = func() time.Time { return now }

	first, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	// (12*2 + 11*0.5) / 2.5
	assert.Equal(t, 12, first.EstimatedDelayMinutes)
	assert.False(t, first.DelayUpdated)
	assert.Equal(t, 0, store.updateCount())

	second, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEstimateDelayWithoutUpdater(t *testing.T) {
	var logs bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&logs)
	defer func() { log.Logger = previous }()

	store := newMemoryStore(testJourney("J1", 5))
	now := testNow.Add(3 * time.Hour)
	for i := 0; i < 5; i++ {
		store.assignments["J1"] = append(store.assignments["J1"], assignmentAt("J1", 24.1, 46.0, now.Add(-time.Minute)))
	}

	estimator := NewEstimator(store, store, nil, nil)
	estimator.Now = func() time.Time { return now }

	result, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	assert.Equal(t, 12, result.EstimatedDelayMinutes)
	assert.False(t, result.DelayUpdated)
	assert.Equal(t, 0, store.updateCount())
	assert.Contains(t, logs.String(), "Delay write-back disabled, not updating journey")
	assert.NotContains(t, logs.String(), "below threshold")
}

func TestEstimateDelayCommunityReports(t *testing.T) {
	store := newMemoryStore(testJourney("J1", 3))
	store.messages["J1"] = []*ctdf.CommunityMessage{
		delayReport("J1", 20, 5, testNow.Add(-time.Minute)),
		delayReport("J1", 40, 5, testNow.Add(-3*time.Hour)),
	}

	unverified := delayReport("J1", 90, 5, testNow)
	unverified.IsVerified = false
	store.messages["J1"] = append(store.messages["J1"], unverified)

	result, err := newTestEstimator(store).EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ReportCount)
	assert.Equal(t, 20, result.EstimatedDelayMinutes)
	assert.True(t, result.DelayUpdated)
}

func TestEstimateDelayInfrastructureErrors(t *testing.T) {
	storageErr := errors.New("connection reset")

	store := newMemoryStore(testJourney("J1", 3))
	store.signalErr = storageErr

	result, err := newTestEstimator(store).EstimateDelay(context.Background(), "J1")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, storageErr)

	store = newMemoryStore()
	store.journeyErr = storageErr

	_, err = newTestEstimator(store).EstimateDelay(context.Background(), "J1")
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, ErrJourneyNotFound)
}

func TestEstimateDelayInvalidJourney(t *testing.T) {
	journey := testJourney("J1", 3)
	journey.Stops[1].SequenceNumber = 1

	_, err := newTestEstimator(newMemoryStore(journey)).EstimateDelay(context.Background(), "J1")
	assert.ErrorIs(t, err, ctdf.ErrInvalidJourney)
}

func TestEstimatorSetConfig(t *testing.T) {
	journey := testJourney("J1", 3)
	journey.DelayMinutes = 15

	store := newMemoryStore(journey)
	estimator := newTestEstimator(store)

	config := DefaultConfig()
	config.HysteresisMinutes = 0
	estimator.SetConfig(&config)

	result, err := estimator.EstimateDelay(context.Background(), "J1")
	require.NoError(t, err)
	assert.True(t, result.DelayUpdated, "a zero threshold always writes back")
	assert.Same(t, &config, estimator.Config())
}

func TestShouldWriteBack(t *testing.T) {
	assert.False(t, ShouldWriteBack(10, 11, 2))
	assert.False(t, ShouldWriteBack(10, 9, 2))
	assert.True(t, ShouldWriteBack(10, 12, 2))
	assert.True(t, ShouldWriteBack(10, 8, 2))
	assert.False(t, ShouldWriteBack(0, 0, 2))
}
