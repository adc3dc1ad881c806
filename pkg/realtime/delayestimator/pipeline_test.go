package delayestimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/delayengine/pkg/ctdf"
)

func TestProjectExpectedPosition(t *testing.T) {
	journey := testJourney("J1", 3)
	date := journey.RunDate

	tests := []struct {
		name             string
		now              time.Time
		expectedStation  string
		expectedSequence int
	}{
		{"between stops", date.Add(8*time.Hour + 30*time.Minute), "B", 2},
		{"before departure", date.Add(6 * time.Hour), "A", 1},
		{"exactly at scheduled time", date.Add(9 * time.Hour), "B", 2},
		{"one second late", date.Add(9*time.Hour + time.Second), "C", 3},
		{"after every stop", date.Add(23 * time.Hour), "C", 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			position := ProjectExpectedPosition(journey, test.now)

			require.NotNil(t, position)
			assert.Equal(t, test.expectedStation, position.StationRef)
			assert.Equal(t, test.expectedSequence, position.StopSequence)
		})
	}
}

func TestProjectExpectedPositionEdgeCases(t *testing.T) {
	assert.Nil(t, ProjectExpectedPosition(&ctdf.Journey{PrimaryIdentifier: "EMPTY"}, testNow))

	journey := testJourney("J1", 3)
	journey.Stops[0], journey.Stops[2] = journey.Stops[2], journey.Stops[0]

	position := ProjectExpectedPosition(journey, testNow)
	assert.Equal(t, "B", position.StationRef, "stops are walked in sequence order")

	terminus := testJourney("J2", 2)
	terminus.Stops[1].DepartureTime = time.Time{}
	terminus.Stops[1].ArrivalTime = timeOfDay(10, 0)

	position = ProjectExpectedPosition(terminus, terminus.RunDate.Add(9*time.Hour+30*time.Minute))
	assert.Equal(t, "B", position.StationRef)
	assert.True(t, terminus.RunDate.Add(10*time.Hour).Equal(position.ScheduledTime))
}

func TestEstimatePosition(t *testing.T) {
	journey := testJourney("J1", 3)

	position := EstimatePosition(journey, []*ctdf.LocationSample{
		sampleAt(24.0, 46.0, testNow, speed(80)),
		sampleAt(24.2, 46.2, testNow, speed(100)),
	})

	require.NotNil(t, position)
	assert.InDelta(t, 24.1, position.Latitude, 1e-9)
	assert.InDelta(t, 46.1, position.Longitude, 1e-9)
	assert.Equal(t, 90.0, position.AverageSpeedKmh)
	assert.Equal(t, 2, position.SampleSize)
	assert.Equal(t, "B", position.NearestStationRef)
	assert.Equal(t, 2, position.NearestStopSequence)
	assert.InDelta(t, ctdf.DistanceKm(24.1, 46.1, 24.1, 46.0), position.DistanceToStationKm, 1e-9)
}

func TestEstimatePositionSpeeds(t *testing.T) {
	journey := testJourney("J1", 3)

	position := EstimatePosition(journey, []*ctdf.LocationSample{
		sampleAt(24.0, 46.0, testNow, nil),
		sampleAt(24.0, 46.0, testNow, speed(61)),
		sampleAt(24.0, 46.0, testNow, speed(62)),
	})
	assert.Equal(t, 61.5, position.AverageSpeedKmh, "only samples reporting a speed count")

	position = EstimatePosition(journey, []*ctdf.LocationSample{sampleAt(24.0, 46.0, testNow, nil)})
	assert.Equal(t, 0.0, position.AverageSpeedKmh)
}

func TestEstimatePositionNoData(t *testing.T) {
	journey := testJourney("J1", 3)

	assert.Nil(t, EstimatePosition(journey, nil))

	noStations := testJourney("J2", 2)
	for _, stop := range noStations.Stops {
		stop.Station = nil
	}

	position := EstimatePosition(noStations, []*ctdf.LocationSample{sampleAt(24.0, 46.0, testNow, nil)})
	require.NotNil(t, position)
	assert.False(t, position.HasStop())
}

func TestFuseDelay(t *testing.T) {
	config := DefaultConfig()

	gpsOnly := DelayCandidates(FusionInput{
		Journey:           &ctdf.Journey{},
		EstimatedPosition: &EstimatedPosition{NearestStationRef: "B", NearestStopSequence: 2},
		ExpectedPosition:  &ExpectedPosition{StationRef: "E", StopSequence: 5},
		Now:               testNow,
	}, &config)
	require.Len(t, gpsOnly, 1)
	assert.Equal(t, DelaySourceGPS, gpsOnly[0].Source)
	assert.Equal(t, 12, FuseDelay(gpsOnly))

	assert.Equal(t, 0, FuseDelay(DelayCandidates(FusionInput{Journey: &ctdf.Journey{}, Now: testNow}, &config)))
	assert.Equal(t, 0, FuseDelay(nil))

	historical := DelayCandidates(FusionInput{Journey: &ctdf.Journey{DelayMinutes: 15}, Now: testNow}, &config)
	assert.Equal(t, 15, FuseDelay(historical))

	ahead := DelayCandidates(FusionInput{
		Journey:           &ctdf.Journey{},
		EstimatedPosition: &EstimatedPosition{NearestStationRef: "E", NearestStopSequence: 5},
		ExpectedPosition:  &ExpectedPosition{StationRef: "B", StopSequence: 2},
		Now:               testNow,
	}, &config)
	assert.Empty(t, ahead, "running ahead of the timetable is not negative delay")
}

func TestFuseDelayCombinesSources(t *testing.T) {
	config := DefaultConfig()

	candidates := DelayCandidates(FusionInput{
		Journey:           &ctdf.Journey{},
		EstimatedPosition: &EstimatedPosition{NearestStationRef: "B", NearestStopSequence: 2},
		ExpectedPosition:  &ExpectedPosition{StationRef: "E", StopSequence: 5},
		Reports: []*ctdf.CommunityReport{
			{DelayMinutes: 10, VerificationCount: 5, Timestamp: testNow},
		},
		Now: testNow,
	}, &config)

	require.Len(t, candidates, 2)
	assert.Equal(t, DelayCandidate{Source: DelaySourceCommunity, Value: 10, Weight: 1.5}, candidates[1])
	// (12*2 + 10*1.5) / 3.5
	assert.Equal(t, 11, FuseDelay(candidates))
}

func TestCommunityCandidateWeighting(t *testing.T) {
	config := DefaultConfig()

	candidates := DelayCandidates(FusionInput{
		Journey: &ctdf.Journey{},
		Reports: []*ctdf.CommunityReport{
			{DelayMinutes: 20, VerificationCount: 5, Timestamp: testNow},
			{DelayMinutes: 5, VerificationCount: 5, Timestamp: testNow.Add(-60 * time.Minute)},
		},
		Now: testNow,
	}, &config)

	require.Len(t, candidates, 1)
	// weights 1.0 and 0.5
	assert.InDelta(t, 15.0, candidates[0].Value, 1e-9)

	unverified := DelayCandidates(FusionInput{
		Journey: &ctdf.Journey{},
		Reports: []*ctdf.CommunityReport{{DelayMinutes: 20, VerificationCount: 0, Timestamp: testNow}},
		Now:     testNow,
	}, &config)
	assert.Empty(t, unverified, "reports with zero total weight contribute nothing")
}

func TestReportWeight(t *testing.T) {
	config := DefaultConfig()

	tests := []struct {
		name          string
		age           time.Duration
		verifications int
		expected      float64
	}{
		{"fresh and saturated", 0, 5, 1},
		{"half window", time.Hour, 5, 0.5},
		{"past window hits floor", 150 * time.Minute, 5, 0.1},
		{"verifications saturate", 0, 12, 1},
		{"partial verification", 0, 3, 0.6},
		{"future timestamp counts as fresh", -10 * time.Minute, 5, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			report := &ctdf.CommunityReport{VerificationCount: test.verifications, Timestamp: testNow.Add(-test.age)}

			assert.InDelta(t, test.expected, ReportWeight(report, testNow, &config), 1e-9)
		})
	}
}

func TestConfidence(t *testing.T) {
	config := DefaultConfig().Confidence

	fresh := make([]*ctdf.LocationSample, 5)
	for i := range fresh {
		fresh[i] = sampleAt(24.0, 46.0, testNow, nil)
	}

	assert.Equal(t, 70.0, ConfidenceScore(fresh, nil, testNow, config))
	assert.Equal(t, ConfidenceHigh, Confidence(fresh, nil, testNow, config))

	assert.Equal(t, 0.0, ConfidenceScore(nil, nil, testNow, config))
	assert.Equal(t, ConfidenceLow, Confidence(nil, nil, testNow, config))

	stale := []*ctdf.LocationSample{
		sampleAt(24.0, 46.0, testNow.Add(-6*time.Minute), nil),
		sampleAt(24.0, 46.0, testNow.Add(-5*time.Minute), nil),
		sampleAt(24.0, 46.0, testNow.Add(-10*time.Minute), nil),
	}
	reports := []*ctdf.CommunityReport{{}, {}}

	assert.Equal(t, 42.0, ConfidenceScore(stale, reports, testNow, config))
	assert.Equal(t, ConfidenceMedium, Confidence(stale, reports, testNow, config))

	manyReports := make([]*ctdf.CommunityReport, 10)
	assert.Equal(t, 30.0, ConfidenceScore(nil, manyReports, testNow, config), "report points are capped")

	recent := []*ctdf.LocationSample{sampleAt(24.0, 46.0, testNow.Add(-75*time.Second), nil)}
	assert.Equal(t, 25.0, ConfidenceScore(recent, nil, testNow, config))
}
