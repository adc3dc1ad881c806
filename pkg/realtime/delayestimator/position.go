package delayestimator

import (
	"math"

	"github.com/travigo/delayengine/pkg/ctdf"
)

// EstimatedPosition is where the passengers on board collectively appear to be
type EstimatedPosition struct {
	Latitude  float64 `groups:"basic"`
	Longitude float64 `groups:"basic"`

	NearestStationRef   string  `groups:"basic"`
	NearestStopSequence int     `groups:"basic"`
	DistanceToStationKm float64 `groups:"basic"`

	AverageSpeedKmh float64 `groups:"basic"`
	SampleSize      int     `groups:"basic"`
}

// HasStop reports whether the centroid was matched to one of the journey stops
func (p *EstimatedPosition) HasStop() bool {
	return p != nil && p.NearestStationRef != ""
}

// EstimatePosition averages the sample coordinates into a centroid and matches it to the closest
// journey stop. The centroid is a planar mean which is fine over a single train's spread of passengers.
// Returns nil when there are no samples.
func EstimatePosition(journey *ctdf.Journey, samples []*ctdf.LocationSample) *EstimatedPosition {
	if len(samples) == 0 {
		return nil
	}

	var latitudeSum, longitudeSum float64
	var speedSum float64
	speedCount := 0

	for _, sample := range samples {
		latitudeSum += sample.Location.Latitude()
		longitudeSum += sample.Location.Longitude()

		if sample.SpeedKmh != nil {
			speedSum += *sample.SpeedKmh
			speedCount++
		}
	}

	position := &EstimatedPosition{
		Latitude:   latitudeSum / float64(len(samples)),
		Longitude:  longitudeSum / float64(len(samples)),
		SampleSize: len(samples),
	}

	if speedCount > 0 {
		position.AverageSpeedKmh = math.Round(speedSum/float64(speedCount)*10) / 10
	}

	closestDistance := math.Inf(1)

	for _, stop := range journey.SortedStops() {
		if stop.Station == nil || !stop.Station.Location.IsPoint() {
			continue
		}

		distance := ctdf.DistanceKm(
			position.Latitude, position.Longitude,
			stop.Station.Location.Latitude(), stop.Station.Location.Longitude(),
		)

		if distance < closestDistance {
			closestDistance = distance

			position.NearestStationRef = stop.StationRef
			position.NearestStopSequence = stop.SequenceNumber
			position.DistanceToStationKm = distance
		}
	}

	return position
}
