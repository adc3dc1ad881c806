package delayestimator

import (
	"math"
	"time"

	"github.com/travigo/delayengine/pkg/ctdf"
)

type DelaySource string

const (
	DelaySourceGPS        DelaySource = "gps"
	DelaySourceCommunity  DelaySource = "community"
	DelaySourceHistorical DelaySource = "historical"
)

// DelayCandidate is one weighted opinion on the current delay in minutes
type DelayCandidate struct {
	Source DelaySource `groups:"basic"`
	Value  float64     `groups:"basic"`
	Weight float64     `groups:"basic"`
}

// FusionInput is everything the fusion step looks at
type FusionInput struct {
	Journey           *ctdf.Journey
	EstimatedPosition *EstimatedPosition
	ExpectedPosition  *ExpectedPosition
	Reports           []*ctdf.CommunityReport
	Now               time.Time
}

// DelayCandidates builds the weighted candidates from each source that has evidence
func DelayCandidates(input FusionInput, config *Config) []DelayCandidate {
	var candidates []DelayCandidate

	if candidate, ok := gpsCandidate(input, config); ok {
		candidates = append(candidates, candidate)
	}

	if candidate, ok := communityCandidate(input, config); ok {
		candidates = append(candidates, candidate)
	}

	if input.Journey != nil && input.Journey.DelayMinutes > 0 {
		candidates = append(candidates, DelayCandidate{
			Source: DelaySourceHistorical,
			Value:  float64(input.Journey.DelayMinutes),
			Weight: config.HistoricalWeight,
		})
	}

	return candidates
}

// FuseDelay returns the rounded weighted average of the candidates, or 0 when there are none
func FuseDelay(candidates []DelayCandidate) int {
	var weightedSum, totalWeight float64

	for _, candidate := range candidates {
		weightedSum += candidate.Value * candidate.Weight
		totalWeight += candidate.Weight
	}

	if totalWeight == 0 {
		return 0
	}

	return int(math.Round(weightedSum / totalWeight))
}

// A vehicle behind the timetable contributes MinutesPerMissedStop for every stop it lags by.
// Being on time or ahead contributes nothing.
func gpsCandidate(input FusionInput, config *Config) (DelayCandidate, bool) {
	if !input.EstimatedPosition.HasStop() || input.ExpectedPosition == nil {
		return DelayCandidate{}, false
	}

	stopGap := input.ExpectedPosition.StopSequence - input.EstimatedPosition.NearestStopSequence
	if stopGap <= 0 {
		return DelayCandidate{}, false
	}

	return DelayCandidate{
		Source: DelaySourceGPS,
		Value:  float64(stopGap) * config.MinutesPerMissedStop,
		Weight: config.GPSWeight,
	}, true
}

func communityCandidate(input FusionInput, config *Config) (DelayCandidate, bool) {
	if len(input.Reports) == 0 {
		return DelayCandidate{}, false
	}

	var weightedSum, totalWeight float64

	for _, report := range input.Reports {
		weight := ReportWeight(report, input.Now, config)

		weightedSum += report.DelayMinutes * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return DelayCandidate{}, false
	}

	return DelayCandidate{
		Source: DelaySourceCommunity,
		Value:  weightedSum / totalWeight,
		Weight: config.CommunityWeight,
	}, true
}

// ReportWeight is the recency factor times the verification factor of a single community report
func ReportWeight(report *ctdf.CommunityReport, now time.Time, config *Config) float64 {
	ageMinutes := math.Max(0, now.Sub(report.Timestamp).Minutes())

	recency := math.Max(config.ReportRecencyFloor, 1-ageMinutes/config.ReportRecencyWindow.Minutes())
	verification := math.Min(1, float64(report.VerificationCount)/config.VerificationSaturation)

	return recency * verification
}
