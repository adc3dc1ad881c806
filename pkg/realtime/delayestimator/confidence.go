package delayestimator

import (
	"math"
	"time"

	"github.com/travigo/delayengine/pkg/ctdf"
)

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceScore is a points rubric over signal volume and GPS recency, not a statistical interval
func ConfidenceScore(samples []*ctdf.LocationSample, reports []*ctdf.CommunityReport, now time.Time, config ConfidenceConfig) float64 {
	score := math.Min(config.MaxSamplePoints, float64(len(samples))*config.PointsPerSample)
	score += math.Min(config.MaxReportPoints, float64(len(reports))*config.PointsPerReport)

	if len(samples) > 0 {
		latest := samples[0].Timestamp
		for _, sample := range samples[1:] {
			if sample.Timestamp.After(latest) {
				latest = sample.Timestamp
			}
		}

		ageSeconds := math.Max(0, now.Sub(latest).Seconds())
		score += math.Max(0, config.MaxRecencyPoints-ageSeconds/config.RecencySecondsPerPoint)
	}

	return score
}

func ConfidenceForScore(score float64, config ConfidenceConfig) ConfidenceLevel {
	switch {
	case score >= config.HighThreshold:
		return ConfidenceHigh
	case score >= config.MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func Confidence(samples []*ctdf.LocationSample, reports []*ctdf.CommunityReport, now time.Time, config ConfidenceConfig) ConfidenceLevel {
	return ConfidenceForScore(ConfidenceScore(samples, reports, now, config), config)
}
