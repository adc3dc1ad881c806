package delayestimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/elastic_client"
)

type DelayEstimationElasticEvent struct {
	Timestamp time.Time

	Journey string
	RunDate string

	CurrentDelayMinutes   int
	EstimatedDelayMinutes int
	DelayUpdated          bool

	Confidence      string
	ConfidenceScore float64

	SampleCount int
	ReportCount int

	ExpectedStationRef  string
	EstimatedStationRef string

	Sources []string
}

func NewDelayEstimationElasticEvent(result *EstimationResult) *DelayEstimationElasticEvent {
	event := &DelayEstimationElasticEvent{
		Timestamp: result.EstimatedAt,

		Journey: result.JourneyRef,
		RunDate: result.RunDate.Format(ctdf.JourneyRunDateFormat),

		CurrentDelayMinutes:   result.CurrentDelayMinutes,
		EstimatedDelayMinutes: result.EstimatedDelayMinutes,
		DelayUpdated:          result.DelayUpdated,

		Confidence:      string(result.Confidence),
		ConfidenceScore: result.ConfidenceScore,

		SampleCount: result.SampleCount,
		ReportCount: result.ReportCount,

		Sources: []string{},
	}

	if result.ExpectedPosition != nil {
		event.ExpectedStationRef = result.ExpectedPosition.StationRef
	}
	if result.EstimatedPosition != nil {
		event.EstimatedStationRef = result.EstimatedPosition.NearestStationRef
	}

	for _, candidate := range result.Evidence {
		event.Sources = append(event.Sources, string(candidate.Source))
	}

	return event
}

func DelayEstimationEventsIndexName(timestamp time.Time) string {
	yearNumber, weekNumber := timestamp.ISOWeek()

	return fmt.Sprintf("delay-estimation-events-%d-%d", yearNumber, weekNumber)
}

// ElasticEventRecorder keeps an audit trail of every estimation in Elasticsearch
type ElasticEventRecorder struct{}

func (r *ElasticEventRecorder) ObserveEstimation(_ context.Context, result *EstimationResult) {
	if !elastic_client.IsConnected() {
		return
	}

	elasticEvent, err := json.Marshal(NewDelayEstimationElasticEvent(result))
	if err != nil {
		log.Error().Err(err).Str("journey", result.JourneyRef).Msg("Failed to encode estimation event")
		return
	}

	elastic_client.IndexRequest(DelayEstimationEventsIndexName(result.EstimatedAt), bytes.NewReader(elasticEvent))
}
