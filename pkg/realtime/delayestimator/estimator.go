package delayestimator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/delayengine/pkg/ctdf"
)

var ErrJourneyNotFound = errors.New("journey not found")

// JourneyStore loads journeys with their stops and stop stations resolved.
// GetJourney returns ErrJourneyNotFound for an unknown identifier.
type JourneyStore interface {
	GetJourney(ctx context.Context, journeyID string) (*ctdf.Journey, error)
	GetJourneysForDate(ctx context.Context, date time.Time) ([]*ctdf.Journey, error)
}

// DelayUpdater persists an accepted delay estimate and announces the change
type DelayUpdater interface {
	UpdateJourneyDelay(ctx context.Context, journeyID string, delayMinutes int) (*ctdf.Journey, error)
}

// EstimationObserver is told about every completed estimation. Observers must not block for long
// and cannot fail the estimation.
type EstimationObserver interface {
	ObserveEstimation(ctx context.Context, result *EstimationResult)
}

type EstimationResult struct {
	JourneyRef string    `groups:"basic"`
	RunDate    time.Time `groups:"basic"`

	CurrentDelayMinutes   int `groups:"basic"`
	EstimatedDelayMinutes int `groups:"basic"`

	Confidence      ConfidenceLevel `groups:"basic"`
	ConfidenceScore float64         `groups:"detailed"`

	SampleCount int `groups:"basic"`
	ReportCount int `groups:"basic"`

	EstimatedPosition *EstimatedPosition `groups:"basic"`
	ExpectedPosition  *ExpectedPosition  `groups:"basic"`

	Evidence []DelayCandidate `groups:"detailed"`

	DelayUpdated bool      `groups:"basic"`
	EstimatedAt  time.Time `groups:"basic"`
}

func (r *EstimationResult) DelayChangeMinutes() int {
	return r.EstimatedDelayMinutes - r.CurrentDelayMinutes
}

type Estimator struct {
	Journeys  JourneyStore
	Collector *Collector
	Updater   DelayUpdater

	Observers []EstimationObserver

	// Now is the clock used for every time comparison in an estimation
	Now func() time.Time

	config atomic.Pointer[Config]
}

func NewEstimator(journeys JourneyStore, signals SignalStore, updater DelayUpdater, config *Config) *Estimator {
	estimator := &Estimator{
		Journeys:  journeys,
		Collector: &Collector{Store: signals},
		Updater:   updater,
		Now:       time.Now,
	}

	if config == nil {
		defaultConfig := DefaultConfig()
		config = &defaultConfig
	}
	estimator.config.Store(config)

	return estimator
}

func (e *Estimator) Config() *Config {
	return e.config.Load()
}

// SetConfig swaps the tuning constants used by estimations started after the call
func (e *Estimator) SetConfig(config *Config) {
	e.config.Store(config)
}

func (e *Estimator) AddObserver(observer EstimationObserver) {
	e.Observers = append(e.Observers, observer)
}

// EstimateDelay fuses the live signals of a journey into a delay estimate and writes it back to
// the journey when it moved by at least the hysteresis threshold
func (e *Estimator) EstimateDelay(ctx context.Context, journeyID string) (*EstimationResult, error) {
	journey, err := e.Journeys.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	return e.estimateJourney(ctx, journey)
}

func (e *Estimator) estimateJourney(ctx context.Context, journey *ctdf.Journey) (*EstimationResult, error) {
	config := e.Config()
	now := e.Now()

	if err := journey.Validate(); err != nil {
		return nil, err
	}

	signals, err := e.Collector.Collect(ctx, journey.PrimaryIdentifier, now, config)
	if err != nil {
		return nil, err
	}

	var estimatedPosition *EstimatedPosition
	var expectedPosition *ExpectedPosition

	var wg conc.WaitGroup
	wg.Go(func() {
		estimatedPosition = EstimatePosition(journey, signals.Samples)
	})
	wg.Go(func() {
		expectedPosition = ProjectExpectedPosition(journey, now)
	})
	wg.Wait()

	candidates := DelayCandidates(FusionInput{
		Journey:           journey,
		EstimatedPosition: estimatedPosition,
		ExpectedPosition:  expectedPosition,
		Reports:           signals.Reports,
		Now:               now,
	}, config)

	score := ConfidenceScore(signals.Samples, signals.Reports, now, config.Confidence)

	result := &EstimationResult{
		JourneyRef: journey.PrimaryIdentifier,
		RunDate:    journey.RunDate,

		CurrentDelayMinutes:   journey.DelayMinutes,
		EstimatedDelayMinutes: FuseDelay(candidates),

		Confidence:      ConfidenceForScore(score, config.Confidence),
		ConfidenceScore: score,

		SampleCount: len(signals.Samples),
		ReportCount: len(signals.Reports),

		EstimatedPosition: estimatedPosition,
		ExpectedPosition:  expectedPosition,

		Evidence: candidates,

		EstimatedAt: now,
	}

	switch {
	case !ShouldWriteBack(result.CurrentDelayMinutes, result.EstimatedDelayMinutes, config.HysteresisMinutes):
		log.Debug().
			Str("journey", journey.PrimaryIdentifier).
			Int("current", result.CurrentDelayMinutes).
			Int("estimated", result.EstimatedDelayMinutes).
			Msg("Delay change below threshold, not updating journey")
	case e.Updater == nil:
		log.Debug().
			Str("journey", journey.PrimaryIdentifier).
			Int("current", result.CurrentDelayMinutes).
			Int("estimated", result.EstimatedDelayMinutes).
			Msg("Delay write-back disabled, not updating journey")
	default:
		if _, err := e.Updater.UpdateJourneyDelay(ctx, journey.PrimaryIdentifier, result.EstimatedDelayMinutes); err != nil {
			return nil, fmt.Errorf("update delay of %s: %w", journey.PrimaryIdentifier, err)
		}

		result.DelayUpdated = true
	}

	log.Info().
		Str("journey", journey.PrimaryIdentifier).
		Int("samples", result.SampleCount).
		Int("reports", result.ReportCount).
		Int("delay", result.EstimatedDelayMinutes).
		Str("confidence", string(result.Confidence)).
		Bool("updated", result.DelayUpdated).
		Msg("Estimated journey delay")

	for _, observer := range e.Observers {
		observer.ObserveEstimation(ctx, result)
	}

	return result, nil
}

// ShouldWriteBack applies the hysteresis rule between the recorded and the newly estimated delay
func ShouldWriteBack(current int, estimated int, thresholdMinutes int) bool {
	change := estimated - current
	if change < 0 {
		change = -change
	}

	return change >= thresholdMinutes
}
