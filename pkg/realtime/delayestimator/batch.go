package delayestimator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/delayengine/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// ErrLoadActiveJourneys marks a batch that could not start because the active journeys of the day
// could not be selected. No journey was estimated.
var ErrLoadActiveJourneys = errors.New("load active journeys")

// JourneyFilter is a compiled boolean expression over journeyFilterEnv deciding which journeys
// of a day are in progress
type JourneyFilter struct {
	expression string
	program    *vm.Program
}

type journeyFilterEnv struct {
	PrimaryIdentifier string
	TrainRef          string
	Status            string
	DelayMinutes      int
	StopCount         int
	RunDate           string
}

func NewJourneyFilter(expression string) (*JourneyFilter, error) {
	program, err := expr.Compile(expression, expr.Env(journeyFilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile journey filter %q: %w", expression, err)
	}

	return &JourneyFilter{expression: expression, program: program}, nil
}

func (f *JourneyFilter) Match(journey *ctdf.Journey) (bool, error) {
	output, err := expr.Run(f.program, journeyFilterEnv{
		PrimaryIdentifier: journey.PrimaryIdentifier,
		TrainRef:          journey.TrainRef,
		Status:            string(journey.Status),
		DelayMinutes:      journey.DelayMinutes,
		StopCount:         len(journey.Stops),
		RunDate:           journey.RunDate.Format(ctdf.JourneyRunDateFormat),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate journey filter %q: %w", f.expression, err)
	}

	return output.(bool), nil
}

// ActiveJourneys returns the journeys of date accepted by the configured active journey filter
func (e *Estimator) ActiveJourneys(ctx context.Context, date time.Time) ([]*ctdf.Journey, error) {
	filter, err := NewJourneyFilter(e.Config().ActiveJourneyFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadActiveJourneys, err)
	}

	journeys, err := e.Journeys.GetJourneysForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrLoadActiveJourneys, date.Format(ctdf.JourneyRunDateFormat), err)
	}

	var active []*ctdf.Journey
	for _, journey := range journeys {
		match, err := filter.Match(journey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadActiveJourneys, err)
		}

		if match {
			active = append(active, journey)
		}
	}

	return active, nil
}

// EstimateDelayForActiveJourneys runs an estimation for every active journey of date. Journeys are
// independent so they are estimated concurrently. A failing journey does not stop the others,
// the successful results are returned sorted by journey along with the joined errors. When the
// journeys cannot be selected at all the error wraps ErrLoadActiveJourneys and there are no results.
func (e *Estimator) EstimateDelayForActiveJourneys(ctx context.Context, date time.Time) ([]*EstimationResult, error) {
	journeys, err := e.ActiveJourneys(ctx, date)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("date", date.Format(ctdf.JourneyRunDateFormat)).
		Int("journeys", len(journeys)).
		Msg("Estimating delays for active journeys")

	p := pool.NewWithResults[*EstimationResult]().
		WithContext(ctx).
		WithMaxGoroutines(e.Config().BatchConcurrency)

	for _, journey := range journeys {
		p.Go(func(ctx context.Context) (*EstimationResult, error) {
			result, err := e.estimateJourney(ctx, journey)
			if err != nil {
				log.Error().Err(err).Str("journey", journey.PrimaryIdentifier).Msg("Failed to estimate journey delay")
				return nil, err
			}

			return result, nil
		})
	}

	results, err := p.Wait()

	slices.SortFunc(results, func(a, b *EstimationResult) int {
		return strings.Compare(a.JourneyRef, b.JourneyRef)
	})

	return results, err
}
