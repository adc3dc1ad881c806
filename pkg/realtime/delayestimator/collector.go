package delayestimator

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/util"
)

// SignalStore reads the raw passenger signals for a journey. Implementations may pre-filter on
// since but the Collector applies every eligibility rule itself.
type SignalStore interface {
	GetPassengerAssignments(ctx context.Context, journeyID string, since time.Time) ([]*ctdf.PassengerAssignment, error)
	GetCommunityMessages(ctx context.Context, journeyID string, since time.Time) ([]*ctdf.CommunityMessage, error)
}

type Collector struct {
	Store SignalStore
}

// Signals is everything the collector gathered for a single estimation
type Signals struct {
	Samples []*ctdf.LocationSample
	Reports []*ctdf.CommunityReport
}

// CollectLocationSamples returns the latest position of every active passenger sharing their location
// whose update is younger than freshness at now
func (c *Collector) CollectLocationSamples(ctx context.Context, journeyID string, now time.Time, freshness time.Duration) ([]*ctdf.LocationSample, error) {
	assignments, err := c.Store.GetPassengerAssignments(ctx, journeyID, now.Add(-freshness))
	if err != nil {
		return nil, fmt.Errorf("collect location samples for %s: %w", journeyID, err)
	}

	util.InPlaceFilter(&assignments, func(assignment *ctdf.PassengerAssignment) bool {
		return assignment != nil && assignment.IsEligibleSample(now, freshness)
	})

	samples := make([]*ctdf.LocationSample, 0, len(assignments))
	for _, assignment := range assignments {
		samples = append(samples, assignment.LocationSample())
	}

	return samples, nil
}

// CollectCommunityReports returns the verified delay reports of the journey community younger than maxAge at now
func (c *Collector) CollectCommunityReports(ctx context.Context, journeyID string, now time.Time, maxAge time.Duration) ([]*ctdf.CommunityReport, error) {
	messages, err := c.Store.GetCommunityMessages(ctx, journeyID, now.Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("collect community reports for %s: %w", journeyID, err)
	}

	util.InPlaceFilter(&messages, func(message *ctdf.CommunityMessage) bool {
		return message != nil && message.IsEligibleReport(now, maxAge)
	})

	reports := make([]*ctdf.CommunityReport, 0, len(messages))
	for _, message := range messages {
		reports = append(reports, message.CommunityReport())
	}

	return reports, nil
}

// Collect runs both reads concurrently. The first failure cancels the other read and is returned.
func (c *Collector) Collect(ctx context.Context, journeyID string, now time.Time, config *Config) (*Signals, error) {
	signals := &Signals{}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(ctx context.Context) error {
		samples, err := c.CollectLocationSamples(ctx, journeyID, now, config.SampleFreshness)
		signals.Samples = samples
		return err
	})
	p.Go(func(ctx context.Context) error {
		reports, err := c.CollectCommunityReports(ctx, journeyID, now, config.ReportMaxAge)
		signals.Reports = reports
		return err
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return signals, nil
}
