package delayestimator

import (
	"time"

	"github.com/travigo/delayengine/pkg/ctdf"
)

// ExpectedPosition is where the timetable says the journey should be
type ExpectedPosition struct {
	StationRef    string    `groups:"basic"`
	StopSequence  int       `groups:"basic"`
	ScheduledTime time.Time `groups:"basic"`
}

// ProjectExpectedPosition returns the first stop (in sequence order) whose scheduled time on the
// journey run date is at or after now. Once every stop is in the past the last stop is returned.
// A journey with no stops has no expected position.
func ProjectExpectedPosition(journey *ctdf.Journey, now time.Time) *ExpectedPosition {
	stops := journey.SortedStops()
	if len(stops) == 0 {
		return nil
	}

	for _, stop := range stops {
		scheduled := journey.ScheduledDateTime(stop)

		if !now.After(scheduled) {
			return newExpectedPosition(stop, scheduled)
		}
	}

	last := stops[len(stops)-1]

	return newExpectedPosition(last, journey.ScheduledDateTime(last))
}

func newExpectedPosition(stop *ctdf.JourneyStop, scheduled time.Time) *ExpectedPosition {
	return &ExpectedPosition{
		StationRef:    stop.StationRef,
		StopSequence:  stop.SequenceNumber,
		ScheduledTime: scheduled,
	}
}
