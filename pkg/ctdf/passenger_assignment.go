package ctdf

import "time"

// PassengerAssignment links a passenger to the journey they are travelling on, along with the
// most recent position they chose to share
type PassengerAssignment struct {
	PrimaryIdentifier string `groups:"internal"`

	JourneyRef string `groups:"internal"`
	UserRef    string `groups:"internal" bson:",omitempty"`

	BoardingStationRef    string `groups:"basic"`
	DestinationStationRef string `groups:"basic" bson:",omitempty"`

	Status PassengerAssignmentStatus `groups:"basic"`

	LocationSharingEnabled bool      `groups:"basic"`
	CurrentLocation        *Location `groups:"basic" bson:",omitempty"`
	LocationAccuracy       float64   `groups:"basic" bson:",omitempty"`
	SpeedKmh               *float64  `groups:"basic" bson:",omitempty"`
	LastLocationUpdate     time.Time `groups:"basic"`
}

type PassengerAssignmentStatus string

const (
	PassengerAssignmentStatusActive    PassengerAssignmentStatus = "active"
	PassengerAssignmentStatusCompleted PassengerAssignmentStatus = "completed"
	PassengerAssignmentStatusCancelled PassengerAssignmentStatus = "cancelled"
)

// LocationSample is a passenger's latest shared position for a journey
type LocationSample struct {
	Location           Location  `groups:"basic"`
	SpeedKmh           *float64  `groups:"basic"`
	Timestamp          time.Time `groups:"basic"`
	BoardingStationRef string    `groups:"basic"`
}

// IsEligibleSample reports whether the assignment can contribute a location sample at now
func (p *PassengerAssignment) IsEligibleSample(now time.Time, freshness time.Duration) bool {
	if p.Status != PassengerAssignmentStatusActive || !p.LocationSharingEnabled {
		return false
	}

	if !p.CurrentLocation.IsPoint() {
		return false
	}

	return p.LastLocationUpdate.After(now.Add(-freshness))
}

func (p *PassengerAssignment) LocationSample() *LocationSample {
	return &LocationSample{
		Location:           *p.CurrentLocation,
		SpeedKmh:           p.SpeedKmh,
		Timestamp:          p.LastLocationUpdate,
		BoardingStationRef: p.BoardingStationRef,
	}
}
