package ctdf

import "time"

// Community is the passenger discussion group attached to a single journey
type Community struct {
	PrimaryIdentifier string `groups:"basic"`
	JourneyRef        string `groups:"basic"`

	CreationDateTime time.Time `groups:"detailed"`
}

type CommunityMessage struct {
	PrimaryIdentifier string `groups:"basic"`

	CommunityRef string `groups:"internal"`
	UserRef      string `groups:"internal" bson:",omitempty"`
	StationRef   string `groups:"basic"`

	TimePassedMinutes int                  `groups:"basic"`
	MessageType       CommunityMessageType `groups:"basic"`
	AdditionalData    CommunityMessageData `groups:"basic"`

	// IsVerified and VerificationCount are maintained by the passenger verification flow
	IsVerified        bool `groups:"basic"`
	VerificationCount int  `groups:"basic"`

	CreationDateTime time.Time `groups:"basic"`
}

type CommunityMessageType string

const (
	CommunityMessageTypeStatusUpdate   CommunityMessageType = "status_update"
	CommunityMessageTypeDelayReport    CommunityMessageType = "delay_report"
	CommunityMessageTypeFacilityReport CommunityMessageType = "facility_report"
	CommunityMessageTypeGeneral        CommunityMessageType = "general"
)

type CommunityMessageData struct {
	DelayMinutes float64 `groups:"basic" bson:",omitempty"`
	Reason       string  `groups:"basic" bson:",omitempty"`
}

// CommunityReport is a verified delay report as consumed by the estimator
type CommunityReport struct {
	StationRef        string    `groups:"basic"`
	DelayMinutes      float64   `groups:"basic"`
	VerificationCount int       `groups:"basic"`
	TimePassedMinutes int       `groups:"basic"`
	Timestamp         time.Time `groups:"basic"`
}

// IsEligibleReport reports whether the message is a verified delay report younger than maxAge at now
func (m *CommunityMessage) IsEligibleReport(now time.Time, maxAge time.Duration) bool {
	if m.MessageType != CommunityMessageTypeDelayReport || !m.IsVerified {
		return false
	}

	return m.CreationDateTime.After(now.Add(-maxAge))
}

func (m *CommunityMessage) CommunityReport() *CommunityReport {
	return &CommunityReport{
		StationRef:        m.StationRef,
		DelayMinutes:      m.AdditionalData.DelayMinutes,
		VerificationCount: m.VerificationCount,
		TimePassedMinutes: m.TimePassedMinutes,
		Timestamp:         m.CreationDateTime,
	}
}
