package delayestimator

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

const gtfsStartDateFormat = "20060102"

// BuildTripUpdatesFeed converts estimation results into a full GTFS-Realtime TripUpdates feed.
// Journeys are published as trips under their own identifier.
func BuildTripUpdatesFeed(results []*EstimationResult, now time.Time) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	for _, result := range results {
		delaySeconds := int32(result.EstimatedDelayMinutes * 60)

		tripUpdate := &gtfs.TripUpdate{
			Trip: &gtfs.TripDescriptor{
				TripId:    proto.String(result.JourneyRef),
				StartDate: proto.String(result.RunDate.Format(gtfsStartDateFormat)),
			},
			Delay:     proto.Int32(delaySeconds),
			Timestamp: proto.Uint64(uint64(result.EstimatedAt.Unix())),
		}

		if result.ExpectedPosition != nil {
			tripUpdate.StopTimeUpdate = []*gtfs.TripUpdate_StopTimeUpdate{
				{
					StopSequence: proto.Uint32(uint32(result.ExpectedPosition.StopSequence)),
					StopId:       proto.String(result.ExpectedPosition.StationRef),
					Departure: &gtfs.TripUpdate_StopTimeEvent{
						Delay: proto.Int32(delaySeconds),
					},
				},
			}
		}

		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:         proto.String(result.JourneyRef),
			TripUpdate: tripUpdate,
		})
	}

	return feed
}
