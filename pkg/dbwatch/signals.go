package dbwatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"github.com/travigo/delayengine/pkg/realtime/delayestimator"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMinInterval  = time.Minute
	defaultRestartDelay = 5 * time.Second
)

// SignalsWatch queues a delay estimate whenever a journey receives a new GPS position or delay
// report. Each journey is queued at most once per MinInterval.
type SignalsWatch struct {
	Database *mongo.Database
	Requests rmq.Queue

	MinInterval  time.Duration
	RestartDelay time.Duration
	Now          func() time.Time

	lastQueued      map[string]time.Time
	lastQueuedMutex sync.Mutex
}

type assignmentChange struct {
	OperationType string                   `bson:"operationType"`
	FullDocument  ctdf.PassengerAssignment `bson:"fullDocument"`
}

type messageChange struct {
	OperationType string                `bson:"operationType"`
	FullDocument  ctdf.CommunityMessage `bson:"fullDocument"`
}

func NewSignalsWatch(requests rmq.Queue) *SignalsWatch {
	return &SignalsWatch{
		Database:    database.MongoGlobalInstance.Database,
		Requests:    requests,
		MinInterval:  defaultMinInterval,
		RestartDelay: defaultRestartDelay,
		Now:          time.Now,
	}
}

// QueueEstimate publishes an estimate request for the journey unless one was queued within MinInterval
func (w *SignalsWatch) QueueEstimate(journeyRef string) (bool, error) {
	if journeyRef == "" {
		return false, nil
	}

	now := w.Now()

	w.lastQueuedMutex.Lock()
	if w.lastQueued == nil {
		w.lastQueued = map[string]time.Time{}
	}
	if last, exists := w.lastQueued[journeyRef]; exists && now.Sub(last) < w.MinInterval {
		w.lastQueuedMutex.Unlock()
		return false, nil
	}
	w.lastQueued[journeyRef] = now

	// Forget journeys that have gone quiet so the map does not grow forever
	for ref, last := range w.lastQueued {
		if now.Sub(last) >= w.MinInterval {
			delete(w.lastQueued, ref)
		}
	}
	w.lastQueuedMutex.Unlock()

	request, _ := delayestimator.EstimateRequest{JourneyRef: journeyRef, Requested: now}.MarshalBinary()
	if err := w.Requests.PublishBytes(request); err != nil {
		return false, err
	}

	log.Debug().Str("journey", journeyRef).Msg("Queued delay estimate from new signal")

	return true, nil
}

// JourneyRefForMessage resolves the journey a community message was posted against
func (w *SignalsWatch) JourneyRefForMessage(ctx context.Context, message *ctdf.CommunityMessage) (string, error) {
	var community ctdf.Community
	err := w.Database.Collection(database.CommunitiesCollection).
		FindOne(ctx, bson.M{"primaryidentifier": message.CommunityRef}).
		Decode(&community)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return community.JourneyRef, nil
}

func changeStreamPipeline(match bson.D) mongo.Pipeline {
	return mongo.Pipeline{
		{
			{
				Key: "$match", Value: bson.D{
					{
						Key: "$and", Value: bson.A{
							bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}}},
							match,
						},
					},
				},
			},
		},
	}
}

func (w *SignalsWatch) WatchPassengerAssignments(ctx context.Context) error {
	log.Info().Msg("Starting dbwatch on collection passenger_assignments")

	collection := w.Database.Collection(database.PassengerAssignmentsCollection)
	pipeline := changeStreamPipeline(bson.D{
		{Key: "fullDocument.status", Value: ctdf.PassengerAssignmentStatusActive},
		{Key: "fullDocument.locationsharingenabled", Value: true},
	})

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change assignmentChange
		if err := stream.Decode(&change); err != nil {
			log.Error().Err(err).Msg("Failed to decode passenger assignment change")
			continue
		}

		if _, err := w.QueueEstimate(change.FullDocument.JourneyRef); err != nil {
			log.Error().Err(err).Str("journey", change.FullDocument.JourneyRef).Msg("Failed to queue delay estimate")
		}
	}

	return stream.Err()
}

func (w *SignalsWatch) WatchCommunityMessages(ctx context.Context) error {
	log.Info().Msg("Starting dbwatch on collection community_messages")

	collection := w.Database.Collection(database.CommunityMessagesCollection)
	pipeline := changeStreamPipeline(bson.D{
		{Key: "fullDocument.messagetype", Value: ctdf.CommunityMessageTypeDelayReport},
		{Key: "fullDocument.isverified", Value: true},
	})

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change messageChange
		if err := stream.Decode(&change); err != nil {
			log.Error().Err(err).Msg("Failed to decode community message change")
			continue
		}

		journeyRef, err := w.JourneyRefForMessage(ctx, &change.FullDocument)
		if err != nil {
			log.Error().Err(err).Str("community", change.FullDocument.CommunityRef).Msg("Failed to resolve community journey")
			continue
		}

		if _, err := w.QueueEstimate(journeyRef); err != nil {
			log.Error().Err(err).Str("journey", journeyRef).Msg("Failed to queue delay estimate")
		}
	}

	return stream.Err()
}

// Run watches both signal collections, restarting a watch that falls over until ctx is cancelled
func (w *SignalsWatch) Run(ctx context.Context) {
	restartDelay := w.RestartDelay
	if restartDelay <= 0 {
		restartDelay = defaultRestartDelay
	}

	var wg sync.WaitGroup

	for _, watch := range []func(context.Context) error{w.WatchPassengerAssignments, w.WatchCommunityMessages} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keepWatching(ctx, watch, restartDelay)
		}()
	}

	wg.Wait()
}

// keepWatching reruns watch until ctx is cancelled, waiting restartDelay between runs whether the
// watch failed or its stream simply ended.
func keepWatching(ctx context.Context, watch func(context.Context) error, restartDelay time.Duration) {
	for ctx.Err() == nil {
		err := watch(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.Error().Err(err).Msg("Signal watch fell over, restarting")
		} else {
			log.Warn().Msg("Signal watch stream ended, restarting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}
