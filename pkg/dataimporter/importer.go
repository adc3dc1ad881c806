package dataimporter

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBatchSize = 500

// Importer upserts parsed records into MongoDB in batches
type Importer struct {
	Database  *mongo.Database
	BatchSize int
}

func NewImporter() *Importer {
	return &Importer{
		Database:  database.MongoGlobalInstance.Database,
		BatchSize: defaultBatchSize,
	}
}

func (i *Importer) ImportStations(ctx context.Context, stations []*ctdf.Station) (int, error) {
	var operations []mongo.WriteModel

	for _, station := range stations {
		replaceModel := mongo.NewReplaceOneModel()
		replaceModel.SetFilter(bson.M{"primaryidentifier": station.PrimaryIdentifier})
		replaceModel.SetReplacement(station)
		replaceModel.SetUpsert(true)

		operations = append(operations, replaceModel)
	}

	return i.bulkWrite(ctx, database.StationsCollection, operations)
}

// ImportJourneys upserts the journey schedules. The live fields (delay, status, current and next
// station) are only set when a journey is first inserted so a re-import never resets a running journey.
func (i *Importer) ImportJourneys(ctx context.Context, journeys []*ctdf.Journey) (int, error) {
	var operations []mongo.WriteModel

	for _, journey := range journeys {
		bsonRep, err := bson.Marshal(bson.M{
			"$set": bson.M{
				"primaryidentifier":    journey.PrimaryIdentifier,
				"modificationdatetime": journey.ModificationDateTime,
				"datasource":           journey.DataSource,
				"trainref":             journey.TrainRef,
				"rundate":              journey.RunDate,
				"departuretimezone":    journey.DepartureTimezone,
				"stops":                journey.Stops,
			},
			"$setOnInsert": bson.M{
				"creationdatetime":  journey.CreationDateTime,
				"delayminutes":      journey.DelayMinutes,
				"status":            journey.Status,
				"currentstationref": journey.CurrentStationRef,
				"nextstationref":    journey.NextStationRef,
			},
		})
		if err != nil {
			return 0, err
		}

		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"primaryidentifier": journey.PrimaryIdentifier})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		operations = append(operations, updateModel)
	}

	return i.bulkWrite(ctx, database.JourneysCollection, operations)
}

func (i *Importer) bulkWrite(ctx context.Context, collectionName string, operations []mongo.WriteModel) (int, error) {
	collection := i.Database.Collection(collectionName)
	startTime := time.Now()

	batchSize := i.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	written := 0
	for start := 0; start < len(operations); start += batchSize {
		end := min(start+batchSize, len(operations))

		if _, err := collection.BulkWrite(ctx, operations[start:end], &options.BulkWriteOptions{}); err != nil {
			return written, err
		}

		written += end - start
	}

	log.Info().
		Str("collection", collectionName).
		Int("records", written).
		Str("duration", time.Since(startTime).String()).
		Msg("Written to MongoDB")

	return written, nil
}
