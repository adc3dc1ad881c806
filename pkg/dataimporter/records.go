package dataimporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/travigo/delayengine/pkg/ctdf"
)

// StationRecord is one row of a stations CSV file
type StationRecord struct {
	ID        string  `csv:"station_id"`
	Name      string  `csv:"station_name"`
	Latitude  float64 `csv:"station_lat"`
	Longitude float64 `csv:"station_lon"`
}

// JourneyStopRecord is one row of a journey stops CSV file. Rows of the same journey share the
// journey columns and are grouped on journey_id.
type JourneyStopRecord struct {
	JourneyID string `csv:"journey_id"`
	TrainRef  string `csv:"train_ref"`
	RunDate   string `csv:"run_date"`
	Timezone  string `csv:"timezone"`
	Status    string `csv:"status"`

	StationID     string `csv:"station_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Platform      string `csv:"platform"`
}

func unmarshalCSV(reader io.Reader, destination interface{}) error {
	// Allow us to ignore those naughty records that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		return r
	})

	return gocsv.Unmarshal(reader, destination)
}

func ParseStations(reader io.Reader, datasource *ctdf.DataSource) ([]*ctdf.Station, error) {
	var records []*StationRecord
	if err := unmarshalCSV(reader, &records); err != nil {
		return nil, err
	}

	now := time.Now()

	var stations []*ctdf.Station
	for _, record := range records {
		if record.ID == "" {
			return nil, fmt.Errorf("station %q has no identifier", record.Name)
		}

		location := ctdf.NewPointLocation(record.Latitude, record.Longitude)

		stations = append(stations, &ctdf.Station{
			PrimaryIdentifier:    record.ID,
			CreationDateTime:     now,
			ModificationDateTime: now,
			DataSource:           datasource,
			Location:             &location,
		})
	}

	return stations, nil
}

// ParseJourneys groups journey stop rows into journeys, keeping the order journeys first appear in
func ParseJourneys(reader io.Reader, datasource *ctdf.DataSource) ([]*ctdf.Journey, error) {
	var records []*JourneyStopRecord
	if err := unmarshalCSV(reader, &records); err != nil {
		return nil, err
	}

	now := time.Now()

	journeys := map[string]*ctdf.Journey{}
	var journeyOrder []string

	for _, record := range records {
		journey, exists := journeys[record.JourneyID]
		if !exists {
			runDate, err := time.Parse(ctdf.JourneyRunDateFormat, record.RunDate)
			if err != nil {
				return nil, fmt.Errorf("journey %s has an invalid run date: %w", record.JourneyID, err)
			}

			status := ctdf.JourneyStatus(strings.ToLower(record.Status))
			if status == "" {
				status = ctdf.JourneyStatusScheduled
			}

			journey = &ctdf.Journey{
				PrimaryIdentifier:    record.JourneyID,
				CreationDateTime:     now,
				ModificationDateTime: now,
				DataSource:           datasource,
				TrainRef:             record.TrainRef,
				RunDate:              runDate,
				DepartureTimezone:    record.Timezone,
				Status:               status,
			}

			journeys[record.JourneyID] = journey
			journeyOrder = append(journeyOrder, record.JourneyID)
		}

		arrival, err := parseTimeOfDay(record.ArrivalTime)
		if err != nil {
			return nil, fmt.Errorf("journey %s stop %d: %w", record.JourneyID, record.StopSequence, err)
		}
		departure, err := parseTimeOfDay(record.DepartureTime)
		if err != nil {
			return nil, fmt.Errorf("journey %s stop %d: %w", record.JourneyID, record.StopSequence, err)
		}

		journey.Stops = append(journey.Stops, &ctdf.JourneyStop{
			StationRef:     record.StationID,
			SequenceNumber: record.StopSequence,
			ArrivalTime:    arrival,
			DepartureTime:  departure,
			Platform:       record.Platform,
		})
	}

	var parsed []*ctdf.Journey
	for _, journeyID := range journeyOrder {
		journey := journeys[journeyID]
		if err := journey.Validate(); err != nil {
			return nil, err
		}

		parsed = append(parsed, journey)
	}

	return parsed, nil
}

// parseTimeOfDay reads HH:MM or HH:MM:SS. An empty value is the zero time (no arrival/departure).
func parseTimeOfDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time of day %q", value)
}
