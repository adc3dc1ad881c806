package delayestimator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

const ConfigPathEnvironmentVariable = "DELAY_ESTIMATOR_CONFIG"

const DefaultActiveJourneyFilter = `Status in ["active", "departed", "in_transit", "delayed"]`

// Config holds every tuning constant of the estimator. The defaults are heuristics with no
// derivation beyond the passenger app they came from, change them only with domain data.
type Config struct {
	// How old a passenger location may be before it is ignored
	SampleFreshness time.Duration `validate:"gt=0"`
	// How old a community delay report may be before it is ignored
	ReportMaxAge time.Duration `validate:"gt=0"`

	MinutesPerMissedStop float64 `validate:"gt=0"`

	GPSWeight        float64 `validate:"gte=0"`
	CommunityWeight  float64 `validate:"gte=0"`
	HistoricalWeight float64 `validate:"gte=0"`

	// Per report weight is max(floor, 1 - age/window) * min(1, verifications/saturation)
	ReportRecencyFloor     float64       `validate:"gte=0,lte=1"`
	ReportRecencyWindow    time.Duration `validate:"gt=0"`
	VerificationSaturation float64       `validate:"gt=0"`

	// Minimum change in minutes before a new estimate is written back to the journey
	HysteresisMinutes int `validate:"gte=0"`

	Confidence ConfidenceConfig

	ActiveJourneyFilter string `validate:"required"`
	BatchConcurrency    int    `validate:"gt=0"`
}

type ConfidenceConfig struct {
	PointsPerSample float64 `validate:"gte=0"`
	MaxSamplePoints float64 `validate:"gte=0"`

	PointsPerReport float64 `validate:"gte=0"`
	MaxReportPoints float64 `validate:"gte=0"`

	MaxRecencyPoints       float64 `validate:"gte=0"`
	RecencySecondsPerPoint float64 `validate:"gt=0"`

	HighThreshold   float64 `validate:"gt=0"`
	MediumThreshold float64 `validate:"gt=0,ltefield=HighThreshold"`
}

func DefaultConfig() Config {
	return Config{
		SampleFreshness: 5 * time.Minute,
		ReportMaxAge:    2 * time.Hour,

		MinutesPerMissedStop: 4,

		GPSWeight:        2.0,
		CommunityWeight:  1.5,
		HistoricalWeight: 0.5,

		ReportRecencyFloor:     0.1,
		ReportRecencyWindow:    2 * time.Hour,
		VerificationSaturation: 5,

		HysteresisMinutes: 2,

		Confidence: ConfidenceConfig{
			PointsPerSample:        10,
			MaxSamplePoints:        50,
			PointsPerReport:        6,
			MaxReportPoints:        30,
			MaxRecencyPoints:       20,
			RecencySecondsPerPoint: 15,
			HighThreshold:          70,
			MediumThreshold:        40,
		},

		ActiveJourneyFilter: DefaultActiveJourneyFilter,
		BatchConcurrency:    20,
	}
}

type fileConfig struct {
	SampleFreshness     string `yaml:"sample_freshness"`
	ReportMaxAge        string `yaml:"report_max_age"`
	ReportRecencyWindow string `yaml:"report_recency_window"`

	MinutesPerMissedStop *float64 `yaml:"minutes_per_missed_stop"`

	Weights struct {
		GPS        *float64 `yaml:"gps"`
		Community  *float64 `yaml:"community"`
		Historical *float64 `yaml:"historical"`
	} `yaml:"weights"`

	ReportRecencyFloor     *float64 `yaml:"report_recency_floor"`
	VerificationSaturation *float64 `yaml:"verification_saturation"`
	HysteresisMinutes      *int     `yaml:"hysteresis_minutes"`

	Confidence struct {
		PointsPerSample        *float64 `yaml:"points_per_sample"`
		MaxSamplePoints        *float64 `yaml:"max_sample_points"`
		PointsPerReport        *float64 `yaml:"points_per_report"`
		MaxReportPoints        *float64 `yaml:"max_report_points"`
		MaxRecencyPoints       *float64 `yaml:"max_recency_points"`
		RecencySecondsPerPoint *float64 `yaml:"recency_seconds_per_point"`
		HighThreshold          *float64 `yaml:"high_threshold"`
		MediumThreshold        *float64 `yaml:"medium_threshold"`
	} `yaml:"confidence"`

	ActiveJourneyFilter string `yaml:"active_journey_filter"`
	BatchConcurrency    *int   `yaml:"batch_concurrency"`
}

// GetConfig loads the config file named by DELAY_ESTIMATOR_CONFIG, if any, on top of the defaults
func GetConfig() (*Config, error) {
	return LoadConfig(os.Getenv(ConfigPathEnvironmentVariable))
}

// LoadConfig builds a config from the defaults, the optional YAML file at path and then DELAY_* environment overrides
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := applyYAML(&config, data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvironment(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid delay estimator config: %w", err)
	}

	return nil
}

func applyYAML(config *Config, data []byte) error {
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	windows := []struct {
		value  string
		target *time.Duration
	}{
		{file.SampleFreshness, &config.SampleFreshness},
		{file.ReportMaxAge, &config.ReportMaxAge},
		{file.ReportRecencyWindow, &config.ReportRecencyWindow},
	}
	for _, window := range windows {
		if window.value == "" {
			continue
		}

		parsed, err := ParseWindow(window.value)
		if err != nil {
			return err
		}
		*window.target = parsed
	}

	setFloat(&config.MinutesPerMissedStop, file.MinutesPerMissedStop)
	setFloat(&config.GPSWeight, file.Weights.GPS)
	setFloat(&config.CommunityWeight, file.Weights.Community)
	setFloat(&config.HistoricalWeight, file.Weights.Historical)
	setFloat(&config.ReportRecencyFloor, file.ReportRecencyFloor)
	setFloat(&config.VerificationSaturation, file.VerificationSaturation)

	setFloat(&config.Confidence.PointsPerSample, file.Confidence.PointsPerSample)
	setFloat(&config.Confidence.MaxSamplePoints, file.Confidence.MaxSamplePoints)
	setFloat(&config.Confidence.PointsPerReport, file.Confidence.PointsPerReport)
	setFloat(&config.Confidence.MaxReportPoints, file.Confidence.MaxReportPoints)
	setFloat(&config.Confidence.MaxRecencyPoints, file.Confidence.MaxRecencyPoints)
	setFloat(&config.Confidence.RecencySecondsPerPoint, file.Confidence.RecencySecondsPerPoint)
	setFloat(&config.Confidence.HighThreshold, file.Confidence.HighThreshold)
	setFloat(&config.Confidence.MediumThreshold, file.Confidence.MediumThreshold)

	if file.HysteresisMinutes != nil {
		config.HysteresisMinutes = *file.HysteresisMinutes
	}
	if file.BatchConcurrency != nil {
		config.BatchConcurrency = *file.BatchConcurrency
	}
	if file.ActiveJourneyFilter != "" {
		config.ActiveJourneyFilter = file.ActiveJourneyFilter
	}

	return nil
}

func setFloat(target *float64, value *float64) {
	if value != nil {
		*target = *value
	}
}

func applyEnvironment(config *Config) error {
	windows := map[string]*time.Duration{
		"DELAY_SAMPLE_FRESHNESS":      &config.SampleFreshness,
		"DELAY_REPORT_MAX_AGE":        &config.ReportMaxAge,
		"DELAY_REPORT_RECENCY_WINDOW": &config.ReportRecencyWindow,
	}
	for name, target := range windows {
		if val := os.Getenv(name); val != "" {
			parsed, err := ParseWindow(val)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*target = parsed
		}
	}

	floats := map[string]*float64{
		"DELAY_MINUTES_PER_MISSED_STOP": &config.MinutesPerMissedStop,
		"DELAY_GPS_WEIGHT":              &config.GPSWeight,
		"DELAY_COMMUNITY_WEIGHT":        &config.CommunityWeight,
		"DELAY_HISTORICAL_WEIGHT":       &config.HistoricalWeight,
	}
	for name, target := range floats {
		if val := os.Getenv(name); val != "" {
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*target = parsed
		}
	}

	if val := os.Getenv("DELAY_HYSTERESIS_MINUTES"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("DELAY_HYSTERESIS_MINUTES: %w", err)
		}
		config.HysteresisMinutes = parsed
	}

	if val := os.Getenv("DELAY_BATCH_CONCURRENCY"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("DELAY_BATCH_CONCURRENCY: %w", err)
		}
		config.BatchConcurrency = parsed
	}

	if val := os.Getenv("DELAY_ACTIVE_JOURNEY_FILTER"); val != "" {
		config.ActiveJourneyFilter = val
	}

	return nil
}

// ParseWindow accepts an ISO-8601 duration (PT5M) or a Go duration string (5m)
func ParseWindow(value string) (time.Duration, error) {
	if !strings.HasPrefix(strings.ToUpper(value), "P") {
		return time.ParseDuration(value)
	}

	duration, err := iso8601.ParseISO8601(strings.ToUpper(value))
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", value, err)
	}

	reference := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	return duration.Shift(reference).Sub(reference), nil
}
