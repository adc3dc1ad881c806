package delayestimator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()

	assert.NoError(t, config.Validate())
	assert.Equal(t, 5*time.Minute, config.SampleFreshness)
	assert.Equal(t, 2*time.Hour, config.ReportMaxAge)
	assert.Equal(t, 4.0, config.MinutesPerMissedStop)
	assert.Equal(t, 2, config.HysteresisMinutes)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), *config)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sample_freshness: PT3M
report_max_age: 90m
minutes_per_missed_stop: 5
weights:
  gps: 3
hysteresis_minutes: 4
confidence:
  high_threshold: 80
active_journey_filter: Status == "delayed"
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, config.SampleFreshness)
	assert.Equal(t, 90*time.Minute, config.ReportMaxAge)
	assert.Equal(t, 5.0, config.MinutesPerMissedStop)
	assert.Equal(t, 3.0, config.GPSWeight)
	assert.Equal(t, 1.5, config.CommunityWeight, "unset values keep their default")
	assert.Equal(t, 4, config.HysteresisMinutes)
	assert.Equal(t, 80.0, config.Confidence.HighThreshold)
	assert.Equal(t, 40.0, config.Confidence.MediumThreshold)
	assert.Equal(t, `Status == "delayed"`, config.ActiveJourneyFilter)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("DELAY_GPS_WEIGHT", "2.5")
	t.Setenv("DELAY_HYSTERESIS_MINUTES", "3")
	t.Setenv("DELAY_SAMPLE_FRESHNESS", "PT10M")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 2.5, config.GPSWeight)
	assert.Equal(t, 3, config.HysteresisMinutes)
	assert.Equal(t, 10*time.Minute, config.SampleFreshness)

	t.Setenv("DELAY_HYSTERESIS_MINUTES", "soon")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence:\n  medium_threshold: 90\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err, "medium threshold above high threshold")

	require.NoError(t, os.WriteFile(path, []byte("report_recency_floor: 2\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"PT5M", 5 * time.Minute},
		{"PT2H", 2 * time.Hour},
		{"pt90s", 90 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h30m", 90 * time.Minute},
	}

	for _, test := range tests {
		t.Run(test.value, func(t *testing.T) {
			duration, err := ParseWindow(test.value)

			require.NoError(t, err)
			assert.Equal(t, test.expected, duration)
		})
	}

	_, err := ParseWindow("PTXM")
	assert.Error(t, err)

	_, err = ParseWindow("later")
	assert.Error(t, err)
}
