package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKelvinToCelsius(t *testing.T) {
	assert.Equal(t, 0.0, KelvinToCelsius(273.15))
	assert.Equal(t, 26.85, KelvinToCelsius(300))
	assert.Equal(t, -273.15, KelvinToCelsius(0))
}

func TestAirQualityDescription(t *testing.T) {
	expected := map[int]string{
		0: "Unknown",
		1: "Good",
		2: "Fair",
		3: "Moderate",
		4: "Poor",
		5: "Very Poor",
		6: "Unknown",
	}
	for aqi, desc := range expected {
		assert.Equal(t, desc, AirQualityDescription(aqi), "aqi %d", aqi)
	}
}

func TestCategorizeCondition(t *testing.T) {
	tests := map[string]string{
		"light rain":             ConditionRainy,
		"Shower Drizzle":         ConditionRainy,
		"overcast clouds":        ConditionCloudy,
		"clear sky":              ConditionClear,
		"haze":                   ConditionMisty,
		"thunderstorm":           ConditionStormy,
		"thunderstorm with rain": ConditionRainy,
		"dust":                   ConditionOther,
		"":                       ConditionOther,
	}
	for desc, expected := range tests {
		assert.Equal(t, expected, CategorizeCondition(desc), desc)
	}
}
