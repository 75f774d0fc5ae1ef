package weather

import (
	"strings"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
)

// Condition categories
const (
	ConditionRainy  = "Rainy"
	ConditionCloudy = "Cloudy"
	ConditionClear  = "Clear"
	ConditionMisty  = "Misty"
	ConditionStormy = "Stormy"
	ConditionOther  = "Other"
)

const absoluteZeroC = 273.15

// conditionKeywords is checked in order; the first category with a matching
// keyword wins
var conditionKeywords = []struct {
	category string
	words    []string
}{
	{ConditionRainy, []string{"rain", "drizzle", "shower"}},
	{ConditionCloudy, []string{"cloud", "overcast"}},
	{ConditionClear, []string{"clear", "sunny"}},
	{ConditionMisty, []string{"mist", "fog", "haze"}},
	{ConditionStormy, []string{"storm", "thunder"}},
}

// KelvinToCelsius converts a temperature and rounds it to two places
func KelvinToCelsius(kelvin float64) float64 {
	return common.Round(kelvin-absoluteZeroC, 2)
}

// AirQualityDescription names an OpenWeatherMap air quality index (1-5)
func AirQualityDescription(aqi int) string {
	switch aqi {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}

// CategorizeCondition buckets a free-text weather description
func CategorizeCondition(description string) string {
	desc := strings.ToLower(description)
	for _, c := range conditionKeywords {
		for _, w := range c.words {
			if strings.Contains(desc, w) {
				return c.category
			}
		}
	}
	return ConditionOther
}
