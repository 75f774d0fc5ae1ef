package synthetic

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
)

// Monday in June, so summer factors apply
var fixedNow = time.Date(2024, 6, 3, 12, 34, 56, 789, time.UTC)

func newTestGenerator(seed uint64) *Generator {
	return NewSeeded(seed, clocktesting.NewFakePassiveClock(fixedNow))
}

func TestGeneratorReproducible(t *testing.T) {
	a := newTestGenerator(42)
	b := newTestGenerator(42)

	assert.Equal(t, a.Energy(common.DefaultVehicleCount, 7), b.Energy(common.DefaultVehicleCount, 7))
	assert.Equal(t, a.Emergency(5), b.Emergency(5))

	c := newTestGenerator(7)
	assert.NotEqual(t, a.Energy(common.DefaultVehicleCount, 2), c.Energy(common.DefaultVehicleCount, 2))
}

func TestEnergySeries(t *testing.T) {
	g := newTestGenerator(42)
	records := g.Energy(common.DefaultVehicleCount, DefaultEnergyWindowDays)

	require.Len(t, records, DefaultEnergyWindowDays*24+1)
	end := fixedNow.Truncate(time.Second)
	assert.Equal(t, end, records[len(records)-1].Timestamp)
	assert.Equal(t, end.Add(-30*24*time.Hour), records[0].Timestamp)

	for i, r := range records {
		if i > 0 {
			assert.Equal(t, time.Hour, r.Timestamp.Sub(records[i-1].Timestamp), "record %d", i)
		}
		sum := r.ResidentialMW + r.CommercialMW + r.IndustrialMW
		assert.InDelta(t, r.TotalConsumptionMW, sum, 0.01, "record %d", i)
		assert.GreaterOrEqual(t, r.TotalConsumptionMW, 0.0)
		assert.InDelta(t, NominalFrequencyHz, r.GridFrequencyHz, 0.5)
		assert.InDelta(t, NominalVoltageKV, r.VoltageKV, 10)
		assert.Equal(t, r.GridFrequencyHz, common.Round(r.GridFrequencyHz, 2))
		assert.Equal(t, r.VoltageKV, common.Round(r.VoltageKV, 1))
	}
}

func TestEnergyDailyShape(t *testing.T) {
	g := newTestGenerator(1)
	records := g.Energy(common.DefaultVehicleCount, 14)

	maxNight, minEvening := 0.0, math.Inf(1)
	for _, r := range records {
		switch h := r.Timestamp.Hour(); {
		case h <= 5:
			maxNight = math.Max(maxNight, r.TotalConsumptionMW)
		case h >= 18 && h <= 22:
			minEvening = math.Min(minEvening, r.TotalConsumptionMW)
		}
	}
	assert.Less(t, maxNight, minEvening)
}

func TestEnergyZeroVehicles(t *testing.T) {
	records := newTestGenerator(42).Energy(0, 1)
	require.Len(t, records, 25)
	for _, r := range records {
		assert.Equal(t, 0.0, r.TotalConsumptionMW)
	}
}

func TestNegativeWindows(t *testing.T) {
	g := newTestGenerator(42)
	assert.NotPanics(t, func() {
		assert.Empty(t, g.Energy(1000, -1))
		assert.Empty(t, g.Emergency(-1))
	})
}

func TestFactors(t *testing.T) {
	assert.Equal(t, NightFactor, hourFactor(0))
	assert.Equal(t, NightFactor, hourFactor(5))
	assert.Equal(t, MorningPeakFactor, hourFactor(6))
	assert.Equal(t, 1.0, hourFactor(12))
	assert.Equal(t, EveningPeakFactor, hourFactor(22))
	assert.Equal(t, 1.0, hourFactor(23))

	assert.Equal(t, WeekendFactor, dayFactor(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.0, dayFactor(fixedNow))

	assert.Equal(t, SummerFactor, seasonFactor(time.July))
	assert.Equal(t, WinterFactor, seasonFactor(time.January))
	assert.Equal(t, 1.0, seasonFactor(time.October))
}

func TestEmergencyRequests(t *testing.T) {
	const window = 10
	g := newTestGenerator(42)
	requests := g.Emergency(window)

	vehicles := common.DefaultVehicleCount
	dailyBase := int(float64(vehicles) / 1e6 * RequestsPerMillionVehicles)
	require.Equal(t, 999, dailyBase)
	days := window + 1
	assert.Greater(t, len(requests), days*(dailyBase+20))
	assert.Less(t, len(requests), days*(dailyBase+80))

	assert.Equal(t, "LHR1000000", requests[0].RequestID)

	services := sets.New(ServiceTypes[:]...)
	priorities := sets.New(Priorities[:]...)
	statuses := sets.New(Statuses[:]...)
	districts := sets.New(Districts[:]...)
	ids := sets.New[string]()

	end := fixedNow.Truncate(time.Second)
	start := end.AddDate(0, 0, -window)
	for _, r := range requests {
		assert.False(t, ids.Has(r.RequestID), "duplicate id %s", r.RequestID)
		ids.Insert(r.RequestID)

		assert.True(t, services.Has(r.ServiceType))
		assert.True(t, priorities.Has(r.Priority))
		assert.True(t, statuses.Has(r.Status))
		assert.True(t, districts.Has(r.District))
		assert.GreaterOrEqual(t, r.ResolutionHours, 1)
		assert.Equal(t, "Service request for "+strings.ToLower(string(r.ServiceType)), r.Description)
		assert.False(t, r.Timestamp.Before(start.Truncate(24*time.Hour)))

		switch r.ServiceType {
		case EmergencyResponse, ElectricalHazard, WaterMainBreak:
			assert.Equal(t, PriorityHigh, r.Priority)
		case TrafficSignalMalfunction, PublicHealthConcern:
			assert.NotEqual(t, PriorityLow, r.Priority)
		}
	}
	assert.Equal(t, len(requests), ids.Len())
}

func TestEmergencyCoordinatesCentred(t *testing.T) {
	requests := newTestGenerator(3).Emergency(3)

	var latSum, lonSum float64
	for _, r := range requests {
		latSum += r.Latitude
		lonSum += r.Longitude
		assert.Equal(t, r.Latitude, common.Round(r.Latitude, 6))
	}
	n := float64(len(requests))
	assert.InDelta(t, common.CityLatitude, latSum/n, 0.01)
	assert.InDelta(t, common.CityLongitude, lonSum/n, 0.01)
}

func TestResolutionHours(t *testing.T) {
	tests := []struct {
		service  ServiceType
		priority Priority
		expected int
	}{
		{EmergencyResponse, PriorityHigh, 1},
		{ElectricalHazard, PriorityHigh, 2},
		{TrafficSignalMalfunction, PriorityMedium, 6},
		{RoadDamage, PriorityLow, 108},
		{NoiseComplaint, PriorityHigh, 24},
		{AnimalControl, PriorityLow, 18},
		{ServiceType("Unknown"), PriorityMedium, 24},
	}
	for _, tt := range tests {
		t.Run(string(tt.service)+"/"+string(tt.priority), func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolutionHours(tt.service, tt.priority))
		})
	}
}

func TestGenerateAll(t *testing.T) {
	g := NewSeeded(42, clocktesting.NewFakePassiveClock(fixedNow), WithPopulation(1000))
	result := g.GenerateAll(5000000)

	assert.Len(t, result.Energy, DefaultEnergyWindowDays*24+1)
	assert.NotEmpty(t, result.Emergency)
	assert.Equal(t, fixedNow.Truncate(time.Second), result.GeneratedAt)
	assert.Equal(t, Parameters{BasePopulation: 1000, VehicleCount: 5000000, RandomSeed: 42}, result.Parameters)
}

func TestGenerateAllWindows(t *testing.T) {
	g := NewSeeded(42, clocktesting.NewFakePassiveClock(fixedNow), WithWindows(2, 0))
	result := g.GenerateAll(common.DefaultVehicleCount)

	assert.Len(t, result.Energy, 2*24+1)
	first := result.Emergency[0].Timestamp
	assert.Equal(t, fixedNow.AddDate(0, 0, -DefaultEmergencyWindowDays).YearDay(), first.YearDay(),
		"non-positive window keeps the default")
}

func TestDatasets(t *testing.T) {
	g := newTestGenerator(42)

	energy := EnergyDataset(g.Energy(common.DefaultVehicleCount, 1))
	assert.Equal(t, EnergyColumns, energy.Columns)
	assert.Equal(t, 25, energy.Len())
	assert.NoError(t, energy.Validate())

	emergency := EmergencyDataset(g.Emergency(1))
	assert.Equal(t, EmergencyColumns, emergency.Columns)
	assert.NoError(t, emergency.Validate())
	assert.IsType(t, "", emergency.Rows[0][common.ColumnServiceType])
}
