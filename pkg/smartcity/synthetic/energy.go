package synthetic

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

// EnergyRecord is one hourly grid reading
type EnergyRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalConsumptionMW float64   `json:"total_consumption_mw"`
	ResidentialMW      float64   `json:"residential_mw"`
	CommercialMW       float64   `json:"commercial_mw"`
	IndustrialMW       float64   `json:"industrial_mw"`
	GridFrequencyHz    float64   `json:"grid_frequency_hz"`
	VoltageKV          float64   `json:"voltage_kv"`
}

// Energy generates hourly consumption for the windowDays days ending at the
// current clock time, inclusive of both ends.
func (g *Generator) Energy(vehicleCount, windowDays int) []EnergyRecord {
	if windowDays < 0 {
		return nil
	}
	end := g.now()
	start := end.Add(-time.Duration(windowDays) * 24 * time.Hour)
	baseLoad := float64(vehicleCount) / 1e6 * BaseLoadPerMillionVehicles

	records := make([]EnergyRecord, 0, windowDays*24+1)
	for ts := start; !ts.After(end); ts = ts.Add(time.Hour) {
		consumption := baseLoad *
			hourFactor(ts.Hour()) *
			dayFactor(ts) *
			seasonFactor(ts.Month()) *
			g.gaussian(1, NoiseSigma)
		if consumption < 0 {
			consumption = 0
		}

		total := common.Round(consumption, 2)
		residential := common.Round(total*ResidentialShare, 2)
		commercial := common.Round(total*CommercialShare, 2)
		// industrial absorbs rounding so the parts sum to total
		industrial := common.Round(total-residential-commercial, 2)

		records = append(records, EnergyRecord{
			Timestamp:          ts,
			TotalConsumptionMW: total,
			ResidentialMW:      residential,
			CommercialMW:       commercial,
			IndustrialMW:       industrial,
			GridFrequencyHz:    common.Round(g.gaussian(NominalFrequencyHz, FrequencySigma), 2),
			VoltageKV:          common.Round(g.gaussian(NominalVoltageKV, VoltageSigma), 1),
		})
	}

	klog.V(2).InfoS("Generated energy series", "records", len(records), "start", start, "end", end, "baseLoadMW", baseLoad)
	return records
}

func hourFactor(hour int) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return MorningPeakFactor
	case hour >= 18 && hour <= 22:
		return EveningPeakFactor
	case hour <= 5:
		return NightFactor
	default:
		return 1.0
	}
}

func dayFactor(t time.Time) float64 {
	if common.IsWeekend(t) {
		return WeekendFactor
	}
	return 1.0
}

func seasonFactor(month time.Month) float64 {
	switch month {
	case time.May, time.June, time.July, time.August:
		return SummerFactor
	case time.December, time.January, time.February:
		return WinterFactor
	default:
		return 1.0
	}
}

// EnergyColumns is the column order of EnergyDataset
var EnergyColumns = []string{
	common.ColumnTimestamp,
	common.ColumnTotalConsumption,
	common.ColumnResidential,
	common.ColumnCommercial,
	common.ColumnIndustrial,
	common.ColumnGridFrequency,
	common.ColumnVoltage,
}

// EnergyDataset converts records into a tabular dataset
func EnergyDataset(records []EnergyRecord) *dataset.Dataset {
	ds := dataset.New(EnergyColumns...)
	for _, r := range records {
		ds.AppendValues(r.Timestamp, r.TotalConsumptionMW, r.ResidentialMW, r.CommercialMW,
			r.IndustrialMW, r.GridFrequencyHz, r.VoltageKV)
	}
	return ds
}
