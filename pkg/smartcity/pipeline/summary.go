package pipeline

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/weather"
)

// RequiredComponents are the datasets downstream analysis needs, either
// collected or synthetic
var RequiredComponents = []string{
	common.DatasetVehicles,
	common.DatasetAccidents,
	common.DatasetEnergy,
	common.DatasetEmergency,
}

// Summary reports one run for operators
type Summary struct {
	Execution   Execution         `json:"pipeline_execution"`
	Collection  CollectionSummary `json:"data_collection"`
	DataQuality DataQuality       `json:"data_quality"`
	Insights    Insights          `json:"lahore_insights"`
	Weather     *weather.Reading  `json:"weather,omitempty"`
	Readiness   Readiness         `json:"readiness"`
}

// Execution holds run timing
type Execution struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationHours   float64   `json:"duration_hours"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// CollectionSummary counts what was gathered
type CollectionSummary struct {
	RealDatasetsCollected      int             `json:"real_datasets_collected"`
	SyntheticDatasetsGenerated int             `json:"synthetic_datasets_generated"`
	WeatherDataAvailable       bool            `json:"weather_data_available"`
	SourceStatus               map[string]bool `json:"source_status"`

	Profiles map[string]Profile `json:"dataset_profiles,omitempty"`
}

// Profile describes the shape and completeness of one collected dataset
type Profile struct {
	Summary      dataset.Summary           `json:"summary"`
	Completeness common.CompletenessReport `json:"completeness"`
}

// DataQuality mirrors the validation summary
type DataQuality struct {
	OverallQualityScore float64 `json:"overall_quality_score"`
	QualityStatus       string  `json:"quality_status"`
	TotalIssues         int     `json:"total_issues"`
	DatasetsValidated   int     `json:"datasets_validated"`
	MeetsThreshold      bool    `json:"meets_threshold"`
}

// Insights are headline figures from the collected district data
type Insights struct {
	TotalVehicles       *int           `json:"total_vehicles,omitempty"`
	VehicleDistribution map[string]int `json:"vehicle_distribution,omitempty"`
	AccidentRecords     *int           `json:"accident_records,omitempty"`
	AccidentYearRange   string         `json:"accident_year_range,omitempty"`

	// synthetic requests bucketed by time of day and by weekday/weekend
	RequestsByPeriod  map[string]int `json:"emergency_requests_by_period,omitempty"`
	RequestsByDayType map[string]int `json:"emergency_requests_by_day_type,omitempty"`
}

// Readiness scores how many required components are available
type Readiness struct {
	RequiredComponents  []string `json:"required_components"`
	AvailableComponents []string `json:"available_components"`
	ReadinessScore      float64  `json:"readiness_score"`
	ExportFilesCreated  int      `json:"export_files_created"`
}

// summarize builds the report for a finished run
func (p *Pipeline) summarize(r *run) *Summary {
	end := p.clock.Now()
	hours := common.HoursBetween(r.start, end)
	s := &Summary{
		Execution: Execution{
			StartTime:       r.start,
			EndTime:         end,
			DurationHours:   hours,
			DurationMinutes: common.Round(hours*60, 2),
		},
		Collection: CollectionSummary{
			RealDatasetsCollected:      len(r.collected.Datasets),
			SyntheticDatasetsGenerated: 2,
			WeatherDataAvailable:       r.collected.Weather != nil,
			SourceStatus:               r.collected.Status,
			Profiles:                   p.profiles(r.collected.Datasets),
		},
		Weather: r.collected.Weather,
	}

	if r.overall != nil {
		s.DataQuality = DataQuality{
			OverallQualityScore: r.overall.OverallQuality,
			QualityStatus:       r.overall.Summary.QualityStatus,
			TotalIssues:         r.overall.Summary.TotalIssues,
			DatasetsValidated:   r.overall.Summary.DatasetsValidated,
			MeetsThreshold:      r.overall.OverallQuality >= p.cfg.Validation.QualityThreshold,
		}
	}

	if vehicles, ok := r.collected.Datasets[common.DatasetVehicles]; ok {
		s.Insights.TotalVehicles = ptr.To(int(vehicles.SumColumn(common.ColumnVehicleTotal)))
		s.Insights.VehicleDistribution = vehicleDistribution(vehicles)
	}
	if accidents, ok := r.collected.Datasets[common.DatasetAccidents]; ok {
		s.Insights.AccidentRecords = ptr.To(accidents.Len())
		s.Insights.AccidentYearRange = yearRange(accidents.Column(common.ColumnAccidentYear))
	}

	if r.synthetic != nil && len(r.synthetic.Emergency) > 0 {
		s.Insights.RequestsByPeriod = make(map[string]int)
		s.Insights.RequestsByDayType = make(map[string]int)
		for _, req := range r.synthetic.Emergency {
			s.Insights.RequestsByPeriod[common.HourCategory(req.Timestamp.Hour())]++
			s.Insights.RequestsByDayType[common.DayType(req.Timestamp)]++
		}
	}

	s.Readiness = readiness(sortedKeys(r.collected.Datasets), len(r.exports))
	return s
}

// profiles summarizes every collected dataset and flags those below the
// completeness threshold
func (p *Pipeline) profiles(datasets map[string]*dataset.Dataset) map[string]Profile {
	if len(datasets) == 0 {
		return nil
	}
	out := make(map[string]Profile, len(datasets))
	for name, ds := range datasets {
		completeness := ds.Completeness(p.cfg.Validation.CompletenessThreshold)
		if !completeness.MeetsThreshold {
			klog.InfoS("Dataset below completeness threshold", "dataset", name,
				"ratio", completeness.CompletenessRatio, "threshold", p.cfg.Validation.CompletenessThreshold)
		}
		out[name] = Profile{Summary: ds.Summarize(), Completeness: completeness}
	}
	return out
}

// vehicleDistribution totals every vehicle category with a positive count
func vehicleDistribution(vehicles *dataset.Dataset) map[string]int {
	dist := make(map[string]int)
	for _, col := range vehicles.Columns {
		if col == common.ColumnVehicleDistrict || col == common.ColumnVehicleTotal {
			continue
		}
		if count := int(vehicles.SumColumn(col)); count > 0 {
			dist[col] = count
		}
	}
	return dist
}

// yearRange renders "min-max" over the parseable years, or "" when none parse
func yearRange(values []any) string {
	var lo, hi float64
	found := false
	for _, v := range values {
		year, ok := common.ParseNumber(v)
		if !ok {
			continue
		}
		if !found || year < lo {
			lo = year
		}
		if !found || year > hi {
			hi = year
		}
		found = true
	}
	if !found {
		return ""
	}
	return fmt.Sprintf("%s-%s", common.FormatNumber(lo), common.FormatNumber(hi))
}

func readiness(collected []string, exportFiles int) Readiness {
	available := append([]string{}, collected...)
	available = append(available, syntheticPrefix+common.DatasetEnergy, syntheticPrefix+common.DatasetEmergency)
	have := sets.New(available...)

	ready := 0
	for _, c := range RequiredComponents {
		if have.Has(c) || have.Has(syntheticPrefix+c) {
			ready++
		}
	}
	return Readiness{
		RequiredComponents:  RequiredComponents,
		AvailableComponents: available,
		ReadinessScore:      float64(ready) / float64(len(RequiredComponents)),
		ExportFilesCreated:  exportFiles,
	}
}
