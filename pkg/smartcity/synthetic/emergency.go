package synthetic

import (
	"fmt"
	"math"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

// EmergencyRequest is one municipal service request
type EmergencyRequest struct {
	RequestID       string      `json:"request_id"`
	Timestamp       time.Time   `json:"timestamp"`
	ServiceType     ServiceType `json:"service_type"`
	Priority        Priority    `json:"priority"`
	Status          Status      `json:"status"`
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	District        string      `json:"district"`
	Description     string      `json:"description"`
	ResolutionHours int         `json:"estimated_resolution_hours"`
}

// Emergency generates service requests for each calendar day from windowDays
// before the current clock time through today.
func (g *Generator) Emergency(windowDays int) []EmergencyRequest {
	end := g.now()
	start := end.AddDate(0, 0, -windowDays)
	dailyBase := int(float64(g.emergencyVehicle) / 1e6 * RequestsPerMillionVehicles)

	var requests []EmergencyRequest
	counter := RequestIDOffset
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		n := dailyBase + int(g.jitter.Rand())
		for i := 0; i < n; i++ {
			requests = append(requests, g.request(day, end, counter))
			counter++
		}
	}

	klog.V(2).InfoS("Generated emergency requests", "requests", len(requests), "days", windowDays+1, "dailyBase", dailyBase)
	return requests
}

func (g *Generator) request(day, end time.Time, counter int) EmergencyRequest {
	hour := int(g.hours.Rand())
	minute := g.rng.IntN(60)
	second := g.rng.IntN(60)
	ts := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location())

	service := ServiceTypes[int(g.services.Rand())]
	priority := g.drawPriority(service)
	ageDays := int(math.Floor(end.Sub(ts).Hours() / 24))
	status := g.drawStatus(ageDays)

	lat := common.Round(g.gaussian(common.CityLatitude, CoordinateSigma), 6)
	lon := common.Round(g.gaussian(common.CityLongitude, CoordinateSigma), 6)
	district := Districts[g.rng.IntN(len(Districts))]

	return EmergencyRequest{
		RequestID:       fmt.Sprintf("%s%d", RequestIDPrefix, counter),
		Timestamp:       ts,
		ServiceType:     service,
		Priority:        priority,
		Status:          status,
		Latitude:        lat,
		Longitude:       lon,
		District:        district,
		Description:     "Service request for " + strings.ToLower(string(service)),
		ResolutionHours: ResolutionHours(service, priority),
	}
}

func (g *Generator) drawPriority(service ServiceType) Priority {
	switch {
	case criticalServices[service]:
		return PriorityHigh
	case urgentServices[service]:
		return Priorities[int(g.urgentPriority.Rand())]
	default:
		return Priorities[int(g.priority.Rand())]
	}
}

func (g *Generator) drawStatus(ageDays int) Status {
	switch {
	case ageDays > 30:
		return Statuses[int(g.statusMonth.Rand())]
	case ageDays > 7:
		return Statuses[int(g.statusWeek.Rand())]
	default:
		return Statuses[int(g.statusRecent.Rand())]
	}
}

// ResolutionHours estimates time to resolve a request. High priority halves
// the base estimate (never below one hour) and Low stretches it by half.
func ResolutionHours(service ServiceType, priority Priority) int {
	base, ok := ResolutionBaseHours[service]
	if !ok {
		base = defaultResolutionHours
	}
	switch priority {
	case PriorityHigh:
		return max(1, int(float64(base)*0.5))
	case PriorityLow:
		return int(float64(base) * 1.5)
	default:
		return base
	}
}

// EmergencyColumns is the column order of EmergencyDataset
var EmergencyColumns = []string{
	common.ColumnRequestID,
	common.ColumnTimestamp,
	common.ColumnServiceType,
	common.ColumnPriority,
	common.ColumnStatus,
	common.ColumnLatitude,
	common.ColumnLongitude,
	common.ColumnDistrict,
	common.ColumnDescription,
	common.ColumnResolutionHours,
}

// EmergencyDataset converts requests into a tabular dataset
func EmergencyDataset(requests []EmergencyRequest) *dataset.Dataset {
	ds := dataset.New(EmergencyColumns...)
	for _, r := range requests {
		ds.AppendValues(r.RequestID, r.Timestamp, string(r.ServiceType), string(r.Priority),
			string(r.Status), r.Latitude, r.Longitude, r.District, r.Description, r.ResolutionHours)
	}
	return ds
}
