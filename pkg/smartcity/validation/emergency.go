package validation

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

var emergencyCategoricalColumns = []string{
	common.ColumnServiceType,
	common.ColumnPriority,
	common.ColumnStatus,
}

func (v *Validator) validateEmergency(report *Report, ds *dataset.Dataset) {
	if ids := ds.Column(common.ColumnRequestID); ids != nil {
		seen := sets.New[string]()
		duplicates := 0
		for _, id := range ids {
			key := dataset.FormatCell(id)
			if seen.Has(key) {
				duplicates++
			}
			seen.Insert(key)
		}
		if duplicates > 0 {
			report.addIssue(IssueDuplicate, PenaltyDuplicateIDs, "Duplicate request IDs: %d", duplicates)
		}
	}

	for _, name := range emergencyCategoricalColumns {
		values := ds.Column(name)
		if values == nil {
			continue
		}
		if report.Distribution == nil {
			report.Distribution = make(map[string][]string)
		}

		distinct := []string{}
		seen := sets.New[string]()
		nulls := 0
		for _, val := range values {
			if val == nil {
				nulls++
				continue
			}
			s := dataset.FormatCell(val)
			if !seen.Has(s) {
				seen.Insert(s)
				distinct = append(distinct, s)
			}
		}
		report.Distribution[name] = distinct

		if nulls > 0 {
			report.addIssue(IssueNull, PenaltyNullValues, "Null values in %s: %d", name, nulls)
		}
	}

	latCol, hasLat := ds.ResolveColumn(common.ColumnLatitude)
	lonCol, hasLon := ds.ResolveColumn(common.ColumnLongitude)
	if hasLat && hasLon {
		outside := 0
		for _, row := range ds.Rows {
			if v.outsideBounds(row[latCol], row[lonCol]) {
				outside++
			}
		}
		if outside > 0 {
			report.addIssue(IssueBounds, PenaltyOutOfBounds, "Coordinates outside %s bounds: %d", v.districtTerm, outside)
		}
	}
}

// outsideBounds reports a coordinate whose known parts fall outside the box.
// A missing or unparseable part never counts against the point.
func (v *Validator) outsideBounds(latCell, lonCell any) bool {
	lat, latOK := common.ParseNumber(latCell)
	lon, lonOK := common.ParseNumber(lonCell)
	b := v.bounds
	switch {
	case latOK && lonOK:
		return !b.Contains(lat, lon)
	case latOK:
		return lat < b.MinLatitude || lat > b.MaxLatitude
	case lonOK:
		return lon < b.MinLongitude || lon > b.MaxLongitude
	default:
		return false
	}
}
