package validation

import (
	"k8s.io/utils/ptr"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

func (v *Validator) validateVehicles(report *Report, ds *dataset.Dataset) {
	district := ds.FilterContains(common.ColumnVehicleDistrict, v.districtTerm)
	report.LahoreSpecific = &LahoreSpecific{RecordsFound: district.Len()}

	if district.Empty() {
		report.addIssue(IssueEmptyFilterResult, PenaltyNoDistrictRows, "No %s records found", v.districtTerm)
		return
	}

	districtCol, _ := ds.ResolveColumn(common.ColumnVehicleDistrict)
	totalCol, hasTotal := ds.ResolveColumn(common.ColumnVehicleTotal)

	for _, col := range ds.Columns {
		if col == districtCol {
			continue
		}
		invalid := 0
		for _, row := range district.Rows {
			if _, ok := common.CleanNumeric(row[col]); !ok {
				invalid++
			}
		}
		if invalid > 0 {
			report.addIssue(IssueParseError, PenaltyInvalidValues, "Invalid values in %s: %d", col, invalid)
		}

		if hasTotal && col == totalCol {
			total, ok := common.CleanNumeric(district.Rows[0][col])
			if !ok {
				continue
			}
			if total < minPlausibleVehicles || total > maxPlausibleVehicles {
				report.addIssue(IssueRange, PenaltyUnusualTotal, "Unusual total vehicle count: %s", common.FormatNumber(total))
			}
			report.LahoreSpecific.TotalVehicles = ptr.To(int(total))
		}
	}
}
