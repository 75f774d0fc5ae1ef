package validation

import (
	"k8s.io/utils/ptr"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

func (v *Validator) validateAccidents(report *Report, ds *dataset.Dataset) {
	district := ds.FilterContains(common.ColumnAccidentDistrict, v.districtTerm)
	report.LahoreSpecific = &LahoreSpecific{RecordsFound: district.Len()}

	if district.Empty() {
		report.addIssue(IssueEmptyFilterResult, PenaltyNoDistrictRows, "No %s accident records found", v.districtTerm)
		return
	}

	if years := district.Column(common.ColumnAccidentYear); years != nil {
		yr := common.ValidateYearRange(years, v.minYear, v.currentYear())
		if yr.InvalidCount > 0 {
			report.addIssue(IssueParseError, PenaltyInvalidYears, "Invalid year values found")
		}
		if yr.ValidYears > 0 {
			report.LahoreSpecific.YearRange = yr.YearRange
			if yr.OutOfRangeCount > 0 {
				report.addIssue(IssueRange, PenaltyYearRange, "Unusual year range: %s", yr.YearRange)
			}
		}
	}

	if cases := district.Column(common.ColumnAccidentCases); cases != nil {
		var valid []float64
		for _, c := range cases {
			if n, ok := common.ParseNumber(c); ok {
				valid = append(valid, n)
			}
		}
		if len(valid) != len(cases) {
			report.addIssue(IssueParseError, PenaltyInvalidCases, "Invalid case count values")
		}
		if len(valid) > 0 {
			total, negative := 0.0, false
			for _, n := range valid {
				total += n
				negative = negative || n < 0
			}
			report.LahoreSpecific.TotalCases = ptr.To(int(total))
			if negative {
				report.addIssue(IssueRange, PenaltyNegativeCases, "Negative case counts found")
			}
		}
	}
}
