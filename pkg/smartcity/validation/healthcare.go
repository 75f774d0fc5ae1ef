package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

var healthcareNumericColumns = []string{
	common.ColumnHealthHospitals,
	common.ColumnHealthDispensaries,
	common.ColumnHealthBeds,
}

func (v *Validator) validateHealthcare(report *Report, ds *dataset.Dataset) {
	report.Trends = &Trends{}
	rows := ds.Rows

	if yearCol, ok := ds.ResolveColumn(common.ColumnHealthYear); ok {
		years := sets.New[int]()
		for _, row := range ds.Rows {
			if y, ok := common.ParseNumber(row[yearCol]); ok {
				years.Insert(int(y))
			}
		}
		if years.Len() > 0 {
			sorted := sets.List(years)
			first, last := sorted[0], sorted[len(sorted)-1]
			report.Trends.YearRange = fmt.Sprintf("%d-%d", first, last)

			var missing []int
			for y := first; y <= last; y++ {
				if !years.Has(y) {
					missing = append(missing, y)
				}
			}
			if len(missing) > 0 {
				report.addIssue(IssueGap, PenaltyMissingYears, "Missing years: %s", yearList(missing))
			}
		}
		rows = chronological(ds.Rows, yearCol)
	}

	for _, name := range healthcareNumericColumns {
		col, ok := ds.ResolveColumn(name)
		if !ok {
			continue
		}

		var values []float64
		invalid := 0
		for _, row := range rows {
			n, ok := common.CleanNumeric(row[col])
			if !ok {
				invalid++
				continue
			}
			values = append(values, n)
		}
		if invalid > 0 {
			report.addIssue(IssueParseError, PenaltyInvalidValues, "Invalid values in %s: %d", name, invalid)
		}

		if len(values) > 1 {
			start, end := values[0], values[len(values)-1]
			if report.Trends.Columns == nil {
				report.Trends.Columns = make(map[string]Trend)
			}
			report.Trends.Columns[name] = Trend{
				StartValue:    int(start),
				EndValue:      int(end),
				Change:        int(end - start),
				ChangePercent: common.Round(common.PercentageChange(start, end), 2),
			}
			if end < start {
				report.addIssue(IssueTrend, PenaltyNegativeTrend, "%s shows negative trend", name)
			}
		}
	}
}

// chronological orders rows by year; rows without a parseable year keep their
// relative order at the end
func chronological(rows []dataset.Row, yearCol string) []dataset.Row {
	sorted := append([]dataset.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, okI := common.ParseNumber(sorted[i][yearCol])
		yj, okJ := common.ParseNumber(sorted[j][yearCol])
		switch {
		case okI && okJ:
			return yi < yj
		default:
			return okI && !okJ
		}
	})
	return sorted
}

// yearList renders years as [2017, 2019]
func yearList(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
