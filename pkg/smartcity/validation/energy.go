package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

var energyColumns = []string{
	common.ColumnTotalConsumption,
	common.ColumnResidential,
	common.ColumnCommercial,
	common.ColumnIndustrial,
}

// Layouts accepted for timestamp cells held as text
var timestampLayouts = []string{
	dataset.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

func (v *Validator) validateEnergy(report *Report, ds *dataset.Dataset) {
	report.Patterns = &Patterns{}

	if col, ok := ds.ResolveColumn(common.ColumnTimestamp); ok {
		v.checkTimestamps(report, ds, col)
	}

	for _, name := range energyColumns {
		col, ok := ds.ResolveColumn(name)
		if !ok {
			continue
		}

		var values []float64
		nulls, negatives := 0, 0
		for _, row := range ds.Rows {
			n, ok := common.ParseNumber(row[col])
			if !ok {
				nulls++
				continue
			}
			if n < 0 {
				negatives++
			}
			values = append(values, n)
		}

		if nulls > 0 {
			report.addIssue(IssueNull, PenaltyNullValues, "Null values in %s: %d", name, nulls)
		}
		if negatives > 0 {
			report.addIssue(IssueRange, PenaltyNegativeValues, "Negative values in %s: %d", name, negatives)
		}
		if len(values) > 0 {
			if report.Patterns.Columns == nil {
				report.Patterns.Columns = make(map[string]ColumnStats)
			}
			report.Patterns.Columns[name] = columnStats(values)
		}
	}
}

func (v *Validator) checkTimestamps(report *Report, ds *dataset.Dataset, col string) {
	stamps := make([]time.Time, 0, ds.Len())
	for i, row := range ds.Rows {
		ts, err := parseTimestamp(row[col])
		if err != nil {
			report.addIssue(IssueParseError, PenaltyTimestampParse, "Timestamp parsing error: row %d: %v", i, err)
			return
		}
		stamps = append(stamps, ts)
	}
	if len(stamps) == 0 {
		return
	}

	first, last := stamps[0], stamps[0]
	seen := sets.New[int64]()
	duplicates, irregular := 0, 0
	for i, ts := range stamps {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		key := ts.UnixNano()
		if seen.Has(key) {
			duplicates++
		}
		seen.Insert(key)
		if i > 0 && ts.Sub(stamps[i-1]) != v.interval {
			irregular++
		}
	}

	report.Patterns.TimeRange = first.Format(dataset.TimestampLayout) + " to " + last.Format(dataset.TimestampLayout)
	if duplicates > 0 {
		report.addIssue(IssueDuplicate, PenaltyDuplicateTimes, "Duplicate timestamps: %d", duplicates)
	}
	if irregular > 0 {
		report.addIssue(IssueInterval, PenaltyIrregularSpacing, "Irregular time intervals: %d", irregular)
	}
}

func parseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", val)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %v of type %T", val, val)
	}
}

func columnStats(values []float64) ColumnStats {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 || math.IsNaN(std) {
		std = 0
	}
	return ColumnStats{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: mean,
		Std:  std,
	}
}
