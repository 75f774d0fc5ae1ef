package dataset

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
)

// Column type names reported by Summary
const (
	TypeEmpty    = "empty"
	TypeNumber   = "number"
	TypeDatetime = "datetime"
	TypeString   = "string"
	TypeMixed    = "mixed"
)

// NumericSummary describes the numeric cells of one column
type NumericSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summary is a shape-and-content overview of a dataset
type Summary struct {
	TotalRows      int                       `json:"total_rows"`
	TotalColumns   int                       `json:"total_columns"`
	NullCounts     map[string]int            `json:"null_counts"`
	DataTypes      map[string]string         `json:"data_types"`
	NumericSummary map[string]NumericSummary `json:"numeric_summary,omitempty"`
}

// Summarize computes per-column null counts, inferred types, and numeric
// statistics. Strings that parse as numbers count as numeric.
func (d *Dataset) Summarize() Summary {
	summary := Summary{
		TotalRows:    len(d.Rows),
		TotalColumns: len(d.Columns),
		NullCounts:   make(map[string]int, len(d.Columns)),
		DataTypes:    make(map[string]string, len(d.Columns)),
	}

	for _, col := range d.Columns {
		var numbers []float64
		nulls := 0
		kind := TypeEmpty

		for _, row := range d.Rows {
			v := row[col]
			if v == nil {
				nulls++
				continue
			}
			cellKind := TypeString
			if f, ok := common.ParseNumber(v); ok {
				cellKind = TypeNumber
				numbers = append(numbers, f)
			} else if _, ok := v.(time.Time); ok {
				cellKind = TypeDatetime
			}
			kind = mergeKind(kind, cellKind)
		}

		summary.NullCounts[col] = nulls
		summary.DataTypes[col] = kind

		if kind == TypeNumber && len(numbers) > 0 {
			if summary.NumericSummary == nil {
				summary.NumericSummary = make(map[string]NumericSummary)
			}
			summary.NumericSummary[col] = describe(numbers)
		}
	}

	return summary
}

func mergeKind(current, next string) string {
	if current == TypeEmpty || current == next {
		return next
	}
	return TypeMixed
}

func describe(values []float64) NumericSummary {
	mean, std := stat.MeanStdDev(values, nil)
	// sample deviation is undefined for a single value
	if len(values) < 2 || math.IsNaN(std) {
		std = 0
	}
	return NumericSummary{
		Count: len(values),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
}
