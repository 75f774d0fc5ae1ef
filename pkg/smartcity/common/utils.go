package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
)

// CleanNumeric normalizes a raw government-export cell and parses it.
// Thousands separators are dropped and literal "nan" markers read as zero,
// so nil and empty cells count as zero. The second return value is false when
// the cleaned text still is not a number.
func CleanNumeric(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, true
	case float64:
		if math.IsNaN(val) {
			return 0, true
		}
		return val, !math.IsInf(val, 0)
	case float32:
		return CleanNumeric(float64(val))
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		s := strings.ReplaceAll(val, ",", "")
		s = strings.ReplaceAll(s, "nan", "0")
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, true
		}
		return parseFinite(s)
	default:
		return 0, false
	}
}

// CleanNumericOr is CleanNumeric with unparseable cells replaced by def
func CleanNumericOr(v any, def float64) float64 {
	if f, ok := CleanNumeric(v); ok {
		return f
	}
	return def
}

// ParseNumber coerces a cell without any cleaning. Nil, empty, and
// non-numeric cells are reported as not parseable.
func ParseNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case float32:
		return ParseNumber(float64(val))
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		return parseFinite(s)
	default:
		return 0, false
	}
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Round rounds half away from zero to the given number of decimal places
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatNumber renders a float without trailing zeros ("2019", "12.5")
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ContainsFold reports whether substr is within s, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Bounds is a latitude/longitude bounding box, inclusive on every edge
type Bounds struct {
	MinLatitude  float64 `yaml:"minLatitude" json:"min_latitude"`
	MaxLatitude  float64 `yaml:"maxLatitude" json:"max_latitude"`
	MinLongitude float64 `yaml:"minLongitude" json:"min_longitude"`
	MaxLongitude float64 `yaml:"maxLongitude" json:"max_longitude"`
}

// DefaultBounds returns the Lahore administrative box
func DefaultBounds() Bounds {
	return Bounds{
		MinLatitude:  MinLatitude,
		MaxLatitude:  MaxLatitude,
		MinLongitude: MinLongitude,
		MaxLongitude: MaxLongitude,
	}
}

// Contains reports whether the point lies inside the box
func (b Bounds) Contains(lat, lon float64) bool {
	box := geom.NewBounds(geom.XY).Set(b.MinLongitude, b.MinLatitude, b.MaxLongitude, b.MaxLatitude)
	return box.OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

// Validate checks that the box is not inverted
func (b Bounds) Validate() error {
	if b.MinLatitude >= b.MaxLatitude {
		return fmt.Errorf("min latitude %v must be below max latitude %v", b.MinLatitude, b.MaxLatitude)
	}
	if b.MinLongitude >= b.MaxLongitude {
		return fmt.Errorf("min longitude %v must be below max longitude %v", b.MinLongitude, b.MaxLongitude)
	}
	return nil
}

// CompletenessReport describes how many cells of a table are populated
type CompletenessReport struct {
	CompletenessRatio float64 `json:"completeness_ratio"`
	MeetsThreshold    bool    `json:"meets_threshold"`
	TotalCells        int     `json:"total_cells"`
	NonNullCells      int     `json:"non_null_cells"`
	NullCells         int     `json:"null_cells"`
}

// Completeness computes the non-null ratio of a table (0 for an empty table)
func Completeness(totalCells, nullCells int, threshold float64) CompletenessReport {
	nonNull := totalCells - nullCells
	ratio := 0.0
	if totalCells > 0 {
		ratio = float64(nonNull) / float64(totalCells)
	}
	return CompletenessReport{
		CompletenessRatio: Round(ratio, 4),
		MeetsThreshold:    ratio >= threshold,
		TotalCells:        totalCells,
		NonNullCells:      nonNull,
		NullCells:         nullCells,
	}
}

// YearRangeReport summarizes a column of year values
type YearRangeReport struct {
	TotalYears      int    `json:"total_years"`
	ValidYears      int    `json:"valid_years"`
	InvalidCount    int    `json:"invalid_count"`
	OutOfRangeCount int    `json:"out_of_range_count"`
	YearRange       string `json:"year_range"`
	IsValid         bool   `json:"is_valid"`
}

// ValidateYearRange counts unparseable and out-of-range year cells
func ValidateYearRange(values []any, minYear, maxYear int) YearRangeReport {
	report := YearRangeReport{TotalYears: len(values), YearRange: "No valid years"}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		year, ok := ParseNumber(v)
		if !ok {
			report.InvalidCount++
			continue
		}
		report.ValidYears++
		lo = math.Min(lo, year)
		hi = math.Max(hi, year)
		if year < float64(minYear) || year > float64(maxYear) {
			report.OutOfRangeCount++
		}
	}

	if report.ValidYears > 0 {
		report.YearRange = FormatNumber(lo) + "-" + FormatNumber(hi)
	}
	report.IsValid = report.InvalidCount == 0 && report.OutOfRangeCount == 0
	return report
}

// PercentageChange returns the relative change from start to end in percent.
// A zero start yields 0 when end is also zero and 100 otherwise.
func PercentageChange(start, end float64) float64 {
	if start == 0 {
		if end == 0 {
			return 0
		}
		return 100
	}
	return (end - start) / start * 100
}

// HourCategory buckets an hour of day into a traffic period
func HourCategory(hour int) string {
	switch {
	case hour >= 6 && hour <= 9:
		return "Morning Peak"
	case hour >= 10 && hour <= 16:
		return "Day"
	case hour >= 17 && hour <= 20:
		return "Evening Peak"
	case hour >= 21 && hour <= 23:
		return "Evening"
	default:
		return "Night"
	}
}

// IsWeekend reports whether t falls on Saturday or Sunday
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayType returns "Weekend" or "Weekday"
func DayType(t time.Time) string {
	if IsWeekend(t) {
		return "Weekend"
	}
	return "Weekday"
}

// HoursBetween returns end-start in hours, rounded to two places
func HoursBetween(start, end time.Time) float64 {
	return Round(end.Sub(start).Hours(), 2)
}
