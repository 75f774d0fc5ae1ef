package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNilDataset is returned when Validate is handed no dataset at all
	ErrNilDataset = errors.New("nil dataset")
	// ErrUnknownKind is returned for a dataset name or Kind with no validator
	ErrUnknownKind = errors.New("unknown dataset kind")
)

// Kind selects the schema and rules a dataset is validated against
type Kind int

const (
	KindVehicles Kind = iota
	KindAccidents
	KindHealthcare
	KindEnergy
	KindEmergency
)

var kindNames = map[Kind]string{
	KindVehicles:   "vehicles",
	KindAccidents:  "accidents",
	KindHealthcare: "healthcare",
	KindEnergy:     "energy",
	KindEmergency:  "emergency",
}

// Dataset names accepted by ParseKind in addition to the kind names
var kindAliases = map[string]Kind{
	"traffic_vehicles":    KindVehicles,
	"traffic_accidents":   KindAccidents,
	"synthetic_energy":    KindEnergy,
	"synthetic_emergency": KindEmergency,
}

// Kinds lists every kind in declaration order
func Kinds() []Kind {
	return []Kind{KindVehicles, KindAccidents, KindHealthcare, KindEnergy, KindEmergency}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a dataset name to its kind
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// IssueKind classifies an issue for metrics and filtering
type IssueKind string

const (
	IssueMissingColumn     IssueKind = "MissingColumn"
	IssueParseError        IssueKind = "ParseError"
	IssueEmptyFilterResult IssueKind = "EmptyFilterResult"
	IssueRange             IssueKind = "Range"
	IssueDuplicate         IssueKind = "Duplicate"
	IssueInterval          IssueKind = "Interval"
	IssueNull              IssueKind = "Null"
	IssueTrend             IssueKind = "Trend"
	IssueGap               IssueKind = "Gap"
	IssueBounds            IssueKind = "Bounds"
)

// Issue is one detected problem and the penalty it cost
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Penalty int       `json:"penalty"`
}

// LahoreSpecific is the district-filtered annex of vehicle and accident reports
type LahoreSpecific struct {
	RecordsFound  int    `json:"records_found"`
	TotalVehicles *int   `json:"total_vehicles,omitempty"`
	YearRange     string `json:"year_range,omitempty"`
	TotalCases    *int   `json:"total_cases,omitempty"`
}

// Trend compares the first and last yearly values of a column
type Trend struct {
	StartValue    int     `json:"start_value"`
	EndValue      int     `json:"end_value"`
	Change        int     `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Trends is the healthcare annex
type Trends struct {
	YearRange string           `json:"year_range,omitempty"`
	Columns   map[string]Trend `json:"columns,omitempty"`
}

// ColumnStats describes the numeric values of one energy column
type ColumnStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Patterns is the energy annex
type Patterns struct {
	TimeRange string                 `json:"time_range,omitempty"`
	Columns   map[string]ColumnStats `json:"columns,omitempty"`
}

// Report is the outcome of validating one dataset. QualityScore starts at 100
// and loses a fixed penalty per issue; it is not clamped and may go negative.
type Report struct {
	DataType     string   `json:"data_type"`
	TotalRecords int      `json:"total_records"`
	Issues       []string `json:"issues"`
	Details      []Issue  `json:"issue_details"`
	QualityScore int      `json:"quality_score"`

	LahoreSpecific *LahoreSpecific     `json:"lahore_specific,omitempty"`
	Trends         *Trends             `json:"trends,omitempty"`
	Patterns       *Patterns           `json:"patterns,omitempty"`
	Distribution   map[string][]string `json:"distribution,omitempty"`
}

func (r *Report) addIssue(kind IssueKind, penalty int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Issues = append(r.Issues, msg)
	r.Details = append(r.Details, Issue{Kind: kind, Message: msg, Penalty: penalty})
	r.QualityScore -= penalty
}

// Summary condenses an Overall result
type Summary struct {
	DatasetsValidated   int     `json:"datasets_validated"`
	AverageQualityScore float64 `json:"average_quality_score"`
	TotalIssues         int     `json:"total_issues"`
	QualityStatus       string  `json:"quality_status"`
}

// Overall aggregates the reports of one ValidateAll call
type Overall struct {
	Timestamp      time.Time          `json:"validation_timestamp"`
	OverallQuality float64            `json:"overall_quality"`
	Datasets       map[string]*Report `json:"dataset_validations"`
	Summary        Summary            `json:"summary"`

	// Failed maps dataset names to the error that kept them out of the average
	Failed map[string]string `json:"failed,omitempty"`
}

// Quality tiers returned by Status
const (
	StatusExcellent = "Excellent"
	StatusGood      = "Good"
	StatusFair      = "Fair"
	StatusPoor      = "Poor"
)

// Status maps a quality score to its tier
func Status(score float64) string {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 80:
		return StatusGood
	case score >= 70:
		return StatusFair
	default:
		return StatusPoor
	}
}
