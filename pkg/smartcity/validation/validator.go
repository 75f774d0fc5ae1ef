package validation

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

// Score penalties
const (
	PenaltyMissingColumns   = 20
	PenaltyNoDistrictRows   = 30
	PenaltyInvalidValues    = 5
	PenaltyUnusualTotal     = 10
	PenaltyInvalidYears     = 10
	PenaltyYearRange        = 10
	PenaltyInvalidCases     = 10
	PenaltyNegativeCases    = 15
	PenaltyMissingYears     = 10
	PenaltyNegativeTrend    = 5
	PenaltyTimestampParse   = 15
	PenaltyDuplicateTimes   = 10
	PenaltyIrregularSpacing = 10
	PenaltyNullValues       = 5
	PenaltyNegativeValues   = 10
	PenaltyDuplicateIDs     = 15
	PenaltyOutOfBounds      = 5
)

const (
	initialScore = 100

	// DefaultMinYear is the earliest plausible year in accident records
	DefaultMinYear = 2000

	minPlausibleVehicles = 1000000
	maxPlausibleVehicles = 10000000
)

// Required columns per kind. Headers are compared after trimming whitespace.
var schemas = map[Kind][]string{
	KindVehicles: {
		common.ColumnVehicleDistrict,
		common.ColumnVehicleTotal,
		common.ColumnVehicleCars,
	},
	KindAccidents: {
		common.ColumnAccidentYear,
		common.ColumnAccidentProvince,
		common.ColumnAccidentDistrict,
		common.ColumnAccidentCategory,
		common.ColumnAccidentCases,
	},
	KindHealthcare: {
		common.ColumnHealthYear,
		common.ColumnHealthHospitals,
		common.ColumnHealthDispensaries,
		common.ColumnHealthBeds,
	},
	KindEnergy: {
		common.ColumnTimestamp,
		common.ColumnTotalConsumption,
		common.ColumnResidential,
	},
	KindEmergency: {
		common.ColumnRequestID,
		common.ColumnTimestamp,
		common.ColumnServiceType,
		common.ColumnPriority,
		common.ColumnStatus,
	},
}

// RequiredColumns returns the schema of a kind
func RequiredColumns(kind Kind) []string {
	return append([]string(nil), schemas[kind]...)
}

// Validator scores datasets. It holds only configuration and can be reused.
type Validator struct {
	clock        clock.PassiveClock
	districtTerm string
	bounds       common.Bounds
	minYear      int
	interval     time.Duration
}

// Option customizes a Validator
type Option func(*Validator)

// WithClock sets the clock that decides the current year
func WithClock(clk clock.PassiveClock) Option {
	return func(v *Validator) {
		v.clock = clk
	}
}

// WithDistrictTerm sets the substring that selects district rows
func WithDistrictTerm(term string) Option {
	return func(v *Validator) {
		v.districtTerm = term
	}
}

// WithBounds sets the box emergency coordinates must fall in
func WithBounds(b common.Bounds) Option {
	return func(v *Validator) {
		v.bounds = b
	}
}

// WithMinYear sets the earliest accepted accident year
func WithMinYear(year int) Option {
	return func(v *Validator) {
		v.minYear = year
	}
}

// WithExpectedInterval sets the spacing energy readings should have
func WithExpectedInterval(d time.Duration) Option {
	return func(v *Validator) {
		v.interval = d
	}
}

// New creates a validator with Lahore defaults
func New(opts ...Option) *Validator {
	v := &Validator{
		clock:        clock.RealClock{},
		districtTerm: common.CityName,
		bounds:       common.DefaultBounds(),
		minYear:      DefaultMinYear,
		interval:     time.Hour,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate scores ds against the rules for kind. Data problems become issues
// on the report; an error is returned only when ds is nil or malformed.
func (v *Validator) Validate(kind Kind, ds *dataset.Dataset) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("validating %s: %w", kind, ErrNilDataset)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", kind, err)
	}

	report := &Report{
		DataType:     kind.String(),
		TotalRecords: ds.Len(),
		Issues:       []string{},
		Details:      []Issue{},
		QualityScore: initialScore,
	}

	switch kind {
	case KindVehicles:
		v.checkSchema(report, kind, ds)
		v.validateVehicles(report, ds)
	case KindAccidents:
		v.checkSchema(report, kind, ds)
		v.validateAccidents(report, ds)
	case KindHealthcare:
		v.checkSchema(report, kind, ds)
		v.validateHealthcare(report, ds)
	case KindEnergy:
		v.checkSchema(report, kind, ds)
		v.validateEnergy(report, ds)
	case KindEmergency:
		v.checkSchema(report, kind, ds)
		v.validateEmergency(report, ds)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	klog.V(3).InfoS("Validated dataset", "kind", kind, "records", report.TotalRecords,
		"score", report.QualityScore, "issues", len(report.Issues))
	return report, nil
}

func (v *Validator) checkSchema(report *Report, kind Kind, ds *dataset.Dataset) {
	var missing []string
	for _, col := range schemas[kind] {
		if _, ok := ds.ResolveColumn(col); !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		report.addIssue(IssueMissingColumn, PenaltyMissingColumns, "Missing columns: %s", quoteList(missing))
	}
}

func (v *Validator) currentYear() int {
	return v.clock.Now().Year()
}

// quoteList renders names as ['a', 'b']
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
