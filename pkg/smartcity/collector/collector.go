package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/weather"
)

// Result holds everything gathered from real sources in one pass
type Result struct {
	Datasets  map[string]*dataset.Dataset `json:"-"`
	Weather   *weather.Reading            `json:"weather,omitempty"`
	Status    map[string]bool             `json:"status"`
	Timestamp time.Time                   `json:"collection_timestamp"`
}

// Collector loads the government datasets and narrows them to one district
type Collector struct {
	sources      config.SourcesConfig
	districtTerm string
	latitude     float64
	longitude    float64
	weather      weather.Fetcher
	clock        clock.PassiveClock
}

// Option customizes a Collector
type Option func(*Collector)

// WithWeather enables weather collection through fetcher
func WithWeather(fetcher weather.Fetcher) Option {
	return func(c *Collector) {
		c.weather = fetcher
	}
}

// WithClock sets the clock used for the collection timestamp
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Collector) {
		c.clock = clk
	}
}

// New creates a collector for the sources and city in cfg
func New(cfg *config.Config, opts ...Option) *Collector {
	c := &Collector{
		sources:      cfg.Sources,
		districtTerm: cfg.Validation.DistrictTerm,
		latitude:     cfg.City.Latitude,
		longitude:    cfg.City.Longitude,
		clock:        clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect loads every source. A failing source is recorded as false in
// Status and its error joins the returned aggregate; the other sources are
// still collected, so the Result is usable even when err is non-nil.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	result := &Result{
		Datasets:  make(map[string]*dataset.Dataset),
		Status:    make(map[string]bool),
		Timestamp: c.clock.Now(),
	}
	var errs []error

	loaders := []struct {
		name string
		load func() (*dataset.Dataset, error)
	}{
		{common.DatasetVehicles, c.Vehicles},
		{common.DatasetAccidents, c.Accidents},
		{common.DatasetHealthcare, c.Healthcare},
	}
	for _, l := range loaders {
		ds, err := l.load()
		if err != nil {
			klog.ErrorS(err, "Failed to collect dataset", "dataset", l.name)
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
			result.Status[l.name] = false
			continue
		}
		result.Datasets[l.name] = ds
		result.Status[l.name] = true
		klog.V(2).InfoS("Collected dataset", "dataset", l.name, "records", ds.Len())
	}

	result.Status[common.DatasetWeather] = false
	if c.weather != nil {
		reading, err := c.weather.Current(ctx, c.latitude, c.longitude)
		if err != nil {
			klog.ErrorS(err, "Failed to collect weather")
			errs = append(errs, fmt.Errorf("%s: %w", common.DatasetWeather, err))
		} else {
			result.Weather = reading
			result.Status[common.DatasetWeather] = true
		}
	}

	klog.InfoS("Collection finished", "datasets", len(result.Datasets), "failures", len(errs))
	return result, utilerrors.NewAggregate(errs)
}

// Vehicles loads registrations, keeps district rows and cleans every
// category column to a number (unparseable cells become 0)
func (c *Collector) Vehicles() (*dataset.Dataset, error) {
	ds, err := c.read(c.sources.Vehicles, "")
	if err != nil {
		return nil, err
	}
	if !ds.HasColumn(common.ColumnVehicleDistrict) {
		return nil, fmt.Errorf("missing column %q", common.ColumnVehicleDistrict)
	}

	district := ds.FilterContains(common.ColumnVehicleDistrict, c.districtTerm)
	return mapCells(district, func(col string, v any) any {
		if col == common.ColumnVehicleDistrict {
			return v
		}
		return common.CleanNumericOr(v, 0)
	}), nil
}

// Accidents loads district accident counts from a workbook or CSV. Year and
// case columns become numbers, or nil when unparseable.
func (c *Collector) Accidents() (*dataset.Dataset, error) {
	ds, err := c.read(c.sources.Accidents, c.sources.AccidentsSheet)
	if err != nil {
		return nil, err
	}
	if !ds.HasColumn(common.ColumnAccidentDistrict) {
		return nil, fmt.Errorf("missing column %q", common.ColumnAccidentDistrict)
	}

	district := ds.FilterContains(common.ColumnAccidentDistrict, c.districtTerm)
	return mapCells(district, func(col string, v any) any {
		if col != common.ColumnAccidentYear && col != common.ColumnAccidentCases {
			return v
		}
		if n, ok := common.ParseNumber(v); ok {
			return n
		}
		return nil
	}), nil
}

// Healthcare loads national facility counts; every column except Year is
// cleaned to a number
func (c *Collector) Healthcare() (*dataset.Dataset, error) {
	ds, err := c.read(c.sources.Healthcare, "")
	if err != nil {
		return nil, err
	}

	return mapCells(ds, func(col string, v any) any {
		if col == common.ColumnHealthYear {
			if n, ok := common.ParseNumber(v); ok {
				return n
			}
			return v
		}
		return common.CleanNumericOr(v, 0)
	}), nil
}

// read loads a CSV or workbook by extension and trims its headers
func (c *Collector) read(name, sheet string) (*dataset.Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("no source configured")
	}
	path := c.sources.SourcePath(name)

	var (
		ds  *dataset.Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		ds, err = dataset.ReadXLSXFile(path, sheet)
	default:
		ds, err = dataset.ReadCSVFile(path)
	}
	if err != nil {
		return nil, err
	}
	return ds.TrimHeaders(), nil
}

// mapCells returns a copy of ds with every cell passed through fn
func mapCells(ds *dataset.Dataset, fn func(col string, v any) any) *dataset.Dataset {
	out := dataset.New(ds.Columns...)
	for _, row := range ds.Rows {
		mapped := make(dataset.Row, len(row))
		for col, v := range row {
			mapped[col] = fn(col, v)
		}
		out.Rows = append(out.Rows, mapped)
	}
	return out
}
