package validation

import (
	"sort"

	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
)

// ValidateAll validates every dataset whose name maps to a kind. Unknown
// names and nil or empty datasets are skipped; malformed datasets are listed
// under Failed. OverallQuality is the mean score of the validated datasets,
// or 100 when none were validated.
func (v *Validator) ValidateAll(datasets map[string]*dataset.Dataset) *Overall {
	overall := &Overall{
		Timestamp:      v.clock.Now(),
		OverallQuality: initialScore,
		Datasets:       make(map[string]*Report),
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		ds := datasets[name]
		kind, err := ParseKind(name)
		if err != nil {
			klog.V(2).InfoS("Skipping dataset without validator", "dataset", name)
			continue
		}
		if ds.Empty() {
			klog.V(2).InfoS("Skipping empty dataset", "dataset", name)
			continue
		}

		report, err := v.Validate(kind, ds)
		if err != nil {
			klog.ErrorS(err, "Dataset validation failed", "dataset", name)
			if overall.Failed == nil {
				overall.Failed = make(map[string]string)
			}
			overall.Failed[name] = err.Error()
			continue
		}

		overall.Datasets[name] = report
		overall.Summary.TotalIssues += len(report.Issues)
		total += report.QualityScore
	}

	overall.Summary.DatasetsValidated = len(overall.Datasets)
	if n := overall.Summary.DatasetsValidated; n > 0 {
		overall.OverallQuality = float64(total) / float64(n)
	}
	overall.Summary.AverageQualityScore = overall.OverallQuality
	overall.Summary.QualityStatus = Status(overall.OverallQuality)

	klog.InfoS("Validation complete",
		"datasets", overall.Summary.DatasetsValidated,
		"failed", len(overall.Failed),
		"overallQuality", overall.OverallQuality,
		"status", overall.Summary.QualityStatus)
	return overall
}
