package report

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"segbridge/labels"
)

// VolumeStats summarizes one subject row of a volumes table. Overall
// statistics cover every numeric cell; ByClass totals only cells whose header
// matches a known label.
type VolumeStats struct {
	Subject string             `json:"subject"`
	Regions int                `json:"regions"`
	Total   float64            `json:"total_volume"`
	Mean    float64            `json:"mean"`
	StdDev  float64            `json:"std_dev"`
	Min     float64            `json:"min"`
	Max     float64            `json:"max"`
	ByClass map[string]float64 `json:"by_class"`
}

// Summarize computes statistics for one data row against its header.
func Summarize(header []string, row []string) *VolumeStats {
	stats := &VolumeStats{ByClass: make(map[string]float64)}

	var values []float64
	for i, cell := range row {
		if i >= len(header) {
			break
		}
		name := header[i]
		if i == 0 && strings.EqualFold(strings.TrimSpace(name), "subject") {
			stats.Subject = cell
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			continue
		}
		values = append(values, value)
		if label, ok := labels.ByName(name); ok {
			stats.ByClass[label.Class] += value
		}
	}

	stats.Regions = len(values)
	if len(values) == 0 {
		return stats
	}
	stats.Total = floats.Sum(values)
	stats.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		stats.StdDev = stat.StdDev(values, nil)
	}
	stats.Min = floats.Min(values)
	stats.Max = floats.Max(values)
	return stats
}

// SummarizeRegions computes the same statistics from already-parsed region
// volumes.
func SummarizeRegions(subject string, regions []RegionVolume) *VolumeStats {
	stats := &VolumeStats{Subject: subject, ByClass: make(map[string]float64)}

	values := make([]float64, 0, len(regions))
	for _, r := range regions {
		values = append(values, r.Volume)
		if r.Known {
			stats.ByClass[r.Label.Class] += r.Volume
		}
	}

	stats.Regions = len(values)
	if len(values) == 0 {
		return stats
	}
	stats.Total = floats.Sum(values)
	stats.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		stats.StdDev = stat.StdDev(values, nil)
	}
	stats.Min = floats.Min(values)
	stats.Max = floats.Max(values)
	return stats
}

// classColumns returns the tissue classes in a stable order for the summary
// sheet, background excluded since the volumes CSV never reports it.
func classColumns() []string {
	classes := labels.Classes()
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if c != "background" {
			out = append(out, c)
		}
	}
	return out
}
