package report

import (
	"fmt"
	"strconv"
	"strings"

	"segbridge/labels"
)

// RegionVolume pairs one volumes-CSV column with its parsed value and, when
// the column matches the label table, its anatomical metadata.
type RegionVolume struct {
	Column string       `json:"column"`
	Volume float64      `json:"volume_mm3"`
	Label  labels.Label `json:"label"`
	Known  bool         `json:"known"`
}

// ParseVolumesCSV reads the first subject row of a volumes CSV and returns
// the subject identifier with its per-region volumes. Non-numeric cells are
// skipped; unknown columns are kept with a zero label.
func ParseVolumesCSV(path string) (string, []RegionVolume, error) {
	records, err := readCSV(path)
	if err != nil {
		return "", nil, err
	}
	if len(records) < 2 {
		return "", nil, fmt.Errorf("%s has no data rows", path)
	}

	header, row := records[0], records[1]
	subject := ""
	start := 0
	if strings.EqualFold(strings.TrimSpace(header[0]), "subject") {
		if len(row) > 0 {
			subject = row[0]
		}
		start = 1
	}

	regions := make([]RegionVolume, 0, len(header))
	for i := start; i < len(header) && i < len(row); i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			continue
		}
		label, known := labels.ByName(header[i])
		regions = append(regions, RegionVolume{
			Column: header[i],
			Volume: value,
			Label:  label,
			Known:  known,
		})
	}
	return subject, regions, nil
}
