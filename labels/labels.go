// Package labels carries the SynthSeg v1 output label table: FreeSurfer ID,
// anatomical name, hemisphere, and tissue class for every segment the predict
// script emits.
package labels

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var rawTable []byte

// Label describes one SynthSeg output segment.
type Label struct {
	ID         int    `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Hemisphere string `yaml:"hemisphere" json:"hemisphere"`
	Class      string `yaml:"class" json:"class"`
}

var (
	all    []Label
	byID   map[int]Label
	byName map[string]Label
)

func init() {
	var table struct {
		Labels []Label `yaml:"labels"`
	}
	if err := yaml.Unmarshal(rawTable, &table); err != nil {
		panic(fmt.Sprintf("labels: embedded table is invalid: %v", err))
	}
	all = table.Labels
	byID = make(map[int]Label, len(all))
	byName = make(map[string]Label, len(all))
	for _, l := range all {
		byID[l.ID] = l
		byName[normalize(l.Name)] = l
	}
}

// All returns every label in table order.
func All() []Label {
	out := make([]Label, len(all))
	copy(out, all)
	return out
}

// ByID looks up a label by its FreeSurfer ID.
func ByID(id int) (Label, bool) {
	l, ok := byID[id]
	return l, ok
}

// ByName looks up a label by name as it appears in a volumes CSV header.
// Case, underscores, and hyphens are ignored. Unknown names return a zero
// Label and false.
func ByName(name string) (Label, bool) {
	l, ok := byName[normalize(name)]
	return l, ok
}

// Classes returns the distinct tissue classes, sorted.
func Classes() []string {
	seen := make(map[string]bool)
	for _, l := range all {
		seen[l.Class] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
