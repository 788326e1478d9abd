package labels

import "testing"

func TestByID(t *testing.T) {
	l, ok := ByID(17)
	if !ok {
		t.Fatalf("label 17 missing")
	}
	if l.Name != "left hippocampus" || l.Hemisphere != "left" {
		t.Fatalf("unexpected label: %+v", l)
	}

	if _, ok := ByID(9999); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestByNameNormalization(t *testing.T) {
	tests := []struct {
		in   string
		id   int
		ok   bool
	}{
		{"left hippocampus", 17, true},
		{"Left_Hippocampus", 17, true},
		{"BRAIN-STEM", 16, true},
		{"  right cerebral  white matter ", 41, true},
		{"total intracranial", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		l, ok := ByName(tt.in)
		if ok != tt.ok {
			t.Fatalf("ByName(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && l.ID != tt.id {
			t.Fatalf("ByName(%q) id = %d, want %d", tt.in, l.ID, tt.id)
		}
		if !ok && (l.ID != 0 || l.Name != "") {
			t.Fatalf("ByName(%q) should return zero label, got %+v", tt.in, l)
		}
	}
}

func TestTableShape(t *testing.T) {
	labels := All()
	if len(labels) != 33 {
		t.Fatalf("expected 33 labels, got %d", len(labels))
	}

	left, right := 0, 0
	for _, l := range labels {
		switch l.Hemisphere {
		case "left":
			left++
		case "right":
			right++
		case "none":
		default:
			t.Fatalf("label %d has invalid hemisphere %q", l.ID, l.Hemisphere)
		}
		if l.Class == "" {
			t.Fatalf("label %d has no class", l.ID)
		}
	}
	if left != right {
		t.Fatalf("hemisphere counts differ: left=%d right=%d", left, right)
	}
}

func TestClasses(t *testing.T) {
	classes := Classes()
	if len(classes) == 0 {
		t.Fatalf("no classes")
	}
	seen := make(map[string]bool)
	for _, c := range classes {
		if seen[c] {
			t.Fatalf("duplicate class %q", c)
		}
		seen[c] = true
	}
	for _, want := range []string{"white matter", "cortex", "csf", "cerebellum", "brainstem"} {
		if !seen[want] {
			t.Fatalf("missing class %q", want)
		}
	}
}
