package database

import (
	"errors"
	"testing"
)

func TestClassifySQLiteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		busy   bool
		locked bool
	}{
		{"busy", errors.New("SQLITE_BUSY: database is locked"), true, false},
		{"locked", errors.New("SQLITE_LOCKED: database table is locked"), false, true},
		{"unrelated", errors.New("UNIQUE constraint failed: runs.id"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy, locked := classifySQLiteError(tt.err)
			if busy != tt.busy || locked != tt.locked {
				t.Fatalf("busy=%v locked=%v, want busy=%v locked=%v", busy, locked, tt.busy, tt.locked)
			}
		})
	}
}
