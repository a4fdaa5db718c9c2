package locker

import (
	"reflect"
	"testing"
)

func TestParseDoorRef(t *testing.T) {
	tests := []struct {
		raw        string
		wantBase   string
		wantSuffix string
	}{
		{"F1A", "F1", "A"},
		{"F1B", "F1", "B"},
		{"F1", "F1", ""},
		{"F1-2", "F1", ""}, // controller hostname form
		{"M2-1", "M2", ""},
		{"  F1A  ", "F1", "A"},
		{"gym-east-12A", "gym-east-12", "A"},
		{"gym-east-12", "gym-east", ""},
		{"A", "A", ""}, // single character is a bare base, not a suffix
		{"", "", ""},
	}

	for _, tt := range tests {
		ref := ParseDoorRef(tt.raw)
		if ref.Base != tt.wantBase || ref.Suffix != tt.wantSuffix {
			t.Errorf("ParseDoorRef(%q) = {Base: %q, Suffix: %q}, want {Base: %q, Suffix: %q}",
				tt.raw, ref.Base, ref.Suffix, tt.wantBase, tt.wantSuffix)
		}
	}
}

func TestDoorRefMatches(t *testing.T) {
	tests := []struct {
		door   string
		locker string
		want   bool
	}{
		{"F1A", "F1A", true},
		{"F1A", "F1B", false},
		{"F1", "F1A", true},
		{"F1", "F1B", true},
		{"F1-2", "F1A", true}, // hostname-form door matches both compartments
		{"F1-2", "F1B", true},
		{"F1", "M2A", false},
		{"F1A", "F1", false},
		{"", "F1A", false},
	}

	for _, tt := range tests {
		if got := ParseDoorRef(tt.door).Matches(tt.locker); got != tt.want {
			t.Errorf("ParseDoorRef(%q).Matches(%q) = %v, want %v", tt.door, tt.locker, got, tt.want)
		}
	}
}

func TestDoorRefSameBank(t *testing.T) {
	tests := []struct {
		door   string
		locker string
		want   bool
	}{
		{"F1A", "F1B", true},
		{"F1B", "F1A", true},
		{"F1", "F1A", true},
		{"F1-2", "F1A", true},
		{"F1A", "M2A", false},
		{"M2-1", "F1A", false},
		{"", "F1A", false},
	}

	for _, tt := range tests {
		if got := ParseDoorRef(tt.door).SameBank(tt.locker); got != tt.want {
			t.Errorf("ParseDoorRef(%q).SameBank(%q) = %v, want %v", tt.door, tt.locker, got, tt.want)
		}
	}
}

func TestBankLockerNames(t *testing.T) {
	tests := []struct {
		base      string
		lockCount int
		want      []string
	}{
		{"F1", 2, []string{"F1A", "F1B"}},
		{"F1", 1, []string{"F1A"}},
		{"F1", 0, []string{"F1A"}},
		{"F1", 5, []string{"F1A", "F1B"}}, // clamped to two
	}

	for _, tt := range tests {
		if got := BankLockerNames(tt.base, tt.lockCount); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("BankLockerNames(%q, %d) = %v, want %v", tt.base, tt.lockCount, got, tt.want)
		}
	}
}
