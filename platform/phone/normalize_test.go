package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dutch mobile national", "0612345678", "+31612345678"},
		{"dutch mobile with spaces", " 06 12 34 56 78 ", "+31612345678"},
		{"already e164", "+31612345678", "+31612345678"},
		{"international prefix", "0031612345678", "+31612345678"},
		{"foreign number keeps country", "+4915123456789", "+4915123456789"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"unparseable returns trimmed input", " not-a-number ", "not-a-number"},
		{"too short returns trimmed input", "061", "061"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeE164(tt.input); got != tt.want {
				t.Errorf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"dutch mobile national", "0612345678", true},
		{"dutch mobile e164", "+31612345678", true},
		{"empty", "", false},
		{"whitespace only", "  ", false},
		{"garbage", "not9a9number", false},
		{"too short", "061", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.input); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
