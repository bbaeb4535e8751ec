package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hallo daar", "hallo daar"},
		{"tags removed", "<p>hallo <b>daar</b></p>", "hallo daar"},
		{"entities decoded", "a &amp; b", "a & b"},
		{"encoded tag stripped after decode", "&lt;script&gt;x&lt;/script&gt;", "x"},
		{"surrounding whitespace trimmed", "  <div>ok</div>  ", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBytes int
		want     string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"exact limit", "abcd", 4, "abcd"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"cut lands inside two-byte rune", "café", 4, "caf"},
		{"cut lands inside euro sign", "ab€cd", 4, "ab"},
		{"multibyte kept when it fits", "ab€cd", 5, "ab€"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.maxBytes)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxBytes, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateRunes(%q, %d) produced invalid UTF-8 %q", tt.input, tt.maxBytes, got)
			}
		})
	}
}

func TestInboundMessageCapsOnRuneBoundary(t *testing.T) {
	// 3-byte runes; an 8-byte cap falls mid-rune after two of them.
	body := strings.Repeat("€", 5)
	got := InboundMessage(body, 8)
	if !utf8.ValidString(got) {
		t.Fatalf("InboundMessage produced invalid UTF-8 %q", got)
	}
	if got != "€€" {
		t.Errorf("InboundMessage cap = %q, want %q", got, "€€")
	}
	if InboundMessage("kort bericht", 100) != "kort bericht" {
		t.Error("short message must pass through unchanged")
	}
	if InboundMessage("<b>hallo</b>", 0) != "hallo" {
		t.Error("zero cap must disable truncation, not empty the message")
	}
}
