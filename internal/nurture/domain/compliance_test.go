package domain

import (
	"testing"
	"time"
)

func defaultQuietHours() QuietHours {
	return QuietHours{Enabled: true, StartHour: 21, EndHour: 9, Location: time.UTC}
}

func TestQuietHoursContains(t *testing.T) {
	q := defaultQuietHours()

	tests := []struct {
		hour int
		want bool
	}{
		{20, false},
		{21, true},
		{23, true},
		{0, true},
		{8, true},
		{9, false},
		{12, false},
	}

	for _, tc := range tests {
		now := time.Date(2025, 3, 10, tc.hour, 30, 0, 0, time.UTC)
		if got := q.Contains(now); got != tc.want {
			t.Errorf("Contains(%02d:30) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestQuietHoursDisabled(t *testing.T) {
	q := defaultQuietHours()
	q.Enabled = false
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	if q.Contains(now) {
		t.Error("disabled quiet hours should never contain any time")
	}
}

func TestQuietHoursEmptyWindow(t *testing.T) {
	q := QuietHours{Enabled: true, StartHour: 9, EndHour: 9, Location: time.UTC}
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if q.Contains(now) {
		t.Error("zero-width window should never contain any time")
	}
}

func TestQuietHoursNonWrappingWindow(t *testing.T) {
	q := QuietHours{Enabled: true, StartHour: 12, EndHour: 14, Location: time.UTC}
	if !q.Contains(time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)) {
		t.Error("13:00 should fall inside a 12-14 window")
	}
	if q.Contains(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)) {
		t.Error("11:00 should fall outside a 12-14 window")
	}
}

func TestQuietHoursNextAllowed(t *testing.T) {
	q := defaultQuietHours()

	// Evening: resume next morning.
	evening := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if got := q.NextAllowed(evening); !got.Equal(want) {
		t.Errorf("NextAllowed(22:00) = %v, want %v", got, want)
	}

	// Early morning: resume the same day.
	morning := time.Date(2025, 3, 10, 7, 15, 0, 0, time.UTC)
	want = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if got := q.NextAllowed(morning); !got.Equal(want) {
		t.Errorf("NextAllowed(07:15) = %v, want %v", got, want)
	}
}

func TestQuietHoursHonorLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	q := QuietHours{Enabled: true, StartHour: 21, EndHour: 9, Location: loc}

	// 23:00 UTC is 01:00 local, well inside the window.
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	if !q.Contains(now) {
		t.Fatal("23:00 UTC should be inside quiet hours for UTC+2")
	}
	got := q.NextAllowed(now)
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextAllowed = %v, want %v (09:00 local)", got, want)
	}
}

func TestCheckGateBlocksWithoutConsent(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	q := defaultQuietHours()

	tests := []struct {
		channel string
		email   string
		phone   string
	}{
		{ChannelEmail, "", "+31612345678"},
		{ChannelSMS, "jan@example.com", ""},
		{ChannelSMS, "jan@example.com", "12345"},
		{ChannelWhatsApp, "jan@example.com", ""},
		{"postduif", "jan@example.com", "+31612345678"},
	}

	for _, tc := range tests {
		got := CheckGate(tc.channel, tc.email, tc.phone, now, q)
		if got.Outcome != GateBlocked {
			t.Errorf("CheckGate(%q, %q, %q) = %v, want blocked", tc.channel, tc.email, tc.phone, got.Outcome)
		}
		if got.Reason == "" {
			t.Errorf("CheckGate(%q, ...) blocked without a reason", tc.channel)
		}
	}
}

func TestCheckGateDefersInQuietHours(t *testing.T) {
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	got := CheckGate(ChannelEmail, "jan@example.com", "", now, defaultQuietHours())

	if got.Outcome != GateDeferred {
		t.Fatalf("CheckGate at 22:00 = %v, want deferred", got.Outcome)
	}
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !got.ResumeAt.Equal(want) {
		t.Errorf("ResumeAt = %v, want %v", got.ResumeAt, want)
	}
}

func TestCheckGateAllowsDaytimeContact(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	got := CheckGate(ChannelSMS, "", "+31612345678", now, defaultQuietHours())
	if got.Outcome != GateAllowed {
		t.Fatalf("CheckGate daytime with valid phone = %v, want allowed", got.Outcome)
	}
}

func TestCheckGateConsentBeatsQuietHours(t *testing.T) {
	// A blocked channel stays blocked regardless of the hour: there is
	// nothing to defer to.
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	got := CheckGate(ChannelEmail, "", "", now, defaultQuietHours())
	if got.Outcome != GateBlocked {
		t.Errorf("CheckGate without consent at 22:00 = %v, want blocked", got.Outcome)
	}
}
