package domain

import (
	"testing"
	"time"
)

func TestNextDueTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		stage        string
		contactCount int
		want         time.Duration
	}{
		{StageNew, 0, 2 * time.Hour},
		{StageNew, 7, 2 * time.Hour},

		// Contacted ladder widens as attempts pile up.
		{StageContacted, 0, 48 * time.Hour},
		{StageContacted, 1, 48 * time.Hour},
		{StageContacted, 2, 120 * time.Hour},
		{StageContacted, 3, 216 * time.Hour},
		{StageContacted, 4, 168 * time.Hour},
		{StageContacted, 5, 168 * time.Hour},
		{StageContacted, 6, 336 * time.Hour},
		{StageContacted, 12, 336 * time.Hour},

		{StageEngaged, 0, 72 * time.Hour},
		{StageEngaged, 9, 72 * time.Hour},

		{StageAppointmentProposed, 2, 24 * time.Hour},
		{StageAppointmentConfirmed, 2, 24 * time.Hour},

		{StageNoResponse, 0, 14 * 24 * time.Hour},
		{StageNoResponse, 4, 14 * 24 * time.Hour},
		{StageNoResponse, 5, 30 * 24 * time.Hour},
		{StageNoResponse, 11, 30 * 24 * time.Hour},

		{StageDormant, 3, 30 * 24 * time.Hour},

		// Unknown stages fall back to a weekly check.
		{"something_else", 0, 7 * 24 * time.Hour},
	}

	for _, tc := range tests {
		got := NextDue(tc.stage, tc.contactCount, now)
		if got == nil {
			t.Errorf("NextDue(%q, %d) = nil, want %v offset", tc.stage, tc.contactCount, tc.want)
			continue
		}
		if want := now.Add(tc.want); !got.Equal(want) {
			t.Errorf("NextDue(%q, %d) = %v, want %v", tc.stage, tc.contactCount, *got, want)
		}
	}
}

func TestNextDueTerminalStagesReturnNil(t *testing.T) {
	now := time.Now()
	for _, stage := range []string{StageOnboarding, StageNotInterested} {
		for _, count := range []int{0, 1, 5, 20} {
			if got := NextDue(stage, count, now); got != nil {
				t.Errorf("NextDue(%q, %d) = %v, want nil", stage, count, *got)
			}
		}
	}
}
