package domain

import "testing"

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		stage    string
		pipeline string
		want     string
	}{
		// Terminal markers in pipeline text win over everything else.
		{"contacted", "Contract signed last week", StageOnboarding},
		{"engaged", "sold via partner office", StageOnboarding},
		{"new", "verbal agreement reached", StageOnboarding},

		// Pipeline signal rules, in priority order.
		{"contacted", "warm, keeps asking about listings", StageEngaged},
		{"new", "nurturing track", StageEngaged},
		{"engaged", "went cold after viewing", StageNoResponse},
		{"contacted", "not ready to sell yet", StageNoResponse},
		{"new", "meeting planned for Tuesday", StageAppointmentProposed},
		{"contacted", "appointment requested", StageAppointmentProposed},

		// Canonical stage values stand when the pipeline is silent.
		{"engaged", "", StageEngaged},
		{"appointment_confirmed", "", StageAppointmentConfirmed},
		{"no_response", "", StageNoResponse},
		{"dormant", "", StageDormant},
		{"not_interested", "", StageNotInterested},

		// Legacy CRM values get normalized.
		{"", "", StageNew},
		{"New Lead", "", StageNew},
		{"Not set", "", StageNew},
		{"Contacted by phone", "", StageContacted},
		{"Qualified prospect", "", StageContacted},
		{"", "imported via spreadsheet", StageContacted},
	}

	for _, tc := range tests {
		got := ClassifyStage(tc.stage, tc.pipeline)
		if got != tc.want {
			t.Errorf("ClassifyStage(%q, %q) = %q, want %q", tc.stage, tc.pipeline, got, tc.want)
		}
	}
}

func TestClassifyStageIsDeterministic(t *testing.T) {
	first := ClassifyStage("Contacted by phone", "warm lead")
	for i := 0; i < 100; i++ {
		if got := ClassifyStage("Contacted by phone", "warm lead"); got != first {
			t.Fatalf("ClassifyStage not deterministic: got %q after %q", got, first)
		}
	}
}

func TestClassifyStageAlwaysReturnsKnownStage(t *testing.T) {
	inputs := []struct {
		stage    string
		pipeline string
	}{
		{"", ""},
		{"garbage", "more garbage"},
		{"ENGAGED", ""},
		{"contacted", "random annotation text"},
		{"🦆", "emoji only"},
	}
	for _, in := range inputs {
		got := ClassifyStage(in.stage, in.pipeline)
		if !IsKnownStage(got) {
			t.Errorf("ClassifyStage(%q, %q) = %q, not a known stage", in.stage, in.pipeline, got)
		}
	}
}

func TestAcceptAdvisedStage(t *testing.T) {
	tests := []struct {
		advised  string
		fallback string
		want     string
	}{
		{"engaged", "contacted", "engaged"},
		{" Engaged ", "contacted", "engaged"},
		{"appointment_proposed", "new", "appointment_proposed"},
		{"hot prospect", "contacted", "contacted"},
		{"", "new", "new"},
		{"closed_won", "engaged", "engaged"},
	}

	for _, tc := range tests {
		got := AcceptAdvisedStage(tc.advised, tc.fallback)
		if got != tc.want {
			t.Errorf("AcceptAdvisedStage(%q, %q) = %q, want %q", tc.advised, tc.fallback, got, tc.want)
		}
	}
}

func TestIsTerminalStage(t *testing.T) {
	for _, stage := range []string{StageOnboarding, StageNotInterested} {
		if !IsTerminalStage(stage) {
			t.Errorf("IsTerminalStage(%q) = false, want true", stage)
		}
	}
	for _, stage := range []string{StageNew, StageContacted, StageEngaged, StageAppointmentProposed, StageAppointmentConfirmed, StageNoResponse, StageDormant} {
		if IsTerminalStage(stage) {
			t.Errorf("IsTerminalStage(%q) = true, want false", stage)
		}
	}
}

func TestStageAfterSend(t *testing.T) {
	if got := StageAfterSend(StageNew); got != StageContacted {
		t.Errorf("StageAfterSend(new) = %q, want %q", got, StageContacted)
	}
	for _, stage := range []string{StageContacted, StageEngaged, StageNoResponse, StageAppointmentProposed} {
		if got := StageAfterSend(stage); got != stage {
			t.Errorf("StageAfterSend(%q) = %q, want unchanged", stage, got)
		}
	}
}
