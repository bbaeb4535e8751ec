package domain

import (
	"strings"
	"testing"
)

func TestRouteIntent(t *testing.T) {
	tests := []struct {
		intent   string
		newStage string
		reply    string
		escalate bool
		ignore   bool
	}{
		{IntentSpam, "", ReplyNone, false, true},
		{IntentNotInterested, StageNotInterested, ReplyFarewell, false, false},
		{IntentBook, StageAppointmentProposed, ReplySlots, false, false},
		{IntentReschedule, StageAppointmentProposed, ReplySlots, false, false},
		{IntentQuestions, StageEngaged, ReplyAnswer, false, false},
		{IntentObjectionBudget, StageEngaged, ReplyAnswer, false, false},
		{IntentObjectionArea, StageEngaged, ReplyAnswer, false, false},
		{IntentLater, StageNoResponse, ReplyReassurance, false, false},

		// Anything unrecognized goes to a human, silently.
		{IntentUnknown, StageEngaged, ReplyNone, true, false},
		{"complaint", StageEngaged, ReplyNone, true, false},
		{"", StageEngaged, ReplyNone, true, false},
	}

	for _, tc := range tests {
		got := RouteIntent(tc.intent)
		if got.NewStage != tc.newStage || got.Reply != tc.reply || got.Escalate != tc.escalate || got.Ignore != tc.ignore {
			t.Errorf("RouteIntent(%q) = %+v, want stage=%q reply=%q escalate=%v ignore=%v",
				tc.intent, got, tc.newStage, tc.reply, tc.escalate, tc.ignore)
		}
	}
}

func TestRouteIntentNotInterestedIsTerminal(t *testing.T) {
	route := RouteIntent(IntentNotInterested)
	if !IsTerminalStage(route.NewStage) {
		t.Fatalf("not_interested must route to a terminal stage, got %q", route.NewStage)
	}
}

func TestNormalizeIntent(t *testing.T) {
	for _, intent := range []string{IntentBook, IntentReschedule, IntentNotInterested, IntentQuestions, IntentObjectionBudget, IntentObjectionArea, IntentLater, IntentSpam} {
		if got := NormalizeIntent(intent); got != intent {
			t.Errorf("NormalizeIntent(%q) = %q, want identity", intent, got)
		}
	}
	for _, raw := range []string{"BOOK", " book ", "Not_Interested"} {
		want := strings.ToLower(strings.TrimSpace(raw))
		if got := NormalizeIntent(raw); got != want {
			t.Errorf("NormalizeIntent(%q) = %q, want %q", raw, got, want)
		}
	}
	for _, raw := range []string{"", "interested", "unsubscribe"} {
		if got := NormalizeIntent(raw); got != IntentUnknown {
			t.Errorf("NormalizeIntent(%q) = %q, want %q", raw, got, IntentUnknown)
		}
	}
}

func TestMessagePurpose(t *testing.T) {
	tests := []struct {
		stage string
		want  string
	}{
		{StageNew, PurposeWelcome},
		{StageContacted, PurposeFollowup},
		{StageEngaged, PurposeFollowup},
		{StageAppointmentProposed, PurposeFollowup},
		{StageAppointmentConfirmed, PurposeFollowup},
		{StageNoResponse, PurposeReengage},
		{StageDormant, PurposeReengage},
	}

	for _, tc := range tests {
		if got := MessagePurpose(tc.stage); got != tc.want {
			t.Errorf("MessagePurpose(%q) = %q, want %q", tc.stage, got, tc.want)
		}
	}
}
