package playbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load embedded defaults: %v", err)
	}

	for _, purpose := range []string{"welcome", "followup", "reengage"} {
		msg := p.OutboundMessage(purpose, "Jan")
		if msg == "" {
			t.Errorf("OutboundMessage(%q) is empty", purpose)
		}
		if !strings.Contains(msg, "Jan") {
			t.Errorf("OutboundMessage(%q) does not address the lead by name: %q", purpose, msg)
		}
		if strings.Contains(msg, "{naam}") {
			t.Errorf("OutboundMessage(%q) left placeholder unrendered", purpose)
		}
	}
}

func TestOutboundMessageUnknownPurposeFallsBackToFollowup(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := p.OutboundMessage("onboarding_party", "Jan")
	want := p.OutboundMessage("followup", "Jan")
	if got != want {
		t.Errorf("unknown purpose = %q, want followup text", got)
	}
}

func TestRenderWithoutName(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	msg := p.Farewell("  ")
	if strings.Contains(msg, "{naam}") {
		t.Errorf("placeholder survived empty name: %q", msg)
	}
	if !strings.Contains(msg, "geïnteresseerde") {
		t.Errorf("expected neutral salutation, got %q", msg)
	}
}

func TestObjectionAnswer(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	budget := p.ObjectionAnswer("objection_budget", "Jan")
	if !strings.Contains(budget, "budget") {
		t.Errorf("budget objection answer misses the topic: %q", budget)
	}
	area := p.ObjectionAnswer("objection_area", "Jan")
	if !strings.Contains(area, "buurt") {
		t.Errorf("area objection answer misses the topic: %q", area)
	}

	// Unmapped objections fall back to the generic answer.
	generic := p.ObjectionAnswer("objection_parking", "Jan")
	if generic != p.AnswerFallback("Jan") {
		t.Errorf("unmapped objection = %q, want generic fallback", generic)
	}
}

func TestSlotProposalListsAllSlots(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) // a Monday
	slots := []time.Time{
		base.AddDate(0, 0, 1).Add(10 * time.Hour),
		base.AddDate(0, 0, 2).Add(14 * time.Hour),
		base.AddDate(0, 0, 3).Add(11 * time.Hour),
	}

	msg := p.SlotProposal("Jan", slots, time.UTC)
	if got := strings.Count(msg, "- "); got != 3 {
		t.Fatalf("proposal lists %d slots, want 3:\n%s", got, msg)
	}
	for _, want := range []string{"dinsdag 11-03 om 10:00", "woensdag 12-03 om 14:00", "donderdag 13-03 om 11:00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("proposal misses slot %q:\n%s", want, msg)
		}
	}
}

func TestLoadOverlayKeepsDefaultsForAbsentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	override := "outbound:\n  welcome: \"Hallo {naam}!\"\n"
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load with override: %v", err)
	}

	if got := p.OutboundMessage("welcome", "Jan"); got != "Hallo Jan!" {
		t.Errorf("override not applied: %q", got)
	}
	if got := p.OutboundMessage("reengage", "Jan"); !strings.Contains(got, "nieuw aanbod") {
		t.Errorf("default reengage text lost after overlay: %q", got)
	}
}

func TestLoadRejectsBrokenOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("outbound: [not: a: map"), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for broken override file")
	}
}
