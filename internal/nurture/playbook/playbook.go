// Package playbook holds the deterministic message templates the nurture
// engine falls back to when the AI composer is unavailable, plus the
// canned auto-replies for inbound routing. Templates ship embedded and
// can be overridden per deployment with a YAML file.
package playbook

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed playbook.yaml
var defaultPlaybook []byte

// placeholderName is the only substitution templates support. Keeping the
// convention this simple means a marketing edit can never break parsing.
const placeholderName = "{naam}"

const fallbackSalutation = "geïnteresseerde"

type replies struct {
	Farewell       string `yaml:"farewell"`
	Reassurance    string `yaml:"reassurance"`
	SlotsIntro     string `yaml:"slots_intro"`
	SlotsOutro     string `yaml:"slots_outro"`
	AnswerFallback string `yaml:"answer_fallback"`
}

// Playbook is the full template set. Outbound is keyed by message
// purpose, Objections by inbound intent.
type Playbook struct {
	Outbound   map[string]string `yaml:"outbound"`
	Replies    replies           `yaml:"replies"`
	Objections map[string]string `yaml:"objections"`
}

// Load parses the embedded defaults and, when path is non-empty, overlays
// the YAML file at path on top. Keys absent from the override keep their
// default text.
func Load(path string) (*Playbook, error) {
	var p Playbook
	if err := yaml.Unmarshal(defaultPlaybook, &p); err != nil {
		return nil, fmt.Errorf("parse embedded playbook: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read playbook override %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse playbook override %s: %w", path, err)
		}
	}

	return &p, nil
}

// OutboundMessage returns the fallback text for a message purpose. An
// unknown purpose gets the followup text so composition never comes back
// empty.
func (p *Playbook) OutboundMessage(purpose, name string) string {
	tmpl, ok := p.Outbound[purpose]
	if !ok {
		tmpl = p.Outbound["followup"]
	}
	return render(tmpl, name)
}

// Farewell is the opt-out confirmation for a lead that is not interested.
func (p *Playbook) Farewell(name string) string {
	return render(p.Replies.Farewell, name)
}

// Reassurance answers a "maybe later" with a promise to check back.
func (p *Playbook) Reassurance(name string) string {
	return render(p.Replies.Reassurance, name)
}

// ObjectionAnswer returns the canned answer for an objection intent,
// falling back to the generic answer when no specific template exists.
func (p *Playbook) ObjectionAnswer(intent, name string) string {
	if tmpl, ok := p.Objections[intent]; ok {
		return render(tmpl, name)
	}
	return p.AnswerFallback(name)
}

// AnswerFallback is the generic "we will get back to you" reply.
func (p *Playbook) AnswerFallback(name string) string {
	return render(p.Replies.AnswerFallback, name)
}

// SlotProposal builds the viewing invitation listing the proposed slots,
// one per line, in the given location's wall clock.
func (p *Playbook) SlotProposal(name string, slots []time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(render(p.Replies.SlotsIntro, name))
	b.WriteString("\n")
	for _, slot := range slots {
		b.WriteString("- ")
		b.WriteString(FormatSlot(slot, loc))
		b.WriteString("\n")
	}
	b.WriteString(render(p.Replies.SlotsOutro, name))
	return b.String()
}

func render(tmpl, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackSalutation
	}
	return strings.ReplaceAll(tmpl, placeholderName, name)
}

var dutchDays = map[time.Weekday]string{
	time.Sunday:    "zondag",
	time.Monday:    "maandag",
	time.Tuesday:   "dinsdag",
	time.Wednesday: "woensdag",
	time.Thursday:  "donderdag",
	time.Friday:    "vrijdag",
	time.Saturday:  "zaterdag",
}

// FormatSlot formats a slot as e.g. "dinsdag 11-03 om 10:00".
func FormatSlot(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %s om %s", dutchDays[t.Weekday()], t.Format("02-01"), t.Format("15:04"))
}
