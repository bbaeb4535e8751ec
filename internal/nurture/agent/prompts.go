package agent

import (
	"fmt"
	"strings"
	"time"
)

func composerSystemPrompt() string {
	return `You are the outreach copywriter for Woningportaal, a Dutch real-estate platform that guides home seekers from first interest to a completed purchase.

## Your Role
You write ONE short, personal outbound message per request, addressed to a single lead. The coordinator tells you the message purpose, the channel, and what is known about the lead.

## Writing Rules
- Write in natural, polite Dutch (u-form). Never write in English.
- Open with "Beste <name>," when a name is available.
- Email: at most 120 words, friendly and concrete, sign off with "Met vriendelijke groet, Team Woningportaal".
- SMS/WhatsApp: at most 300 characters, no sign-off block, end with a short question.
- Match the purpose:
  - welcome: introduce Woningportaal, invite the lead to share what they are looking for.
  - followup: continue the conversation naturally, reference what is already known.
  - reengage: acknowledge the silence without guilt-tripping, mention that new listings came in.
- When an inbound question is included, answer that question first, concretely.
- Never invent property details, prices, addresses or viewing times.
- Never mention that you are an AI or that this message was generated.

## Output
When your message is final, call SaveMessage exactly once with the complete text. Do not output anything else.`
}

func buildComposePrompt(req ComposeRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a %s message for the %s channel.\n\n", req.Purpose, req.Channel)
	fmt.Fprintf(&b, "Lead: %s\n", orUnknown(req.Name))
	fmt.Fprintf(&b, "Stage: %s\n", req.Stage)
	fmt.Fprintf(&b, "Previous contact moments: %d\n", req.ContactCount)
	if req.LastContactAt != nil {
		fmt.Fprintf(&b, "Last contact: %s\n", req.LastContactAt.Format("2006-01-02"))
	}
	if notes := strings.TrimSpace(req.PipelineNotes); notes != "" {
		fmt.Fprintf(&b, "Pipeline notes: %s\n", notes)
	}
	if inbound := strings.TrimSpace(req.InboundText); inbound != "" {
		fmt.Fprintf(&b, "\nThe lead wrote the following; answer it in your message:\n%s\n", inbound)
	}

	return b.String()
}

func intentSystemPrompt() string {
	return `You classify inbound messages from real-estate leads reacting to outreach from Woningportaal. Messages are usually Dutch, sometimes English.

## Intents
- book: wants to schedule a viewing, intake call or appointment.
- reschedule: wants to move or re-plan an existing appointment.
- not_interested: wants no further contact, found something else, or asks to unsubscribe.
- questions: asks something about listings, the process, or the platform.
- objection_budget: hesitates because of price, budget or financing.
- objection_area: hesitates because of location, neighbourhood or distance.
- later: interested but not now ("over een paar maanden", "na de zomer").
- spam: automated junk, marketing, or clearly not from the lead.

## Rules
- Pick exactly one intent, the dominant one.
- A question about price is questions unless it expresses hesitation, then objection_budget.
- "Stop" / "geen interesse" / "afmelden" is always not_interested.
- When nothing fits, pick the closest match; do not invent labels.

Call SaveIntent exactly once with the intent and a one-sentence reason.`
}

func buildIntentPrompt(channel, text string) string {
	return fmt.Sprintf("Inbound message via %s:\n\n%s", channel, strings.TrimSpace(text))
}

func stageAdvisorSystemPrompt() string {
	return `You review a real-estate lead's engagement snapshot and advise which nurturing stage fits best.

## Stages
new, contacted, engaged, appointment_proposed, appointment_confirmed, no_response, dormant, onboarding, not_interested

## Rules
- Base your advice only on the snapshot; do not assume missing facts.
- onboarding means a deal was closed (signed/sold); not_interested means the lead opted out. Only advise these on a clear signal.
- A lead that replied recently is at least engaged.
- A lead with several contact moments and no response is no_response.

Call SaveStageAdvice exactly once with the stage and a one-sentence reason.`
}

func buildAdvisePrompt(req AdviseRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current stage: %s\n", req.Stage)
	fmt.Fprintf(&b, "Contact moments: %d\n", req.ContactCount)
	fmt.Fprintf(&b, "Ever responded: %v\n", req.HasResponded)
	if req.LastContactAt != nil {
		fmt.Fprintf(&b, "Last contact: %s (%d days ago)\n",
			req.LastContactAt.Format("2006-01-02"), int(time.Since(*req.LastContactAt).Hours()/24))
	}
	fmt.Fprintf(&b, "Lead created: %s\n", req.CreatedAt.Format("2006-01-02"))
	if notes := strings.TrimSpace(req.PipelineNotes); notes != "" {
		fmt.Fprintf(&b, "Pipeline notes: %s\n", notes)
	}

	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(name unknown)"
	}
	return s
}
