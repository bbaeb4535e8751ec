package domain

import "strings"

// Intents an inbound message can be classified as. Labels outside this
// set route to the escalation path.
const (
	IntentBook            = "book"
	IntentReschedule      = "reschedule"
	IntentNotInterested   = "not_interested"
	IntentQuestions       = "questions"
	IntentObjectionBudget = "objection_budget"
	IntentObjectionArea   = "objection_area"
	IntentLater           = "later"
	IntentSpam            = "spam"

	// IntentUnknown is assigned by routing, never by the classifier
	// whitelist itself.
	IntentUnknown = "unknown"
)

var knownIntents = map[string]struct{}{
	IntentBook:            {},
	IntentReschedule:      {},
	IntentNotInterested:   {},
	IntentQuestions:       {},
	IntentObjectionBudget: {},
	IntentObjectionArea:   {},
	IntentLater:           {},
	IntentSpam:            {},
}

// IsKnownIntent reports whether intent is one of the classifier labels.
func IsKnownIntent(intent string) bool {
	_, ok := knownIntents[intent]
	return ok
}

// NormalizeIntent maps a raw classifier label onto the known set,
// returning IntentUnknown for anything it does not recognize.
func NormalizeIntent(raw string) string {
	intent := strings.ToLower(strings.TrimSpace(raw))
	if IsKnownIntent(intent) {
		return intent
	}
	return IntentUnknown
}

// Kinds of auto-reply an inbound message can trigger. The playbook holds
// a template for each.
const (
	ReplyNone        = ""
	ReplyFarewell    = "farewell"
	ReplySlots       = "slots"
	ReplyAnswer      = "answer"
	ReplyReassurance = "reassurance"
)

// InboundRoute describes what a classified intent does to a lead: the
// stage it moves to (empty means unchanged), the kind of auto-reply to
// send (ReplyNone means stay silent), and whether a human must take over.
type InboundRoute struct {
	NewStage string
	Reply    string
	Escalate bool
	Ignore   bool
}

// RouteIntent resolves an intent to its route. Spam is dropped entirely;
// unrecognized intents land on engaged with the auto-reply suppressed so
// a human answers instead of a canned message.
func RouteIntent(intent string) InboundRoute {
	switch intent {
	case IntentSpam:
		return InboundRoute{Ignore: true}
	case IntentNotInterested:
		return InboundRoute{NewStage: StageNotInterested, Reply: ReplyFarewell}
	case IntentBook, IntentReschedule:
		return InboundRoute{NewStage: StageAppointmentProposed, Reply: ReplySlots}
	case IntentQuestions, IntentObjectionBudget, IntentObjectionArea:
		return InboundRoute{NewStage: StageEngaged, Reply: ReplyAnswer}
	case IntentLater:
		return InboundRoute{NewStage: StageNoResponse, Reply: ReplyReassurance}
	default:
		return InboundRoute{NewStage: StageEngaged, Escalate: true}
	}
}
