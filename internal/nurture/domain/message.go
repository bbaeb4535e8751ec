package domain

import "time"

// Outbound message purposes. The composer picks tone and content from
// these; the fallback playbook holds a template per purpose. PurposeReply
// marks answers to inbound messages and never comes out of MessagePurpose.
const (
	PurposeWelcome  = "welcome"
	PurposeFollowup = "followup"
	PurposeReengage = "reengage"
	PurposeReply    = "reply"
)

// MessagePurpose buckets a stage into the purpose of the outbound
// message to send: a first introduction for brand-new leads, a win-back
// for leads that went silent, a regular follow-up for everything else.
func MessagePurpose(stage string) string {
	switch stage {
	case StageNew:
		return PurposeWelcome
	case StageNoResponse, StageDormant:
		return PurposeReengage
	default:
		return PurposeFollowup
	}
}

// ProposedSlotHours are the wall-clock hours for the three viewing slots
// offered on a booking request: day+1, day+2 and day+3 respectively.
var ProposedSlotHours = [3]int{10, 14, 11}

// ProposedSlots materializes the three viewing slots relative to now in
// the given location's wall clock.
func ProposedSlots(now time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	slots := make([]time.Time, 0, len(ProposedSlotHours))
	for i, hour := range ProposedSlotHours {
		day := local.AddDate(0, 0, i+1)
		slots = append(slots, time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc))
	}
	return slots
}
