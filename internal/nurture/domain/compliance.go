package domain

import (
	"fmt"
	"time"
)

// GateOutcome is the result of the compliance check in front of every
// outbound contact attempt.
type GateOutcome string

const (
	GateAllowed  GateOutcome = "allowed"
	GateDeferred GateOutcome = "deferred"
	GateBlocked  GateOutcome = "blocked"
)

// GateDecision carries the outcome plus the field relevant to it:
// ResumeAt for deferrals, Reason for blocks.
type GateDecision struct {
	Outcome  GateOutcome
	ResumeAt time.Time
	Reason   string
}

// QuietHours is the local-time window in which outbound contact is
// deferred rather than sent. StartHour/EndHour are hours of day; the
// window wraps midnight when StartHour > EndHour (the default 21-9 does).
type QuietHours struct {
	Enabled   bool
	StartHour int
	EndHour   int
	Location  *time.Location
}

// Contains reports whether now falls inside the quiet window.
func (q QuietHours) Contains(now time.Time) bool {
	if !q.Enabled || q.StartHour == q.EndHour {
		return false
	}
	h := now.In(q.location()).Hour()
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	return h >= q.StartHour || h < q.EndHour
}

// NextAllowed returns the first moment after now at which contact is
// permitted again: the upcoming EndHour on the wall clock of the
// configured location.
func (q QuietHours) NextAllowed(now time.Time) time.Time {
	local := now.In(q.location())
	resume := time.Date(local.Year(), local.Month(), local.Day(), q.EndHour, 0, 0, 0, q.location())
	if !resume.After(local) {
		resume = resume.AddDate(0, 0, 1)
	}
	return resume
}

func (q QuietHours) location() *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return time.Local
}

// CheckGate decides whether a contact attempt over channel may proceed at
// now. Blocked means the channel lacks consent and the attempt must be
// dropped; Deferred means quiet hours apply and the attempt moves to
// ResumeAt without counting as a contact.
func CheckGate(channel, email, phoneNumber string, now time.Time, quiet QuietHours) GateDecision {
	if !ConsentedChannel(channel, email, phoneNumber) {
		return GateDecision{
			Outcome: GateBlocked,
			Reason:  blockedReason(channel),
		}
	}
	if quiet.Contains(now) {
		return GateDecision{
			Outcome:  GateDeferred,
			ResumeAt: quiet.NextAllowed(now),
		}
	}
	return GateDecision{Outcome: GateAllowed}
}

func blockedReason(channel string) string {
	switch channel {
	case ChannelEmail:
		return "no email address on file"
	case ChannelSMS, ChannelWhatsApp:
		return "no valid phone number on file"
	default:
		return fmt.Sprintf("unknown channel %q", channel)
	}
}
