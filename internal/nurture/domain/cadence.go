package domain

import "time"

// Follow-up cadence per stage. Contacted and no_response scale with how
// many attempts already happened; everything else is a fixed offset.
const (
	cadenceNew         = 2 * time.Hour
	cadenceEngaged     = 3 * 24 * time.Hour
	cadenceAppointment = 24 * time.Hour
	cadenceDormant     = 30 * 24 * time.Hour
	cadenceDefault     = 7 * 24 * time.Hour
)

// NextDue computes when the next nurture action for a lead is due.
// Returns nil for terminal stages: nothing further is ever scheduled.
//
// contactCount reflects prior attempts at the moment of evaluation. After
// a successful send the caller passes the incremented count; after a
// failed send it passes the unchanged count so the lead retries on the
// normal cadence.
func NextDue(stage string, contactCount int, now time.Time) *time.Time {
	if IsTerminalStage(stage) {
		return nil
	}

	var offset time.Duration
	switch stage {
	case StageNew:
		offset = cadenceNew
	case StageContacted:
		offset = contactedOffset(contactCount)
	case StageEngaged:
		offset = cadenceEngaged
	case StageAppointmentProposed, StageAppointmentConfirmed:
		offset = cadenceAppointment
	case StageNoResponse:
		if contactCount < 5 {
			offset = 14 * 24 * time.Hour
		} else {
			offset = 30 * 24 * time.Hour
		}
	case StageDormant:
		offset = cadenceDormant
	default:
		offset = cadenceDefault
	}

	due := now.Add(offset)
	return &due
}

// contactedOffset widens the follow-up gap as attempts accumulate.
func contactedOffset(contactCount int) time.Duration {
	switch {
	case contactCount <= 1:
		return 2 * 24 * time.Hour
	case contactCount <= 2:
		return 5 * 24 * time.Hour
	case contactCount <= 3:
		return 9 * 24 * time.Hour
	case contactCount <= 5:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}
