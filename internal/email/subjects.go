package email

const (
	subjectWelcome              = "Welkom bij Woningportaal"
	subjectFollowup             = "Even bijpraten over uw woningzoektocht"
	subjectReengage             = "Nieuw aanbod dat bij u kan passen"
	subjectReply                = "Reactie op uw bericht"
	subjectAppointmentConfirmed = "Uw bezichtiging is bevestigd"
	subjectAppointmentReminder  = "Herinnering aan uw bezichtiging"
	subjectOpsAlertFmt          = "Actie nodig: lead %s wacht op een reactie"
)

// SubjectFor maps a message purpose to its subject line. Unknown
// purposes read as a follow-up.
func SubjectFor(purpose string) string {
	switch purpose {
	case "welcome":
		return subjectWelcome
	case "reengage":
		return subjectReengage
	case "reply":
		return subjectReply
	default:
		return subjectFollowup
	}
}
