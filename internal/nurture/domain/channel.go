package domain

import (
	"strings"

	"nurture_backend/platform/phone"
)

const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

var knownChannels = map[string]struct{}{
	ChannelEmail:    {},
	ChannelSMS:      {},
	ChannelWhatsApp: {},
}

// IsKnownChannel reports whether the value is a member of the channel set.
func IsKnownChannel(channel string) bool {
	_, ok := knownChannels[channel]
	return ok
}

// HasEmailConsent reports whether the lead may be contacted by email.
// Consent is derived from the presence of a usable address.
func HasEmailConsent(email string) bool {
	trimmed := strings.TrimSpace(email)
	return trimmed != "" && strings.Contains(trimmed, "@")
}

// HasPhoneConsent reports whether the lead may be contacted by SMS or
// WhatsApp. A number that does not parse is no consent at all.
func HasPhoneConsent(phoneNumber string) bool {
	return phone.IsValid(phoneNumber)
}

// SelectChannel picks the best eligible channel for a lead: email first,
// then SMS, then WhatsApp. The second return is false when no channel is
// eligible; callers must treat that as a blocked compliance outcome.
func SelectChannel(email, phoneNumber string) (string, bool) {
	if HasEmailConsent(email) {
		return ChannelEmail, true
	}
	if HasPhoneConsent(phoneNumber) {
		return ChannelSMS, true
	}
	return "", false
}

// ConsentedChannel reports whether the specific channel may be used for
// the given contact surface.
func ConsentedChannel(channel, email, phoneNumber string) bool {
	switch channel {
	case ChannelEmail:
		return HasEmailConsent(email)
	case ChannelSMS, ChannelWhatsApp:
		return HasPhoneConsent(phoneNumber)
	default:
		return false
	}
}
