package domain

import "testing"

func TestSelectChannelPriority(t *testing.T) {
	tests := []struct {
		email string
		phone string
		want  string
		ok    bool
	}{
		// Email wins whenever present.
		{"jan@example.com", "+31612345678", ChannelEmail, true},
		{"jan@example.com", "", ChannelEmail, true},

		// Phone-only leads get SMS.
		{"", "+31612345678", ChannelSMS, true},
		{"", "0612345678", ChannelSMS, true},

		// No usable contact surface at all.
		{"", "", "", false},
		{"", "12345", "", false},
		{"niet-een-adres", "", "", false},
	}

	for _, tc := range tests {
		got, ok := SelectChannel(tc.email, tc.phone)
		if got != tc.want || ok != tc.ok {
			t.Errorf("SelectChannel(%q, %q) = (%q, %v), want (%q, %v)", tc.email, tc.phone, got, ok, tc.want, tc.ok)
		}
	}
}

func TestConsentedChannel(t *testing.T) {
	tests := []struct {
		channel string
		email   string
		phone   string
		want    bool
	}{
		{ChannelEmail, "jan@example.com", "", true},
		{ChannelEmail, "", "+31612345678", false},
		{ChannelSMS, "", "+31612345678", true},
		{ChannelSMS, "jan@example.com", "", false},
		{ChannelWhatsApp, "", "0612345678", true},
		{ChannelWhatsApp, "", "", false},
		{"fax", "jan@example.com", "+31612345678", false},
	}

	for _, tc := range tests {
		if got := ConsentedChannel(tc.channel, tc.email, tc.phone); got != tc.want {
			t.Errorf("ConsentedChannel(%q, %q, %q) = %v, want %v", tc.channel, tc.email, tc.phone, got, tc.want)
		}
	}
}
