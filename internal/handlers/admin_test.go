package handlers

import "testing"

func TestSplitMaintenanceArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw    string
		reason string
		until  string
	}{
		{"", "", ""},
		{"database upgrade", "database upgrade", ""},
		{"database upgrade | tonight 23:00", "database upgrade", "tonight 23:00"},
		{"| tomorrow morning", "", "tomorrow morning"},
		{"  spaced reason  |  spaced until  ", "spaced reason", "spaced until"},
	}
	for _, tc := range cases {
		reason, until := splitMaintenanceArgs(tc.raw)
		if reason != tc.reason || until != tc.until {
			t.Errorf("splitMaintenanceArgs(%q) = (%q, %q), want (%q, %q)",
				tc.raw, reason, until, tc.reason, tc.until)
		}
	}
}
