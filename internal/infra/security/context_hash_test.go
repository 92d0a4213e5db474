package security

import "testing"

func TestNormalizeClientIP(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"ipv4", "203.0.113.7", "203.0.113.7"},
		{"ipv4 loopback", "127.0.0.1", "127.0.0.1"},
		{"ipv6 loopback folds to ipv4", "::1", "127.0.0.1"},
		{"ipv4-mapped ipv6", "::ffff:203.0.113.7", "203.0.113.7"},
		{"whitespace trimmed", "  203.0.113.7  ", "203.0.113.7"},
		{"unparseable passes through", "not-an-ip", "not-an-ip"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeClientIP(tc.input); got != tc.want {
				t.Errorf("NormalizeClientIP(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestHashClientIP_LoopbackVariantsMatch(t *testing.T) {
	if HashClientIP("::1") != HashClientIP("127.0.0.1") {
		t.Fatal("expected both loopback representations to hash identically")
	}
}

func TestHashClientContext_EmptyMeansUnchecked(t *testing.T) {
	if HashClientContext("") != "" {
		t.Fatal("expected empty hash for empty input")
	}
	if HashClientContext("   ") != "" {
		t.Fatal("expected empty hash for blank input")
	}
	if HashClientContext("Mozilla/5.0") == "" {
		t.Fatal("expected non-empty hash for real input")
	}
}
