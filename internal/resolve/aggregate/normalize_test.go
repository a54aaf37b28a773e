package aggregate

import "testing"

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"filenames collapse",
			"File not found: a.js",
			"File not found: <path>",
		},
		{
			"different filenames collapse identically",
			"File not found: b.js",
			"File not found: <path>",
		},
		{
			"slash paths collapse",
			"cannot read src/internal/core/loader.go",
			"cannot read <path>",
		},
		{
			"numbers collapse",
			"request failed with status 503 after 17 retries",
			"request failed with status <n> after <n> retries",
		},
		{
			"hex numbers collapse",
			"invalid frame at 0xDEADBEEF",
			"invalid frame at <n>",
		},
		{
			"double quoted strings collapse",
			`unknown field "retries_max" in config`,
			"unknown field <quoted> in config",
		},
		{
			"single quoted strings collapse",
			"unknown label 'p7'",
			"unknown label <quoted>",
		},
		{
			"mixed message",
			`fetch "https://forge.test/api" failed: timeout after 30s contacting host backend-2`,
			"fetch <quoted> failed: timeout after <n>s contacting host backend-<n>",
		},
		{
			"stable text untouched",
			"connection refused",
			"connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMessage(tt.in); got != tt.want {
				t.Errorf("NormalizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeMessageIdempotent(t *testing.T) {
	msgs := []string{
		"File not found: a.js",
		`bad value "x" at line 12 in cmd/main.go`,
	}
	for _, m := range msgs {
		once := NormalizeMessage(m)
		twice := NormalizeMessage(once)
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", m, once, twice)
		}
	}
}
