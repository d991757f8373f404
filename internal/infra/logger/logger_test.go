package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "joh***@example.com"},
		{"al@example.com", "al***@example.com"},
		{"no-at-sign", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"secret123", "se***23"},
		{"abcd", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskString(tc.in); got != tc.want {
			t.Fatalf("MaskString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
