package history

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDisplayName(t *testing.T) {
	cases := []struct {
		actor string
		want  string
	}{
		{"dana.reyes@example.com", "Dana Reyes"},
		{"kim-otto", "Kim Otto"},
		{"mei_lin.zhao", "Mei Lin Zhao"},
		{"SYSTEM", "System"},
		{"scheduler", "Scheduler"},
		{"importer", "Importer"},
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"ALLCAPS", "Allcaps"},
		{"solo", "Solo"},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.actor); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.actor, got, tc.want)
		}
	}
}

func TestDisplayNameSeparatorOnlyFallsBackToRaw(t *testing.T) {
	got := DisplayName("...")
	if got != "..." {
		t.Fatalf("DisplayName(\"...\") = %q, want the raw actor", got)
	}
}

func TestDisplayNameTruncation(t *testing.T) {
	actor := strings.Repeat("a", 80)
	got := DisplayName(actor)
	if utf8.RuneCountInString(got) != maxDisplayLen {
		t.Fatalf("truncated length = %d runes, want %d", utf8.RuneCountInString(got), maxDisplayLen)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated name %q missing ellipsis", got)
	}
}
