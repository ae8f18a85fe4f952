package builder

import (
	"strings"
	"testing"
)

func TestAdjustColor(t *testing.T) {
	tests := []struct {
		in     string
		amount int
		want   string
	}{
		{"#0f62fe", -15, "#0053ef"},
		{"#ffffff", 20, "#ffffff"},
		{"#000000", -20, "#000000"},
		{"not-a-colour", 10, "not-a-colour"},
	}
	for _, tt := range tests {
		if got := AdjustColor(tt.in, tt.amount); got != tt.want {
			t.Errorf("AdjustColor(%q, %d) = %q, want %q", tt.in, tt.amount, got, tt.want)
		}
	}
}

func TestThemeCSS(t *testing.T) {
	css, err := ThemeCSS("White", "#FF0000")
	if err != nil {
		t.Fatalf("ThemeCSS: %v", err)
	}
	s := string(css)
	if !strings.Contains(s, "--ss-background: #ffffff;") || !strings.Contains(s, "--ss-interactive: #ff0000;") {
		t.Errorf("unexpected css:\n%s", s)
	}

	// Unknown theme and invalid colour fall back to G100 and its accent.
	css, _ = ThemeCSS("Neon", "red")
	s = string(css)
	if !strings.Contains(s, "--ss-background: #161616;") || !strings.Contains(s, "--ss-interactive: #4589ff;") {
		t.Errorf("fallback css:\n%s", s)
	}
}

func TestDetectLanguage(t *testing.T) {
	if got := DetectLanguage(""); got != "en" {
		t.Errorf("empty = %q", got)
	}
	fr := "Nous construisons des tableaux de bord clairs pour les équipes qui grandissent rapidement et qui veulent enfin comprendre leurs données sans tableur."
	if got := DetectLanguage(fr); got != "fr" {
		t.Errorf("french = %q", got)
	}
}

func TestSanitizer(t *testing.T) {
	s := newSanitizer()
	if got := s.plain("Tom & <b>Jerry</b>"); got != "Tom & Jerry" {
		t.Errorf("plain = %q", got)
	}
	got := string(s.rich(`<a href="https://example.com">ok</a><script>x()</script>`))
	if !strings.Contains(got, `href="https://example.com"`) || strings.Contains(got, "script") {
		t.Errorf("rich = %q", got)
	}
}
