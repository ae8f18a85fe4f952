package builder

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
)

// Theme holds the base colour tokens of a named theme.
type Theme struct {
	Background  string
	Text        string
	Interactive string
	Surface     string
	Overlay     string
}

const defaultTheme = "G100"

var themes = map[string]Theme{
	"White": {Background: "#ffffff", Text: "#161616", Interactive: "#0f62fe", Surface: "#ffffff", Overlay: "#f4f4f4"},
	"G10":   {Background: "#f4f4f4", Text: "#161616", Interactive: "#0f62fe", Surface: "#ffffff", Overlay: "#e0e0e0"},
	"G90":   {Background: "#262626", Text: "#f4f4f4", Interactive: "#4589ff", Surface: "#393939", Overlay: "#161616"},
	"G100":  {Background: "#161616", Text: "#f4f4f4", Interactive: "#4589ff", Surface: "#262626", Overlay: "#0d0d0d"},
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ThemeFor returns the named theme, falling back to G100.
func ThemeFor(name string) Theme {
	if t, ok := themes[strings.TrimSpace(name)]; ok {
		return t
	}
	return themes[defaultTheme]
}

type themeVars struct {
	Theme
	Primary      string
	PrimaryHover string
}

var themeCSS = template.Must(template.ParseFS(templateFS, "templates/theme.css.tmpl"))

// ThemeCSS renders the stylesheet for a theme and brand colour. An invalid
// primary colour falls back to the theme's interactive colour.
func ThemeCSS(themeName, primaryColor string) ([]byte, error) {
	t := ThemeFor(themeName)
	primary := strings.TrimSpace(primaryColor)
	if !hexColorRe.MatchString(primary) {
		primary = t.Interactive
	}
	var buf bytes.Buffer
	err := themeCSS.Execute(&buf, themeVars{
		Theme:        t,
		Primary:      strings.ToLower(primary),
		PrimaryHover: AdjustColor(primary, -15),
	})
	if err != nil {
		return nil, fmt.Errorf("builder: theme css: %w", err)
	}
	return buf.Bytes(), nil
}

// AdjustColor shifts each channel of a #rrggbb colour by amount, clamped to
// [0, 255]. Unparseable input is returned unchanged.
func AdjustColor(hex string, amount int) string {
	n, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil || !hexColorRe.MatchString(hex) {
		return hex
	}
	clamp := func(v int) int { return min(255, max(0, v)) }
	r := clamp(int(n>>16) + amount)
	g := clamp(int(n>>8&0xff) + amount)
	b := clamp(int(n&0xff) + amount)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
