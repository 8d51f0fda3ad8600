package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeLight ThemeName = "light"
	ThemeDark  ThemeName = "dark"
)

type Theme struct {
	Name ThemeName

	// Colors
	TextPrimary lipgloss.Color
	TextMuted   lipgloss.Color
	TextFaint   lipgloss.Color

	Accent  lipgloss.Color
	Accent2 lipgloss.Color
	Warn    lipgloss.Color
	Error   lipgloss.Color

	Border   lipgloss.Color
	BorderHi lipgloss.Color

	// Styles
	TopBar      lipgloss.Style
	TopBarTitle lipgloss.Style
	ModePill    lipgloss.Style

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Footer      lipgloss.Style
	InputBox    lipgloss.Style
	InputBoxF   lipgloss.Style
	Spinner     lipgloss.Style

	BubbleUser lipgloss.Style
	BubbleBot  lipgloss.Style
	RoleYou    lipgloss.Style
	RoleBot    lipgloss.Style
	ErrorText  lipgloss.Style

	SessionItem   lipgloss.Style
	SessionActive lipgloss.Style
	SessionCursor lipgloss.Style
	Welcome       lipgloss.Style

	// CodeStyle names the chroma style used for fenced code blocks.
	CodeStyle string
}

// ThemeFor picks the palette for a persisted theme preference.
// CONVERSA_NO_COLOR strips color entirely.
func ThemeFor(name string) Theme {
	if os.Getenv("CONVERSA_NO_COLOR") == "1" {
		return newNoColorTheme()
	}
	if ThemeName(name) == ThemeDark {
		return newDarkTheme()
	}
	return newLightTheme()
}

func newDarkTheme() Theme {
	t := Theme{
		Name:        ThemeDark,
		TextPrimary: lipgloss.Color("#f2f2f2"),
		TextMuted:   lipgloss.Color("#c7c7c7"),
		TextFaint:   lipgloss.Color("#9aa0a6"),
		Accent:      lipgloss.Color("#7aa2ff"),
		Accent2:     lipgloss.Color("#f4b27d"),
		Warn:        lipgloss.Color("#f4b27d"),
		Error:       lipgloss.Color("#ff7a7a"),
		Border:      lipgloss.Color("#3a3a3a"),
		BorderHi:    lipgloss.Color("#7aa2ff"),
		CodeStyle:   "dracula",
	}
	return t.build()
}

func newLightTheme() Theme {
	t := Theme{
		Name:        ThemeLight,
		TextPrimary: lipgloss.Color("#1d2433"),
		TextMuted:   lipgloss.Color("#4a5568"),
		TextFaint:   lipgloss.Color("#718096"),
		Accent:      lipgloss.Color("#1f6feb"),
		Accent2:     lipgloss.Color("#b45309"),
		Warn:        lipgloss.Color("#b45309"),
		Error:       lipgloss.Color("#b42318"),
		Border:      lipgloss.Color("#cbd5e0"),
		BorderHi:    lipgloss.Color("#1f6feb"),
		CodeStyle:   "github",
	}
	return t.build()
}

func newNoColorTheme() Theme {
	t := Theme{
		Name:        "no-color",
		TextPrimary: lipgloss.Color(""),
		TextMuted:   lipgloss.Color(""),
		TextFaint:   lipgloss.Color(""),
		Border:      lipgloss.Color(""),
		BorderHi:    lipgloss.Color(""),
		CodeStyle:   "bw",
	}
	return t.build()
}

func (t Theme) build() Theme {
	t.TopBar = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.TopBarTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.ModePill = lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Padding(0, 1).
		Border(lipgloss.RoundedBorder()).BorderForeground(t.Border)

	t.Pane = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.PaneFocused = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	t.PaneTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextMuted)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.InputBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.InputBoxF = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)

	t.BubbleUser = lipgloss.NewStyle().Foreground(t.TextPrimary)
	t.BubbleBot = lipgloss.NewStyle().Foreground(t.TextPrimary)
	t.RoleYou = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RoleBot = lipgloss.NewStyle().Bold(true).Foreground(t.Accent2)
	t.ErrorText = lipgloss.NewStyle().Foreground(t.Error)

	t.SessionItem = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.SessionActive = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.SessionCursor = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.Welcome = lipgloss.NewStyle().Foreground(t.TextFaint).Italic(true)
	return t
}

// Toggle flips between the light and dark palettes.
func (t Theme) Toggle() Theme {
	if t.Name == ThemeDark {
		return newLightTheme()
	}
	return newDarkTheme()
}
