package render

import "github.com/charmbracelet/lipgloss"

// Theme is the palette shared by the terminal and PNG renderers. Colors are
// #rrggbb strings since the PNG renderer parses them as hex.
type Theme struct {
	Name       string
	Title      lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	Background lipgloss.Color
	// Current marks the element the loop is visiting.
	Current lipgloss.Color
	// Accessed marks indices the program subscripts.
	Accessed lipgloss.Color
	// Override colors values computed by the loop.
	Override lipgloss.Color
	Running  lipgloss.Color
	Paused   lipgloss.Color
	Error    lipgloss.Color
}

var (
	ThemeMidnight = Theme{
		Name:       "midnight",
		Title:      lipgloss.Color("#7aa2f7"),
		Text:       lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Background: lipgloss.Color("#1a1b26"),
		Current:    lipgloss.Color("#e0af68"),
		Accessed:   lipgloss.Color("#bb9af7"),
		Override:   lipgloss.Color("#9ece6a"),
		Running:    lipgloss.Color("#73daca"),
		Paused:     lipgloss.Color("#ff9e64"),
		Error:      lipgloss.Color("#f7768e"),
	}

	ThemeRetro = Theme{
		Name:       "retro",
		Title:      lipgloss.Color("#33ff33"),
		Text:       lipgloss.Color("#22dd22"),
		Muted:      lipgloss.Color("#116611"),
		Background: lipgloss.Color("#020d02"),
		Current:    lipgloss.Color("#ccffcc"),
		Accessed:   lipgloss.Color("#ffee55"),
		Override:   lipgloss.Color("#99ff99"),
		Running:    lipgloss.Color("#66ff66"),
		Paused:     lipgloss.Color("#ffcc33"),
		Error:      lipgloss.Color("#ff5533"),
	}

	ThemeMinimal = Theme{
		Name:       "minimal",
		Title:      lipgloss.Color("#f5f5f5"),
		Text:       lipgloss.Color("#dddddd"),
		Muted:      lipgloss.Color("#7a7a7a"),
		Background: lipgloss.Color("#101010"),
		Current:    lipgloss.Color("#3399ff"),
		Accessed:   lipgloss.Color("#bbbbbb"),
		Override:   lipgloss.Color("#ffffff"),
		Running:    lipgloss.Color("#3399ff"),
		Paused:     lipgloss.Color("#999999"),
		Error:      lipgloss.Color("#ff4d4d"),
	}

	ThemeOcean = Theme{
		Name:       "ocean",
		Title:      lipgloss.Color("#4fb3e8"),
		Text:       lipgloss.Color("#dcefff"),
		Muted:      lipgloss.Color("#3d6f8f"),
		Background: lipgloss.Color("#031b2e"),
		Current:    lipgloss.Color("#ffd166"),
		Accessed:   lipgloss.Color("#ef8354"),
		Override:   lipgloss.Color("#06d6a0"),
		Running:    lipgloss.Color("#06d6a0"),
		Paused:     lipgloss.Color("#ffd166"),
		Error:      lipgloss.Color("#ef476f"),
	}

	ThemePaper = Theme{
		Name:       "paper",
		Title:      lipgloss.Color("#1f4e79"),
		Text:       lipgloss.Color("#111111"),
		Muted:      lipgloss.Color("#777777"),
		Background: lipgloss.Color("#ffffff"),
		Current:    lipgloss.Color("#c62828"),
		Accessed:   lipgloss.Color("#ef6c00"),
		Override:   lipgloss.Color("#2e7d32"),
		Running:    lipgloss.Color("#2e7d32"),
		Paused:     lipgloss.Color("#ef6c00"),
		Error:      lipgloss.Color("#b71c1c"),
	}

	DefaultTheme = ThemeMidnight

	Themes = []Theme{ThemeMidnight, ThemeRetro, ThemeMinimal, ThemeOcean, ThemePaper}
)

// GetTheme returns the theme called name, or DefaultTheme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return DefaultTheme
}

func ThemeNames() []string {
	names := make([]string, 0, len(Themes))
	for _, t := range Themes {
		names = append(names, t.Name)
	}
	return names
}
