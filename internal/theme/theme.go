// Package theme provides the Lip Gloss color palette and reusable styles
// for the console. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection colors.
var (
	ColorConnected  = lipgloss.Color("#22c55e")
	ColorConnecting = lipgloss.Color("#d97706")
	ColorClosed     = lipgloss.Color("#6b7280")
	ColorFailed     = lipgloss.Color("#dc2626")
)

// Word counter thresholds.
var (
	ColorCounterNormal = lipgloss.Color("#9ca3af")
	ColorCounterWarn   = lipgloss.Color("#d97706") // >20 words
	ColorCounterOver   = lipgloss.Color("#dc2626") // >30 words
)

// Chat colors.
var (
	ColorSender   = lipgloss.Color("#93c5fd")
	ColorVerified = lipgloss.Color("#38bdf8")
	ColorStatus   = lipgloss.Color("#f59e0b")
)

// Avatar fallback backgrounds, picked by sender name.
var avatarColors = []lipgloss.Color{
	lipgloss.Color("#7c3aed"),
	lipgloss.Color("#2563eb"),
	lipgloss.Color("#0891b2"),
	lipgloss.Color("#16a34a"),
	lipgloss.Color("#ca8a04"),
	lipgloss.Color("#db2777"),
}

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorAccent  = lipgloss.Color("#a855f7")
)

// StateColor returns the color for a connection state name as produced by
// client.State.String.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorConnected
	case "connecting", "closing":
		return ColorConnecting
	case "failed":
		return ColorFailed
	default:
		return ColorClosed
	}
}

// CounterColor returns the word counter color for a chat.Level name.
func CounterColor(level string) lipgloss.Color {
	switch level {
	case "warn":
		return ColorCounterWarn
	case "over":
		return ColorCounterOver
	default:
		return ColorCounterNormal
	}
}

// AvatarColor picks a stable background for a sender's initial.
func AvatarColor(name string) lipgloss.Color {
	var h uint32
	for _, r := range name {
		h = h*31 + uint32(r)
	}
	return avatarColors[h%uint32(len(avatarColors))]
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleStatus = lipgloss.NewStyle().
			Foreground(ColorStatus)
)

// StateGlyph returns a Unicode glyph for a connection state name.
func StateGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting":
		return "◎"
	case "closing":
		return "◌"
	case "failed":
		return "✗"
	default:
		return "○"
	}
}

// Badge renders a small inverse label such as "LIVE".
func Badge(text string, bg lipgloss.Color) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBg).
		Background(bg).
		Padding(0, 1).
		Render(text)
}
