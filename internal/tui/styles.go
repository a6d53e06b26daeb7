package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	// maxLogLines caps the activity log held in memory.
	maxLogLines = 1000
	// chromeHeight is the number of lines used by header, input and status bar.
	chromeHeight = 6
)

const (
	IconCheck     = "✔"
	IconCross     = "✘"
	IconHourglass = "⏳"
	IconArrowIn   = "←"
	IconArrowOut  = "→"
	IconScroll    = "📜"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Background(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#303030"}).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#A0A0A0"}).
			Padding(0, 1)

	connectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#006400", Dark: "#8AE234"})
	connectingStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#8B4513", Dark: "#FCE94F"})
	disconnectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#B22222", Dark: "#EF2929"})

	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#222222", Dark: "#DDDDDD"})
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8B4513", Dark: "#FCE94F"})
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B22222", Dark: "#EF2929"})
	logDebugStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#888888"})
	logRecvStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#00008B", Dark: "#729FCF"})

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}).
			Background(lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#202020"}).
			Padding(0, 1)
)

// SafeIcon pads an icon to two cells so columns line up regardless of how
// the terminal renders it.
func SafeIcon(icon string) string {
	if w := runewidth.StringWidth(icon); w < 2 {
		return icon + " "
	}
	return icon
}

// truncateLine cuts line to maxWidth cells, marking the cut with an ellipsis.
func truncateLine(line string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(line) <= maxWidth {
		return line
	}
	return runewidth.Truncate(line, maxWidth-1, "") + "…"
}
