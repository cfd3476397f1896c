package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/keyboard"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7FB069")).
			Bold(true)

	responseStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A")).
			Italic(true).
			PaddingLeft(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6AA68")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CA3C25")).
			Bold(true)

	keyStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B7553")).
			Padding(0, 1)
)

// markdownRenderer is satisfied by *glamour.TermRenderer.
type markdownRenderer interface {
	Render(in string) (string, error)
}

func newMarkdownRenderer(width int) markdownRenderer {
	if width <= 0 || width > 100 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderTurn formats one prompt/response pair. Responses go through md when
// it is set; the backend answers in markdown.
func renderTurn(turn domain.Turn, language string, md markdownRenderer) string {
	var b strings.Builder
	b.WriteString(promptStyle.Render("> " + turn.Prompt))
	b.WriteString("\n")
	switch {
	case turn.Pending:
		b.WriteString(pendingStyle.Render(i18n.T(language, i18n.KeyThinking)))
	case md != nil:
		if out, err := md.Render(turn.Response); err == nil {
			b.WriteString(strings.Trim(out, "\n"))
			break
		}
		b.WriteString(responseStyle.Render(turn.Response))
	default:
		b.WriteString(responseStyle.Render(turn.Response))
	}
	return b.String()
}

// renderChat formats a whole conversation, or the welcome message when it is
// empty.
func renderChat(snapshot domain.ChatSnapshot, language string, md markdownRenderer) string {
	if !snapshot.Active || len(snapshot.Turns) == 0 {
		return infoStyle.Render(i18n.T(language, i18n.KeyWelcome))
	}
	parts := make([]string, 0, len(snapshot.Turns)+1)
	if snapshot.Title != "" {
		parts = append(parts, titleStyle.Render(snapshot.Title))
	}
	for _, turn := range snapshot.Turns {
		parts = append(parts, renderTurn(turn, language, md))
	}
	return strings.Join(parts, "\n\n")
}

func renderSessions(sessions []domain.SessionSummary, activeID string, language string) string {
	if len(sessions) == 0 {
		return infoStyle.Render("(no saved chats)")
	}
	lines := []string{titleStyle.Render(i18n.T(language, i18n.KeyChatHistory))}
	for i, s := range sessions {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		title := s.Title
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		lines = append(lines, fmt.Sprintf("%s %2d. %s %s", marker, i+1, title, infoStyle.Render("["+s.ID+"]")))
	}
	return strings.Join(lines, "\n")
}

func renderLanguages(current string) string {
	lines := make([]string, 0, len(i18n.Languages()))
	for _, l := range i18n.Languages() {
		marker := " "
		if l.Code == current {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %-3s %-8s %s %s", marker, l.Code, l.Locale, l.NativeName, infoStyle.Render("("+l.Name+")")))
	}
	return strings.Join(lines, "\n")
}

// renderKeyboard draws the layout as rows of boxed keys.
func renderKeyboard(layout keyboard.Layout) string {
	rows := make([]string, 0, len(layout))
	for _, row := range layout {
		keys := make([]string, 0, len(row))
		for _, key := range row {
			label := key
			if key == keyboard.KeySpace {
				label = "Space"
			}
			keys = append(keys, keyStyle.Render(label))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, keys...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
