package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	blockStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
)

// Render formats s as a single statusline.
func Render(s Status) string {
	if s.UpdatedAt.IsZero() {
		return labelStyle.Render("super-manager") + " " + mutedStyle.Render("idle")
	}

	parts := []string{labelStyle.Render("super-manager")}

	parts = append(parts, mutedStyle.Render(fmt.Sprintf("skills:%d tools:%d instr:%d",
		len(s.Matched.Skills), len(s.Matched.Tools), len(s.Matched.Instructions))))

	switch s.Verdict {
	case "HARD_BLOCK":
		parts = append(parts, blockStyle.Render("BLOCK "+strings.Join(s.Violating, ",")))
	case "SOFT_WARN":
		parts = append(parts, warnStyle.Render("pending "+strings.Join(s.Unfulfilled, ",")))
	}

	if s.ConfigChanged {
		parts = append(parts, infoStyle.Render("config changed"))
	}

	parts = append(parts, mutedStyle.Render(s.UpdatedAt.Local().Format(time.Kitchen)))
	return strings.Join(parts, mutedStyle.Render(" | "))
}
