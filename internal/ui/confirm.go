package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmOverwrite warns that path already exists and asks for a y/N
// answer on in. Anything but "y" or "yes" declines, as does a read error.
func ConfirmOverwrite(in io.Reader, out io.Writer, path string) bool {
	width := GetTerminalWidth()

	box := NewWarningResult("FILE EXISTS").
		SetWidth(width).
		AddDetail("Path", path).
		Render()
	_, _ = fmt.Fprintln(out, box)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render("Overwrite it? [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
