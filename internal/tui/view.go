// internal/tui/view.go
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AlverezYari/camroll/internal/permission"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	titleStyle = lipgloss.NewStyle().Bold(true)

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

const logLines = 3

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"📷 Camera Roll",
		lipgloss.NewStyle().
			Width(max(0, m.width-17)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	sections := []string{header, m.renderPermissions()}

	if m.cameraGranted() {
		sections = append(sections, m.renderCameraPanel())
	} else {
		sections = append(sections, noticeStyle.Render("Camera panel hidden until camera access is granted."))
	}

	if video := m.session.PendingVideo(); video != "" {
		sections = append(sections, panelStyle.Render(
			fmt.Sprintf("%s\n%s", titleStyle.Render("Video preview"), filepath.Base(video)),
		))
	}

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render("! "+m.notice))
	}

	sections = append(sections,
		titleStyle.Render(fmt.Sprintf("Gallery (%d)", m.collection.Len())),
		m.gallery.View(),
		m.renderLogs(),
	)

	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s | %s", m.status, m.help.ShortHelpView(m.keys.ShortHelp())),
	)
	sections = append(sections, statusBar)

	return strings.Join(sections, "\n")
}

func (m Model) renderPermissions() string {
	line := fmt.Sprintf("Camera: %s | Library: %s",
		m.perms[permission.Camera], m.perms[permission.MediaLibrary])
	if m.server != nil && m.server.IsRunning() {
		line += fmt.Sprintf(" | Mirror: http://localhost:%s", m.server.Port())
	}
	return line
}

func (m Model) renderCameraPanel() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("Camera"))
	content.WriteString(fmt.Sprintf("\n• Device: %s (%dx%d)",
		m.surface.DeviceID, m.surface.Stream.Width, m.surface.Stream.Height))
	content.WriteString(fmt.Sprintf("\n• State: %s", m.session.State()))
	if m.session.Recording() {
		content.WriteString("  " + recordingStyle.Render("● REC"))
	}
	return panelStyle.Render(content.String())
}

func (m Model) renderLogs() string {
	lines := m.logs.Recent(logLines)
	for i, l := range lines {
		lines[i] = logStyle.Render(l)
	}
	return strings.Join(lines, "\n")
}
