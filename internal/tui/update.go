// internal/tui/update.go
package tui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/AlverezYari/camroll/internal/capture"
	"github.com/AlverezYari/camroll/internal/permission"
)

// Rows taken by everything except the gallery viewport.
const chromeHeight = 16

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gallery.Width = msg.Width
		m.gallery.Height = max(3, msg.Height-chromeHeight)
		m.refreshGallery()
		return m, nil

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case permissionMsg:
		return m.handlePermission(msg)

	case libraryLoadedMsg:
		if msg.err != nil {
			m.notice = "Could not load the media library."
		}
		m.refreshGallery()
		return m, nil

	case mountedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Camera not ready: %v", msg.err)
		}
		return m, nil

	case captureDoneMsg:
		m.capturing = false
		return m, nil

	case recordingMsg:
		if msg.err != nil {
			log.Debug().Err(msg.err).Bool("start", msg.started).Msg("Recording request failed")
		}
		return m, nil

	case sessionEventMsg:
		m.handleSessionEvent(capture.Event(msg))
		return m, waitForEvent(m.session.Events())

	case noticeMsg:
		m.notice = msg.Message
		return m, waitForNotice(m.gate.Notices())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.gallery, cmd = m.gallery.Update(msg)
	return m, cmd
}

func (m Model) handlePermission(msg permissionMsg) (tea.Model, tea.Cmd) {
	m.perms[msg.capability] = msg.state

	switch msg.capability {
	case permission.Camera:
		if msg.state == permission.Granted {
			m.status = "Camera ready"
			if !m.session.Bound() {
				return m, mountSession(m.session, m.surface)
			}
			return m, nil
		}
		m.status = "Camera unavailable"
		return m, revokeSession(m.session)

	case permission.MediaLibrary:
		// Hydration happens once. Re-checks only update the cached state so
		// captures from this session stay in the gallery.
		first := !m.libraryResolved
		m.libraryResolved = true
		if msg.state == permission.Granted {
			if !m.libraryLoaded && (first || m.collection.Len() == 0) {
				m.libraryLoaded = true
				return m, loadLibrary(m.collection, m.library)
			}
			return m, nil
		}
		if first {
			m.collection.Load(nil)
			m.refreshGallery()
		}
	}
	return m, nil
}

func (m *Model) handleSessionEvent(e capture.Event) {
	switch e.Kind {
	case capture.EventStateChanged:
		switch e.State {
		case capture.Recording:
			m.status = "Recording..."
		case capture.Idle:
			m.status = "Camera ready"
		case capture.Unbound:
			m.status = "Camera released"
		case capture.Faulted:
			m.status = "Recovering camera..."
		}
	case capture.EventPhotoCaptured:
		m.status = "Saved " + filepath.Base(e.Item.URI)
		m.refreshGallery()
	case capture.EventVideoReady:
		m.status = "Video ready: s to keep, x to dismiss"
	case capture.EventNotice:
		m.notice = e.Notice()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Capture):
		if !m.cameraGranted() || m.capturing {
			return m, nil
		}
		m.capturing = true
		m.status = "Capturing..."
		return m, takePicture(m.session)

	case key.Matches(msg, m.keys.Record):
		if !m.cameraGranted() {
			return m, nil
		}
		return m, toggleRecording(m.session, m.session.Recording())

	case key.Matches(msg, m.keys.Keep):
		if m.session.KeepVideo() {
			m.status = "Video added to gallery"
			m.refreshGallery()
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.notice != "" {
			m.notice = ""
			return m, nil
		}
		m.session.DismissVideo()
		return m, nil

	case key.Matches(msg, m.keys.Recheck):
		m.status = "Re-checking permissions..."
		return m, tea.Batch(
			recheckPermission(m.gate, permission.Camera),
			recheckPermission(m.gate, permission.MediaLibrary),
		)
	}

	var cmd tea.Cmd
	m.gallery, cmd = m.gallery.Update(msg)
	return m, cmd
}

func (m *Model) refreshGallery() {
	m.gallery.SetContent(renderGallery(m.collection.Snapshot(), m.width))
}
