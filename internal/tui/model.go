// internal/tui/model.go
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/camroll/internal/capture"
	"github.com/AlverezYari/camroll/internal/logging"
	"github.com/AlverezYari/camroll/internal/media"
	"github.com/AlverezYari/camroll/internal/permission"
	"github.com/AlverezYari/camroll/internal/server"
	"github.com/AlverezYari/camroll/pkg/camera"
)

// Msg types
type tickMsg time.Time

type permissionMsg struct {
	capability permission.Capability
	state      permission.State
}

type libraryLoadedMsg struct{ err error }

type mountedMsg struct{ err error }

type captureDoneMsg struct{ err error }

type recordingMsg struct {
	started bool
	err     error
}

type sessionEventMsg capture.Event

type noticeMsg permission.Notice

type keyMap struct {
	Capture key.Binding
	Record  key.Binding
	Keep    key.Binding
	Dismiss key.Binding
	Recheck key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Capture: key.NewBinding(key.WithKeys(" ", "c"), key.WithHelp("space", "photo")),
		Record:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record")),
		Keep:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "keep video")),
		Dismiss: key.NewBinding(key.WithKeys("x", "esc"), key.WithHelp("x", "dismiss")),
		Recheck: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "re-check")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Capture, k.Record, k.Keep, k.Dismiss, k.Recheck, k.Quit}
}

// Deps is everything the screen drives. Server may be nil.
type Deps struct {
	Gate       *permission.Gate
	Session    *capture.Session
	Collection *media.Collection
	Library    media.AssetSource
	Surface    camera.Surface
	Server     *server.Server
	Logs       *logging.Ring
}

// Model holds the camera roll screen state
type Model struct {
	gate       *permission.Gate
	session    *capture.Session
	collection *media.Collection
	library    media.AssetSource
	surface    camera.Surface
	server     *server.Server
	logs       *logging.Ring

	perms           map[permission.Capability]permission.State
	libraryResolved bool
	libraryLoaded   bool
	notice          string
	status          string
	capturing       bool
	width           int
	height          int
	currentTime     time.Time
	gallery         viewport.Model
	keys            keyMap
	help            help.Model
}

// New returns a Model with initial state
func New(deps Deps) Model {
	logs := deps.Logs
	if logs == nil {
		logs = logging.NewRing(100)
	}
	return Model{
		gate:       deps.Gate,
		session:    deps.Session,
		collection: deps.Collection,
		library:    deps.Library,
		surface:    deps.Surface,
		server:     deps.Server,
		logs:       logs,
		perms: map[permission.Capability]permission.State{
			permission.Camera:       permission.Unknown,
			permission.MediaLibrary: permission.Unknown,
		},
		status:      "Checking permissions...",
		currentTime: time.Now(),
		gallery: func() viewport.Model {
			vp := viewport.New(0, 10)
			vp.MouseWheelEnabled = true
			return vp
		}(),
		keys: defaultKeyMap(),
		help: help.New(),
	}
}

// Init resolves both capabilities independently and starts listening for
// session events and permission notices.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		resolvePermission(m.gate, permission.Camera),
		resolvePermission(m.gate, permission.MediaLibrary),
		waitForEvent(m.session.Events()),
		waitForNotice(m.gate.Notices()),
		timeTickCmd(),
	)
}

func (m Model) cameraGranted() bool {
	return m.perms[permission.Camera] == permission.Granted
}

func resolvePermission(gate *permission.Gate, c permission.Capability) tea.Cmd {
	return func() tea.Msg {
		return permissionMsg{capability: c, state: gate.Resolve(context.Background(), c)}
	}
}

func recheckPermission(gate *permission.Gate, c permission.Capability) tea.Cmd {
	return func() tea.Msg {
		return permissionMsg{capability: c, state: gate.Recheck(context.Background(), c)}
	}
}

func loadLibrary(collection *media.Collection, src media.AssetSource) tea.Cmd {
	return func() tea.Msg {
		return libraryLoadedMsg{err: collection.LoadFrom(context.Background(), src)}
	}
}

func mountSession(session *capture.Session, surface camera.Surface) tea.Cmd {
	return func() tea.Msg {
		return mountedMsg{err: session.Mount(surface)}
	}
}

func revokeSession(session *capture.Session) tea.Cmd {
	return func() tea.Msg {
		session.Revoke()
		return nil
	}
}

func takePicture(session *capture.Session) tea.Cmd {
	return func() tea.Msg {
		return captureDoneMsg{err: session.TakePicture(context.Background())}
	}
}

func toggleRecording(session *capture.Session, recording bool) tea.Cmd {
	return func() tea.Msg {
		if recording {
			return recordingMsg{started: false, err: session.StopRecording(context.Background())}
		}
		return recordingMsg{started: true, err: session.StartRecording(context.Background())}
	}
}

func waitForEvent(events <-chan capture.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return sessionEventMsg(e)
	}
}

func waitForNotice(notices <-chan permission.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
