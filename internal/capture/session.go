// internal/capture/session.go
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AlverezYari/camroll/internal/media"
	"github.com/AlverezYari/camroll/internal/permission"
	"github.com/AlverezYari/camroll/pkg/camera"
)

// Permissions exposes cached capability state.
type Permissions interface {
	State(c permission.Capability) permission.State
}

type Config struct {
	CaptureTimeout time.Duration
	RecordTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		CaptureTimeout: 10 * time.Second,
		RecordTimeout:  5 * time.Minute,
	}
}

// Session owns the camera binding and the photo/video capture protocol.
//
// It starts Unbound and moves to Idle once the camera is granted and a
// surface is mounted. StartRecording moves to Recording before the camera
// confirms; if the request later fails the session falls back to Idle and
// reports ErrHardwareUnavailable. A recording that outlives RecordTimeout
// passes through Faulted back to Idle. Unmount and Revoke force Unbound
// from any state.
type Session struct {
	cam      camera.Service
	perms    Permissions
	media    *media.Collection
	persist  *Persister
	cfg      Config
	events   chan Event
	now      func() time.Time
	done     chan struct{}
	closeMu  sync.Once
	recordWG sync.WaitGroup

	mu           sync.Mutex
	state        State
	handle       camera.Handle
	activeRec    uint64
	recSeq       uint64
	pendingVideo string
}

func NewSession(cam camera.Service, perms Permissions, collection *media.Collection, persist *Persister, cfg Config) *Session {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultConfig().CaptureTimeout
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = DefaultConfig().RecordTimeout
	}
	return &Session{
		cam:     cam,
		perms:   perms,
		media:   collection,
		persist: persist,
		cfg:     cfg,
		events:  make(chan Event, 64),
		now:     time.Now,
		done:    make(chan struct{}),
		state:   Unbound,
	}
}

// Events delivers state changes, captures and notices. Events are dropped
// when the buffer is full.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bound reports whether the camera is attached to a surface.
func (s *Session) Bound() bool {
	return s.State() != Unbound
}

func (s *Session) Recording() bool {
	return s.State() == Recording
}

func (s *Session) PendingVideo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingVideo
}

// Mount binds the camera to surface. It only leaves Unbound when the camera
// capability is granted. A previous binding is released first.
func (s *Session) Mount(surface camera.Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.perms.State(permission.Camera) != permission.Granted {
		s.unbindLocked("camera not granted")
		return ErrPermissionDenied
	}

	s.unbindLocked("rebinding")

	h, err := s.cam.Bind(surface)
	if err != nil {
		log.Error().Err(err).Str("device", surface.DeviceID).Msg("Failed to bind camera")
		err = fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)
		s.emit(Event{Kind: EventNotice, State: s.state, Err: err})
		return err
	}

	s.handle = h
	s.setStateLocked(Idle)
	log.Info().Str("device", surface.DeviceID).Msg("Camera bound")
	return nil
}

// Unmount releases the camera because the capture surface went away.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked("surface unmounted")
}

// Revoke releases the camera because the permission was withdrawn.
func (s *Session) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbindLocked("camera permission revoked")
}

func (s *Session) unbindLocked(reason string) {
	if s.state == Unbound {
		return
	}

	h := s.handle
	if s.activeRec != 0 {
		// the pending result is discarded when it arrives
		s.activeRec = 0
		if err := s.cam.StopVideoCapture(h); err != nil && !errors.Is(err, camera.ErrUnbound) {
			log.Warn().Err(err).Msg("Failed to stop recording while unbinding")
		}
	}
	if err := s.cam.Release(h); err != nil {
		log.Warn().Err(err).Str("device", h.DeviceID).Msg("Failed to release camera")
	}

	s.handle = camera.Handle{}
	s.setStateLocked(Unbound)
	log.Info().Str("reason", reason).Msg("Camera unbound")
}

// TakePicture captures a photo and puts it at the front of the collection,
// then saves it to the library in the background. Failures leave the state
// unchanged and are reported as a notice.
func (s *Session) TakePicture(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Unbound {
		s.mu.Unlock()
		err := fmt.Errorf("%w: %w", ErrHardwareUnavailable, camera.ErrUnbound)
		s.emit(Event{Kind: EventNotice, State: Unbound, Err: err})
		return err
	}
	h := s.handle
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	defer cancel()

	uri, err := s.cam.CapturePhoto(ctx, h)
	if err == nil && uri == "" {
		err = errors.New("camera returned an empty locator")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to take picture")
		err = fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)
		s.emit(Event{Kind: EventNotice, State: s.State(), Err: err})
		return err
	}

	item := media.Item{
		ID:        media.NewID(),
		URI:       uri,
		Kind:      media.KindPhoto,
		CreatedAt: s.now(),
	}
	s.media.Prepend(item)
	if s.persist != nil {
		s.persist.Submit(item)
	}

	log.Info().Str("id", string(item.ID)).Str("uri", uri).Msg("Photo captured")
	s.emit(Event{Kind: EventPhotoCaptured, State: s.State(), Item: item})
	return nil
}

// StartRecording begins a video capture. It is a no-op unless the session
// is Idle with no earlier recording still resolving. The session reports
// Recording before the camera confirms.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle || s.activeRec != 0 {
		log.Debug().Str("state", s.state.String()).Msg("Ignoring start recording")
		return nil
	}

	h := s.handle
	s.recSeq++
	rec := s.recSeq
	s.activeRec = rec
	s.setStateLocked(Recording)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RecordTimeout)
	results, err := s.cam.StartVideoCapture(rctx, h)
	if err != nil {
		cancel()
		log.Error().Err(err).Msg("Failed to start recording")
		err = fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)
		s.activeRec = 0
		s.setStateLocked(Idle)
		s.emit(Event{Kind: EventNotice, State: s.state, Err: err})
		return err
	}

	log.Info().Uint64("recording", rec).Msg("Recording started")
	s.recordWG.Add(1)
	go func() {
		defer s.recordWG.Done()
		defer cancel()
		select {
		case res := <-results:
			s.finishRecording(rec, res)
		case <-rctx.Done():
			s.faultRecording(rec, h)
		case <-s.done:
		}
	}()
	return nil
}

// StopRecording signals the camera to stop. The video locator arrives
// later as an EventVideoReady. It is a no-op, with no camera call, unless
// the session is Recording. If the camera refuses, the session goes back
// to Recording.
func (s *Session) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return nil
	}
	h := s.handle
	rec := s.activeRec
	s.setStateLocked(Idle)
	s.mu.Unlock()

	if err := s.cam.StopVideoCapture(h); err != nil {
		log.Error().Err(err).Msg("Failed to stop recording")
		err = fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)

		s.mu.Lock()
		// the camera is still recording; let the user stop again
		if s.activeRec == rec && rec != 0 && s.state == Idle {
			s.setStateLocked(Recording)
		}
		s.emit(Event{Kind: EventNotice, State: s.state, Err: err})
		s.mu.Unlock()
		return err
	}
	log.Info().Msg("Recording stop requested")
	return nil
}

func (s *Session) finishRecording(rec uint64, res camera.VideoResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRec != rec {
		log.Debug().Uint64("recording", rec).Msg("Discarding result of abandoned recording")
		return
	}
	s.activeRec = 0
	if s.state == Recording {
		s.setStateLocked(Idle)
	}

	if res.Err == nil && res.URI == "" {
		res.Err = errors.New("camera returned an empty locator")
	}
	if res.Err != nil {
		log.Error().Err(res.Err).Msg("Recording failed")
		s.emit(Event{Kind: EventNotice, State: s.state, Err: fmt.Errorf("%w: %w", ErrHardwareUnavailable, res.Err)})
		return
	}

	s.pendingVideo = res.URI
	log.Info().Str("uri", res.URI).Msg("Video ready for preview")
	s.emit(Event{Kind: EventVideoReady, State: s.state, Video: res.URI})
}

func (s *Session) faultRecording(rec uint64, h camera.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRec != rec {
		return
	}
	s.activeRec = 0

	log.Error().Dur("timeout", s.cfg.RecordTimeout).Msg("Recording did not resolve, recovering")
	if err := s.cam.StopVideoCapture(h); err != nil {
		log.Warn().Err(err).Msg("Failed to stop hung recording")
	}
	if s.state != Unbound {
		s.setStateLocked(Faulted)
		s.setStateLocked(Idle)
	}
	err := fmt.Errorf("%w: recording timed out after %s", ErrHardwareUnavailable, s.cfg.RecordTimeout)
	s.emit(Event{Kind: EventNotice, State: s.state, Err: err})
}

// DismissVideo clears the video preview. Recording state is untouched.
func (s *Session) DismissVideo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingVideo = ""
}

// KeepVideo moves the previewed video into the collection and saves it to
// the library. It reports false when there is no preview.
func (s *Session) KeepVideo() bool {
	s.mu.Lock()
	uri := s.pendingVideo
	s.pendingVideo = ""
	s.mu.Unlock()
	if uri == "" {
		return false
	}

	item := media.Item{
		ID:        media.NewID(),
		URI:       uri,
		Kind:      media.KindVideo,
		CreatedAt: s.now(),
	}
	if !s.media.Prepend(item) {
		return false
	}
	if s.persist != nil {
		s.persist.Submit(item)
	}
	return true
}

// Close unbinds and waits for outstanding recording goroutines.
func (s *Session) Close() {
	s.Unmount()
	s.closeMu.Do(func() { close(s.done) })
	s.recordWG.Wait()
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	log.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("Capture state changed")
	s.state = next
	s.emit(Event{Kind: EventStateChanged, State: next})
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		log.Warn().Int("kind", int(e.Kind)).Msg("Dropping capture event, no reader")
	}
}
