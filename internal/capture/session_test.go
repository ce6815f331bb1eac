package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AlverezYari/camroll/internal/capture"
	"github.com/AlverezYari/camroll/internal/media"
	"github.com/AlverezYari/camroll/internal/permission"
	"github.com/AlverezYari/camroll/mocks"
	"github.com/AlverezYari/camroll/pkg/camera"
	"github.com/AlverezYari/camroll/pkg/medialib"
)

type grants map[permission.Capability]permission.State

func (g grants) State(c permission.Capability) permission.State {
	return g[c]
}

var (
	allGranted = grants{permission.Camera: permission.Granted, permission.MediaLibrary: permission.Granted}
	surface    = camera.Surface{DeviceID: "cam0", Stream: camera.StreamConfig{Width: 640, Height: 480, Framerate: 30}}
	handle     = camera.Handle{DeviceID: "cam0"}
)

type fixture struct {
	cam        *mocks.MockCameraService
	lib        *mocks.MockLibrary
	collection *media.Collection
	persist    *capture.Persister
	session    *capture.Session
}

func newFixture(t *testing.T, perms grants, cfg capture.Config) *fixture {
	t.Helper()
	f := &fixture{
		cam:        new(mocks.MockCameraService),
		lib:        new(mocks.MockLibrary),
		collection: media.NewCollection(),
	}
	f.persist = capture.NewPersister(f.lib, perms, 2, time.Second)
	f.session = capture.NewSession(f.cam, perms, f.collection, f.persist, cfg)
	t.Cleanup(func() {
		f.persist.Close()
	})
	return f
}

func (f *fixture) mount(t *testing.T) {
	t.Helper()
	f.cam.On("Bind", surface).Return(handle, nil).Once()
	require.NoError(t, f.session.Mount(surface))
	require.Equal(t, capture.Idle, f.session.State())
}

// waitFor drains session events until one of kind arrives.
func waitFor(t *testing.T, s *capture.Session, kind capture.EventKind) capture.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-s.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
			return capture.Event{}
		}
	}
}

func TestStartsUnbound(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	assert.Equal(t, capture.Unbound, f.session.State())
	assert.False(t, f.session.Recording())
	assert.Empty(t, f.session.PendingVideo())
}

func TestCameraDeniedKeepsSessionUnbound(t *testing.T) {
	denied := grants{permission.Camera: permission.Denied, permission.MediaLibrary: permission.Granted}
	f := newFixture(t, denied, capture.DefaultConfig())
	ctx := context.Background()

	err := f.session.Mount(surface)
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Equal(t, capture.Unbound, f.session.State())

	require.NoError(t, f.session.StartRecording(ctx))
	assert.Equal(t, capture.Unbound, f.session.State())

	err = f.session.TakePicture(ctx)
	assert.ErrorIs(t, err, capture.ErrHardwareUnavailable)
	assert.ErrorIs(t, err, camera.ErrUnbound)
	assert.Zero(t, f.collection.Len())

	f.cam.AssertNotCalled(t, "Bind", mock.Anything)
	f.cam.AssertNotCalled(t, "StartVideoCapture", mock.Anything, mock.Anything)
	f.cam.AssertNotCalled(t, "CapturePhoto", mock.Anything, mock.Anything)
}

func TestCameraUnknownKeepsSessionUnbound(t *testing.T) {
	f := newFixture(t, grants{}, capture.DefaultConfig())
	assert.ErrorIs(t, f.session.Mount(surface), capture.ErrPermissionDenied)
	assert.Equal(t, capture.Unbound, f.session.State())
}

func TestBindFailureStaysUnbound(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.cam.On("Bind", surface).Return(camera.Handle{}, camera.ErrHardwareBusy)

	err := f.session.Mount(surface)
	assert.ErrorIs(t, err, capture.ErrHardwareUnavailable)
	assert.Equal(t, capture.Unbound, f.session.State())

	require.NoError(t, f.session.StartRecording(context.Background()))
	assert.Equal(t, capture.Unbound, f.session.State())
	f.cam.AssertNotCalled(t, "StartVideoCapture", mock.Anything, mock.Anything)
}

func TestTakePicturePrependsPhoto(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.collection.Load([]media.Item{{ID: "old", URI: "/lib/old.jpg", Kind: media.KindPhoto}})
	f.mount(t)

	f.cam.On("CapturePhoto", mock.Anything, handle).Return("/captures/IMG_0001.jpg", nil)
	f.lib.On("Persist", mock.Anything, "/captures/IMG_0001.jpg", medialib.KindPhoto).Return(nil)

	require.NoError(t, f.session.TakePicture(context.Background()))

	snap := f.collection.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, media.KindPhoto, snap[0].Kind)
	assert.Equal(t, "/captures/IMG_0001.jpg", snap[0].URI)
	assert.NotEmpty(t, snap[0].ID)
	assert.Equal(t, media.ID("old"), snap[1].ID)
	assert.Equal(t, capture.Idle, f.session.State())

	e := waitFor(t, f.session, capture.EventPhotoCaptured)
	assert.Equal(t, snap[0].ID, e.Item.ID)

	f.persist.Wait()
	f.lib.AssertExpectations(t)
}

func TestConcurrentPicturesFollowCompletionOrder(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.cam.On("CapturePhoto", mock.Anything, handle).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return("/captures/IMG_slow.jpg", nil).Once()
	f.cam.On("CapturePhoto", mock.Anything, handle).Return("/captures/IMG_fast.jpg", nil).Once()
	f.lib.On("Persist", mock.Anything, mock.Anything, medialib.KindPhoto).Return(nil)

	slow := make(chan error, 1)
	go func() { slow <- f.session.TakePicture(context.Background()) }()
	<-entered

	require.NoError(t, f.session.TakePicture(context.Background()))
	close(release)
	require.NoError(t, <-slow)

	snap := f.collection.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "/captures/IMG_slow.jpg", snap[0].URI)
	assert.Equal(t, "/captures/IMG_fast.jpg", snap[1].URI)
	assert.NotEqual(t, snap[0].ID, snap[1].ID)

	f.persist.Wait()
}

func TestTakePictureFailureIsNoop(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)
	f.cam.On("CapturePhoto", mock.Anything, handle).Return("", camera.ErrHardwareBusy)

	err := f.session.TakePicture(context.Background())
	assert.ErrorIs(t, err, capture.ErrHardwareUnavailable)
	assert.ErrorIs(t, err, camera.ErrHardwareBusy)
	assert.Equal(t, capture.Idle, f.session.State())
	assert.Zero(t, f.collection.Len())

	e := waitFor(t, f.session, capture.EventNotice)
	assert.Contains(t, e.Notice(), "camera unavailable")
	f.lib.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestPersistenceFailureKeepsPhoto(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)
	f.cam.On("CapturePhoto", mock.Anything, handle).Return("/captures/a.jpg", nil)
	f.lib.On("Persist", mock.Anything, "/captures/a.jpg", medialib.KindPhoto).Return(errors.New("disk full"))

	require.NoError(t, f.session.TakePicture(context.Background()))
	f.persist.Wait()

	assert.Equal(t, 1, f.collection.Len())
	f.lib.AssertExpectations(t)
}

func TestPersistSkippedWithoutLibraryPermission(t *testing.T) {
	perms := grants{permission.Camera: permission.Granted, permission.MediaLibrary: permission.Denied}
	f := newFixture(t, perms, capture.DefaultConfig())
	f.mount(t)
	f.cam.On("CapturePhoto", mock.Anything, handle).Return("/captures/a.jpg", nil)

	require.NoError(t, f.session.TakePicture(context.Background()))
	f.persist.Wait()

	assert.Equal(t, 1, f.collection.Len())
	f.lib.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordThenStop(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	results := make(chan camera.VideoResult, 1)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil).Once()
	f.cam.On("StopVideoCapture", handle).Run(func(mock.Arguments) {
		results <- camera.VideoResult{URI: "/captures/VID_0001.mjpeg"}
	}).Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, f.session.StartRecording(ctx))
	assert.Equal(t, capture.Recording, f.session.State())
	assert.True(t, f.session.Recording())

	// second start while recording is ignored
	require.NoError(t, f.session.StartRecording(ctx))

	require.NoError(t, f.session.StopRecording(ctx))
	assert.False(t, f.session.Recording())

	e := waitFor(t, f.session, capture.EventVideoReady)
	assert.Equal(t, "/captures/VID_0001.mjpeg", e.Video)
	assert.Equal(t, "/captures/VID_0001.mjpeg", f.session.PendingVideo())
	assert.Equal(t, capture.Idle, f.session.State())
	assert.Zero(t, f.collection.Len())

	f.cam.AssertNumberOfCalls(t, "StartVideoCapture", 1)
	f.cam.AssertExpectations(t)
}

func TestStopFailureKeepsRecording(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	results := make(chan camera.VideoResult, 1)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil).Once()
	f.cam.On("StopVideoCapture", handle).Return(errors.New("device wedged")).Once()

	ctx := context.Background()
	require.NoError(t, f.session.StartRecording(ctx))

	err := f.session.StopRecording(ctx)
	assert.ErrorIs(t, err, capture.ErrHardwareUnavailable)
	assert.Equal(t, capture.Recording, f.session.State())
	e := waitFor(t, f.session, capture.EventNotice)
	assert.Equal(t, capture.Recording, e.State)

	// a second stop goes through
	f.cam.On("StopVideoCapture", handle).Run(func(mock.Arguments) {
		results <- camera.VideoResult{URI: "/captures/VID_0002.mjpeg"}
	}).Return(nil).Once()

	require.NoError(t, f.session.StopRecording(ctx))
	waitFor(t, f.session, capture.EventVideoReady)
	assert.Equal(t, capture.Idle, f.session.State())
	assert.Equal(t, "/captures/VID_0002.mjpeg", f.session.PendingVideo())
	f.cam.AssertNumberOfCalls(t, "StopVideoCapture", 2)
}

func TestStopWhenNotRecordingMakesNoCameraCall(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())

	require.NoError(t, f.session.StopRecording(context.Background()))
	assert.Equal(t, capture.Unbound, f.session.State())

	f.mount(t)
	require.NoError(t, f.session.StopRecording(context.Background()))
	assert.Equal(t, capture.Idle, f.session.State())

	f.cam.AssertNotCalled(t, "StopVideoCapture", mock.Anything)
}

func TestStartRecordingFailureReconcilesToIdle(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return(nil, camera.ErrHardwareBusy)

	err := f.session.StartRecording(context.Background())
	assert.ErrorIs(t, err, capture.ErrHardwareUnavailable)
	assert.Equal(t, capture.Idle, f.session.State())

	e := waitFor(t, f.session, capture.EventNotice)
	assert.ErrorIs(t, e.Err, camera.ErrHardwareBusy)
}

func TestRecordingResultErrorReconcilesToIdle(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	results := make(chan camera.VideoResult, 1)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil)

	require.NoError(t, f.session.StartRecording(context.Background()))
	results <- camera.VideoResult{Err: errors.New("sensor disconnected")}

	e := waitFor(t, f.session, capture.EventNotice)
	assert.ErrorIs(t, e.Err, capture.ErrHardwareUnavailable)
	assert.Equal(t, capture.Idle, f.session.State())
	assert.Empty(t, f.session.PendingVideo())
}

func TestHungRecordingRecoversThroughFaulted(t *testing.T) {
	cfg := capture.Config{CaptureTimeout: time.Second, RecordTimeout: 30 * time.Millisecond}
	f := newFixture(t, allGranted, cfg)
	f.mount(t)

	results := make(chan camera.VideoResult)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil)
	f.cam.On("StopVideoCapture", handle).Return(nil)
	f.cam.On("Release", handle).Return(nil)

	require.NoError(t, f.session.StartRecording(context.Background()))

	var sawFaulted bool
	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case e := <-f.session.Events():
			if e.Kind == capture.EventStateChanged && e.State == capture.Faulted {
				sawFaulted = true
			}
			if e.Kind == capture.EventNotice {
				assert.Contains(t, e.Notice(), "timed out")
				done = true
			}
		case <-deadline:
			t.Fatal("hung recording was not recovered")
		}
	}

	assert.True(t, sawFaulted)
	assert.Equal(t, capture.Idle, f.session.State())
	f.cam.AssertCalled(t, "StopVideoCapture", handle)

	// the session accepts a fresh recording afterwards
	require.NoError(t, f.session.StartRecording(context.Background()))
	assert.Equal(t, capture.Recording, f.session.State())
	f.session.Close()
}

func TestUnmountDuringRecordingDiscardsResult(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	results := make(chan camera.VideoResult, 1)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil)
	f.cam.On("StopVideoCapture", handle).Return(nil)
	f.cam.On("Release", handle).Return(nil)

	require.NoError(t, f.session.StartRecording(context.Background()))
	f.session.Unmount()
	assert.Equal(t, capture.Unbound, f.session.State())

	results <- camera.VideoResult{URI: "/captures/late.mjpeg"}
	f.session.Close()

	assert.Empty(t, f.session.PendingVideo())
	f.cam.AssertExpectations(t)
}

func TestRebindReleasesPriorHandle(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	first := camera.Handle{DeviceID: "first"}
	second := camera.Handle{DeviceID: "second"}
	f.cam.On("Bind", surface).Return(first, nil).Once()
	f.cam.On("Bind", surface).Return(second, nil).Once()
	f.cam.On("Release", first).Return(nil).Once()

	require.NoError(t, f.session.Mount(surface))
	require.NoError(t, f.session.Mount(surface))
	assert.Equal(t, capture.Idle, f.session.State())

	var order []string
	for _, call := range f.cam.Calls {
		order = append(order, call.Method)
	}
	assert.Equal(t, []string{"Bind", "Release", "Bind"}, order)

	f.cam.On("CapturePhoto", mock.Anything, second).Return("/captures/b.jpg", nil)
	f.lib.On("Persist", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.session.TakePicture(context.Background()))
	f.persist.Wait()
}

func TestRevokeForcesUnbound(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)
	f.cam.On("Release", handle).Return(nil)

	f.session.Revoke()
	assert.Equal(t, capture.Unbound, f.session.State())

	require.NoError(t, f.session.StartRecording(context.Background()))
	assert.Equal(t, capture.Unbound, f.session.State())
}

func TestDismissAndKeepVideo(t *testing.T) {
	f := newFixture(t, allGranted, capture.DefaultConfig())
	f.mount(t)

	results := make(chan camera.VideoResult, 2)
	f.cam.On("StartVideoCapture", mock.Anything, handle).Return((<-chan camera.VideoResult)(results), nil)
	f.lib.On("Persist", mock.Anything, "/captures/keep.mjpeg", medialib.KindVideo).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.session.StartRecording(ctx))
	results <- camera.VideoResult{URI: "/captures/drop.mjpeg"}
	waitFor(t, f.session, capture.EventVideoReady)

	f.session.DismissVideo()
	assert.Empty(t, f.session.PendingVideo())
	assert.Equal(t, capture.Idle, f.session.State())
	assert.False(t, f.session.KeepVideo())

	require.NoError(t, f.session.StartRecording(ctx))
	results <- camera.VideoResult{URI: "/captures/keep.mjpeg"}
	waitFor(t, f.session, capture.EventVideoReady)

	assert.True(t, f.session.KeepVideo())
	assert.Empty(t, f.session.PendingVideo())

	snap := f.collection.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, media.KindVideo, snap[0].Kind)
	assert.Equal(t, "/captures/keep.mjpeg", snap[0].URI)

	f.persist.Wait()
	f.lib.AssertExpectations(t)
}
