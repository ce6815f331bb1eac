//go:build gocv

// pkg/camera/device.go
package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DeviceCamera drives a real capture device through OpenCV.
type DeviceCamera struct {
	dir string

	mu      sync.Mutex
	seq     uint64
	current uint64
	cap     *gocv.VideoCapture
	stream  StreamConfig
	rec     *activeRecording
}

func NewDeviceCamera(dir string) *DeviceCamera {
	return &DeviceCamera{dir: dir}
}

func deviceIndex(deviceID string) (int, error) {
	if deviceID == "" || deviceID == "Built-in Camera" {
		return 0, nil
	}
	idx, err := strconv.Atoi(deviceID)
	if err != nil {
		return 0, fmt.Errorf("invalid device ID: %s", deviceID)
	}
	return idx, nil
}

// RequestPermission probes the default device. On hosts that gate camera
// access the open fails until the user grants it.
func (d *DeviceCamera) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cap != nil {
		return true, nil
	}

	cap, err := gocv.OpenVideoCapture(0)
	if err != nil {
		return false, nil
	}
	defer cap.Close()
	return cap.IsOpened(), nil
}

func (d *DeviceCamera) ScanDevices() ([]Device, error) {
	var devices []Device

	// Usually, camera 0 is the built-in webcam
	cap, err := gocv.OpenVideoCapture(0)
	if err == nil {
		cap.Close()
		devices = append(devices, Device{
			ID:          "0",
			Name:        "Built-in Camera",
			IsAvailable: true,
			DeviceType:  USBCamera,
		})
	}

	for i := 1; i < 5; i++ {
		cap, err := gocv.OpenVideoCapture(i)
		if err == nil {
			cap.Close()
			devices = append(devices, Device{
				ID:          fmt.Sprintf("%d", i),
				Name:        fmt.Sprintf("Camera %d", i),
				IsAvailable: true,
				DeviceType:  USBCamera,
			})
		}
	}

	return devices, nil
}

func (d *DeviceCamera) Bind(surface Surface) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != 0 {
		return Handle{}, ErrHardwareBusy
	}

	idx, err := deviceIndex(surface.DeviceID)
	if err != nil {
		return Handle{}, err
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return Handle{}, fmt.Errorf("error creating capture directory: %w", err)
	}

	cap, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return Handle{}, fmt.Errorf("error opening camera %s: %w", surface.DeviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return Handle{}, fmt.Errorf("camera %s is not open", surface.DeviceID)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(surface.Stream.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(surface.Stream.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(surface.Stream.Framerate))

	d.seq++
	d.current = d.seq
	d.cap = cap
	d.stream = surface.Stream
	if d.stream.Framerate <= 0 {
		d.stream.Framerate = 30
	}
	return Handle{DeviceID: surface.DeviceID, token: d.seq}, nil
}

func (d *DeviceCamera) Release(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h.token != d.current || d.current == 0 {
		return ErrUnbound
	}
	d.current = 0
	cap := d.cap
	d.cap = nil
	if d.rec != nil {
		// the recording loop closes the capture once it drains
		d.rec.halt()
		return nil
	}
	if err := cap.Close(); err != nil {
		return fmt.Errorf("error closing camera %s: %w", h.DeviceID, err)
	}
	return nil
}

func (d *DeviceCamera) CapturePhoto(ctx context.Context, h Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h.token != d.current || d.current == 0 {
		return "", ErrUnbound
	}
	if d.rec != nil {
		return "", ErrHardwareBusy
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.cap.Read(&img); !ok || img.Empty() {
		return "", fmt.Errorf("failed to read frame from camera %s: %w", h.DeviceID, ErrHardwareBusy)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(d.dir, fmt.Sprintf("IMG_%s.jpg", time.Now().Format("20060102_150405.000")))
	if ok := gocv.IMWrite(path, img); !ok {
		return "", fmt.Errorf("failed to write photo %s", path)
	}
	return path, nil
}

func (d *DeviceCamera) StartVideoCapture(ctx context.Context, h Handle) (<-chan VideoResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h.token != d.current || d.current == 0 {
		return nil, ErrUnbound
	}
	if d.rec != nil {
		return nil, ErrHardwareBusy
	}

	img := gocv.NewMat()
	if ok := d.cap.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, fmt.Errorf("failed to read frame from camera %s: %w", h.DeviceID, ErrHardwareBusy)
	}

	path := filepath.Join(d.dir, fmt.Sprintf("VID_%s.avi", time.Now().Format("20060102_150405.000")))
	writer, err := gocv.VideoWriterFile(path, "MJPG", float64(d.stream.Framerate), img.Cols(), img.Rows(), true)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("error opening video writer: %w", err)
	}

	rec := &activeRecording{token: h.token, stop: make(chan struct{})}
	d.rec = rec
	cap := d.cap
	results := make(chan VideoResult, 1)

	go func() {
		defer img.Close()
		res := d.record(ctx, rec, cap, writer, &img)
		if closeErr := writer.Close(); closeErr != nil && res.Err == nil {
			res.Err = fmt.Errorf("error closing video writer: %w", closeErr)
		}
		if res.Err == nil {
			res.URI = path
		} else {
			os.Remove(path)
		}

		d.mu.Lock()
		if d.rec == rec {
			d.rec = nil
		}
		if d.cap != cap {
			cap.Close()
		}
		d.mu.Unlock()

		results <- res
	}()
	return results, nil
}

func (d *DeviceCamera) record(ctx context.Context, rec *activeRecording, cap *gocv.VideoCapture, writer *gocv.VideoWriter, img *gocv.Mat) VideoResult {
	for {
		if err := writer.Write(*img); err != nil {
			return VideoResult{Err: fmt.Errorf("error writing frame: %w", err)}
		}

		select {
		case <-rec.stop:
			return VideoResult{}
		case <-ctx.Done():
			return VideoResult{Err: ctx.Err()}
		default:
		}

		if ok := cap.Read(img); !ok || img.Empty() {
			return VideoResult{Err: fmt.Errorf("failed to read frame: %w", ErrHardwareBusy)}
		}
	}
}

func (d *DeviceCamera) StopVideoCapture(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec == nil || d.rec.token != h.token {
		return ErrUnbound
	}
	d.rec.halt()
	return nil
}
