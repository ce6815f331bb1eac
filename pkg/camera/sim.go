package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Permission answers a simulated host can give.
const (
	PermissionGranted     = "granted"
	PermissionDenied      = "denied"
	PermissionUnreachable = "unreachable"
)

// Sim is a synthetic camera. Photos are JPEG files and videos are
// motion-JPEG streams (concatenated JPEG frames) written under dir.
type Sim struct {
	dir        string
	permission string

	mu      sync.Mutex
	seq     uint64
	current uint64
	stream  StreamConfig
	shots   int
	rec     *activeRecording
}

type activeRecording struct {
	token    uint64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSim(dir, permission string) *Sim {
	if permission == "" {
		permission = PermissionGranted
	}
	return &Sim{dir: dir, permission: permission}
}

func (s *Sim) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	switch s.permission {
	case PermissionGranted:
		return true, nil
	case PermissionUnreachable:
		return false, fmt.Errorf("camera permission service unreachable")
	default:
		return false, nil
	}
}

func (s *Sim) ScanDevices() ([]Device, error) {
	return []Device{{
		ID:          "sim0",
		Name:        "Synthetic Camera",
		IsAvailable: true,
		DeviceType:  VirtualCamera,
	}}, nil
}

func (s *Sim) Bind(surface Surface) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != 0 {
		return Handle{}, ErrHardwareBusy
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Handle{}, fmt.Errorf("error creating capture directory: %w", err)
	}

	s.seq++
	s.current = s.seq
	s.stream = surface.Stream
	if s.stream.Width <= 0 || s.stream.Height <= 0 {
		s.stream.Width, s.stream.Height = 640, 480
	}
	if s.stream.Framerate <= 0 {
		s.stream.Framerate = 15
	}
	return Handle{DeviceID: surface.DeviceID, token: s.seq}, nil
}

func (s *Sim) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.token != s.current || s.current == 0 {
		return ErrUnbound
	}
	if s.rec != nil {
		s.rec.halt()
	}
	s.current = 0
	return nil
}

func (s *Sim) CapturePhoto(ctx context.Context, h Handle) (string, error) {
	s.mu.Lock()
	if h.token != s.current || s.current == 0 {
		s.mu.Unlock()
		return "", ErrUnbound
	}
	if s.rec != nil {
		s.mu.Unlock()
		return "", ErrHardwareBusy
	}
	s.shots++
	n, stream := s.shots, s.stream
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := encodeFrame(&buf, stream, fmt.Sprintf("IMG %04d", n)); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("IMG_%s_%04d.jpg", time.Now().Format("20060102_150405"), n))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("error writing photo: %w", err)
	}
	return path, nil
}

func (s *Sim) StartVideoCapture(ctx context.Context, h Handle) (<-chan VideoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.token != s.current || s.current == 0 {
		return nil, ErrUnbound
	}
	if s.rec != nil {
		return nil, ErrHardwareBusy
	}

	path := filepath.Join(s.dir, fmt.Sprintf("VID_%s.mjpeg", time.Now().Format("20060102_150405.000")))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating video file: %w", err)
	}

	rec := &activeRecording{token: h.token, stop: make(chan struct{})}
	s.rec = rec
	results := make(chan VideoResult, 1)
	stream := s.stream

	go func() {
		res := s.record(ctx, rec, file, stream)
		if res.Err == nil {
			res.URI = path
		} else {
			os.Remove(path)
		}

		s.mu.Lock()
		if s.rec == rec {
			s.rec = nil
		}
		s.mu.Unlock()

		results <- res
	}()
	return results, nil
}

func (s *Sim) StopVideoCapture(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec == nil || s.rec.token != h.token {
		return ErrUnbound
	}
	s.rec.halt()
	return nil
}

func (r *activeRecording) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (s *Sim) record(ctx context.Context, rec *activeRecording, file *os.File, stream StreamConfig) VideoResult {
	defer file.Close()

	ticker := time.NewTicker(time.Second / time.Duration(stream.Framerate))
	defer ticker.Stop()

	frame := 0
	for {
		frame++
		if err := encodeFrame(file, stream, fmt.Sprintf("REC %05d", frame)); err != nil {
			return VideoResult{Err: fmt.Errorf("error writing frame: %w", err)}
		}

		select {
		case <-rec.stop:
			return VideoResult{}
		case <-ctx.Done():
			return VideoResult{Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// encodeFrame draws a gradient test card with a caption and writes it as JPEG.
func encodeFrame(w io.Writer, stream StreamConfig, caption string) error {
	img := image.NewRGBA(image.Rect(0, 0, stream.Width, stream.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 20, G: 24, B: 38, A: 255}}, image.Point{}, draw.Src)

	for y := 0; y < stream.Height; y += 4 {
		shade := uint8(40 + 160*y/stream.Height)
		band := image.Rect(0, y, stream.Width, y+4)
		draw.Draw(img, band, &image.Uniform{C: color.RGBA{R: shade / 2, G: shade, B: 200, A: 255}}, image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(12, stream.Height-16),
	}
	d.DrawString(caption + "  " + time.Now().Format(time.TimeOnly))

	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("error encoding frame: %w", err)
	}
	return nil
}
