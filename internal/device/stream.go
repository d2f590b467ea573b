package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/MegaGrindStone/meet-assistant/internal/capture"
)

// FFmpegStream is a live video stream read through ffmpeg as MJPEG. Every Attach starts its own ffmpeg
// process on the configured input.
type FFmpegStream struct {
	path  string
	input []string

	mu       sync.Mutex
	attached map[*ffmpegVideo]struct{}
	stopped  bool

	logger *slog.Logger
}

// FFmpegScreen requests display streams captured by ffmpeg.
type FFmpegScreen struct {
	path  string
	input []string

	logger *slog.Logger
}

const maxFrameSize = 8 << 20

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}

	errStreamStopped = errors.New("stream stopped")
	errNoFrames      = errors.New("stream ended before the first frame")
)

// NewFFmpegStream returns a stream reading input, the ffmpeg input arguments. When input is empty the
// default camera of the platform is used.
func NewFFmpegStream(ffmpeg string, input []string, logger *slog.Logger) (*FFmpegStream, error) {
	path, err := lookPath(ffmpeg)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 {
		input = CameraInput(runtime.GOOS, 0)
	}
	return &FFmpegStream{
		path:     path,
		input:    input,
		attached: make(map[*ffmpegVideo]struct{}),
		logger:   logger.With(slog.String("module", "stream")),
	}, nil
}

// NewFFmpegScreen returns a screen source reading input. When input is empty the main display of the
// platform is used.
func NewFFmpegScreen(ffmpeg string, input []string, logger *slog.Logger) (*FFmpegScreen, error) {
	path, err := lookPath(ffmpeg)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 {
		input = ScreenInput(runtime.GOOS)
	}
	return &FFmpegScreen{
		path:   path,
		input:  input,
		logger: logger.With(slog.String("module", "screen")),
	}, nil
}

// CameraInput returns the ffmpeg input arguments of camera index on goos.
func CameraInput(goos string, index int) []string {
	switch goos {
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", "30", "-i", fmt.Sprintf("%d", index)}
	case "windows":
		return []string{"-f", "dshow", "-i", fmt.Sprintf("video=%d", index)}
	default:
		return []string{"-f", "v4l2", "-i", fmt.Sprintf("/dev/video%d", index)}
	}
}

// ScreenInput returns the ffmpeg input arguments of the main display on goos.
func ScreenInput(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", "1:none"}
	case "windows":
		return []string{"-f", "gdigrab", "-i", "desktop"}
	default:
		return []string{"-f", "x11grab", "-i", ":0.0"}
	}
}

// RequestDisplay starts a display stream. Each frame grab attaches its own ffmpeg process.
func (s *FFmpegScreen) RequestDisplay(context.Context) (capture.Stream, error) {
	return &FFmpegStream{
		path:     s.path,
		input:    s.input,
		attached: make(map[*ffmpegVideo]struct{}),
		logger:   s.logger,
	}, nil
}

// Attach starts ffmpeg and returns a video showing the latest decoded frame.
func (s *FFmpegStream) Attach(ctx context.Context) (capture.AttachedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errStreamStopped
	}

	args := append([]string{"-loglevel", "error"}, s.input...)
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")

	cmd := exec.CommandContext(ctx, s.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	v := newFFmpegVideo(cmd, func(v *ffmpegVideo) {
		s.mu.Lock()
		delete(s.attached, v)
		s.mu.Unlock()
	})
	s.attached[v] = struct{}{}

	go func() {
		err := v.readFrames(stdout)
		if waitErr := cmd.Wait(); err == nil && waitErr != nil && !v.isClosed() {
			err = fmt.Errorf("ffmpeg failed: %w: %s", waitErr, bytes.TrimSpace(stderr.Bytes()))
		}
		v.finish(err)
		if err != nil && !v.isClosed() {
			s.logger.Debug("Stream reader ended", slog.String(errLoggerKey, err.Error()))
		}
	}()

	return v, nil
}

// Stop ends every attached ffmpeg process. Attaching afterwards fails.
func (s *FFmpegStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	videos := make([]*ffmpegVideo, 0, len(s.attached))
	for v := range s.attached {
		videos = append(videos, v)
	}
	s.mu.Unlock()

	for _, v := range videos {
		_ = v.Close()
	}
}

// ffmpegVideo holds the latest frame decoded from an MJPEG pipe.
type ffmpegVideo struct {
	cmd      *exec.Cmd
	detach   func(*ffmpegVideo)
	playable chan error

	mu      sync.Mutex
	frame   image.Image
	started bool
	closed  bool
}

func newFFmpegVideo(cmd *exec.Cmd, detach func(*ffmpegVideo)) *ffmpegVideo {
	return &ffmpegVideo{
		cmd:      cmd,
		detach:   detach,
		playable: make(chan error, 1),
	}
}

func (v *ffmpegVideo) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame != nil
}

func (v *ffmpegVideo) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame == nil {
		return 0, 0
	}
	b := v.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (v *ffmpegVideo) Frame() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frame == nil {
		return nil, errNoFrames
	}
	return v.frame, nil
}

func (v *ffmpegVideo) Playable() <-chan error {
	return v.playable
}

func (v *ffmpegVideo) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	if v.detach != nil {
		v.detach(v)
	}
	if v.cmd != nil && v.cmd.Process != nil {
		_ = v.cmd.Process.Kill()
	}
	return nil
}

func (v *ffmpegVideo) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// readFrames decodes every JPEG of r into the current frame until r ends.
func (v *ffmpegVideo) readFrames(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 256*1024), maxFrameSize)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			continue
		}
		v.setFrame(img)
	}
	return scanner.Err()
}

func (v *ffmpegVideo) setFrame(img image.Image) {
	v.mu.Lock()
	v.frame = img
	first := !v.started
	v.started = true
	v.mu.Unlock()

	if first {
		v.playable <- nil
	}
}

// finish reports the end of the pipe to a caller still waiting for the first frame.
func (v *ffmpegVideo) finish(err error) {
	v.mu.Lock()
	started := v.started
	v.started = true
	v.mu.Unlock()
	if started {
		return
	}

	if err == nil {
		err = errNoFrames
	}
	v.playable <- err
}

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from a concatenated stream. Bytes before
// a start of image marker are dropped.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegStart)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin a marker.
		return max(len(data)-1, 0), nil, nil
	}

	end := bytes.Index(data[start+len(jpegStart):], jpegEnd)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	end += start + len(jpegStart) + len(jpegEnd)
	return end, data[start:end], nil
}
