// Package capture grabs a still frame of what the user is looking at so it can be attached to a chat
// message. Frames come from the videos and canvases of a FrameSource, from a live Stream, or from a
// display stream requested through a ScreenSource.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/fallback"
)

// Config holds the capture thresholds.
type Config struct {
	// MaxWidth bounds the largest side of a video frame, in pixels.
	MaxWidth int `yaml:"maxWidth"`
	// Quality is the JPEG quality, 1 to 100.
	Quality int `yaml:"quality"`
	// MinPayload is the smallest base64 payload accepted from a frame source. Smaller payloads are
	// almost always blank frames.
	MinPayload int `yaml:"minPayload"`
	// MinCanvasSide is the side a canvas has to exceed, in both dimensions, to be considered.
	MinCanvasSide   int           `yaml:"minCanvasSide"`
	PlayableTimeout time.Duration `yaml:"playableTimeout"`
	SettleDelay     time.Duration `yaml:"settleDelay"`
}

// Video is a playing video whose current frame can be read.
type Video interface {
	// Ready reports whether the video has decoded data for the current position.
	Ready() bool
	Size() (width, height int)
	Frame() (image.Image, error)
}

// Canvas is a drawing surface that may hold video content.
type Canvas interface {
	Size() (width, height int)
	Snapshot() (image.Image, error)
}

// FrameSource lists the candidates CaptureFrame looks at, in the order they should be tried.
type FrameSource interface {
	Videos() []Video
	Canvases() []Canvas
}

// AttachedVideo is a temporary player bound to a Stream. Playable delivers exactly one value once the
// player either starts playing (nil) or fails. Close detaches the player from the stream.
type AttachedVideo interface {
	Video
	Playable() <-chan error
	Close() error
}

// Stream is a live media stream. Stop ends all of its tracks.
type Stream interface {
	Attach(ctx context.Context) (AttachedVideo, error)
	Stop()
}

// ScreenSource asks the host for a stream of the user's display.
type ScreenSource interface {
	RequestDisplay(ctx context.Context) (Stream, error)
}

// Frame is a captured still, JPEG encoded and base64 encoded without a data URL prefix. The zero Frame
// means nothing was captured.
type Frame struct {
	Base64 string
	Width  int
	Height int
	Source string
}

// IsZero reports whether f holds no image.
func (f Frame) IsZero() bool {
	return f.Base64 == ""
}

var (
	// ErrNoFrame is returned when no candidate produced a usable frame.
	ErrNoFrame = errors.New("no capturable video found")
	// ErrNoScreen is returned by CaptureScreen when the host cannot share its display.
	ErrNoScreen = errors.New("screen capture is not available")

	errNotReady   = errors.New("video not ready")
	errNoSize     = errors.New("video has no dimensions")
	errTooSmall   = errors.New("canvas too small")
	errBlankFrame = errors.New("frame payload too small")
)

const errLoggerKey = "err"

// DefaultConfig returns the thresholds used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		MaxWidth:        640,
		Quality:         70,
		MinPayload:      1000,
		MinCanvasSide:   100,
		PlayableTimeout: 5 * time.Second,
		SettleDelay:     100 * time.Millisecond,
	}
}

// Capturer captures frames. Captures may overlap; IsCapturing is true while at least one runs.
type Capturer struct {
	cfg    Config
	source FrameSource
	screen ScreenSource

	mu    sync.Mutex
	busy  int
	last  Frame
	debug string

	logger *slog.Logger
}

// NewCapturer creates a Capturer. source and screen may be nil when the host has no such capability.
// Zero fields of cfg are replaced by their defaults.
func NewCapturer(cfg Config, source FrameSource, screen ScreenSource, logger *slog.Logger) *Capturer {
	def := DefaultConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	if cfg.MinPayload <= 0 {
		cfg.MinPayload = def.MinPayload
	}
	if cfg.MinCanvasSide <= 0 {
		cfg.MinCanvasSide = def.MinCanvasSide
	}
	if cfg.PlayableTimeout <= 0 {
		cfg.PlayableTimeout = def.PlayableTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}

	return &Capturer{
		cfg:    cfg,
		source: source,
		screen: screen,
		logger: logger.With(slog.String("module", "capture")),
	}
}

// IsCapturing reports whether a capture is in progress.
func (c *Capturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy > 0
}

// LastFrame returns the most recent successful capture.
func (c *Capturer) LastFrame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Debug describes what the last CaptureFrame call found.
func (c *Capturer) Debug() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debug
}

// ClearFrame forgets the last captured frame.
func (c *Capturer) ClearFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = Frame{}
	c.debug = ""
}

// CaptureFrame looks for something to capture in the frame source. Videos are tried in order, then
// canvases from the largest down. A candidate that fails, is not ready, or yields a payload no larger
// than MinPayload is skipped. ErrNoFrame is returned when nothing qualifies.
func (c *Capturer) CaptureFrame(ctx context.Context) (Frame, error) {
	c.begin()
	defer c.end()

	if c.source == nil {
		c.setDebug("No frame source.")
		return Frame{}, ErrNoFrame
	}

	videos := c.source.Videos()
	canvases := c.source.Canvases()
	debug := fmt.Sprintf("Found %d videos. Found %d canvases. ", len(videos), len(canvases))

	steps := make([]fallback.Step[Frame], 0, len(videos)+len(canvases))
	for i, v := range videos {
		name := fmt.Sprintf("video %d", i)
		steps = append(steps, fallback.Step[Frame]{
			Name: name,
			Try: func(context.Context) (Frame, error) {
				f, err := c.fromVideo(v, name)
				if err != nil {
					return Frame{}, err
				}
				return c.checkPayload(f)
			},
		})
	}

	sorted := make([]Canvas, len(canvases))
	copy(sorted, canvases)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, hi := sorted[i].Size()
		wj, hj := sorted[j].Size()
		return wi*hi > wj*hj
	})
	for i, cv := range sorted {
		name := fmt.Sprintf("canvas %d", i)
		steps = append(steps, fallback.Step[Frame]{
			Name: name,
			Try: func(context.Context) (Frame, error) {
				f, err := c.fromCanvas(cv, name)
				if err != nil {
					return Frame{}, err
				}
				return c.checkPayload(f)
			},
		})
	}

	frame, _, err := fallback.First(ctx, c.logger, steps...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		c.setDebug(debug + "No capturable video found.")
		c.logger.Warn("No active video found to capture")
		return Frame{}, ErrNoFrame
	}

	c.setDebug(debug + fmt.Sprintf("Captured from %s %dx%d", frame.Source, frame.Width, frame.Height))
	c.remember(frame)
	return frame, nil
}

// CaptureFromStream attaches a temporary player to s, waits until it plays (bounded by PlayableTimeout),
// lets it settle and captures its current frame. The player is detached on every path; s itself keeps
// running.
func (c *Capturer) CaptureFromStream(ctx context.Context, s Stream) (Frame, error) {
	c.begin()
	defer c.end()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PlayableTimeout)
	defer cancel()

	v, err := s.Attach(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to attach to stream: %w", err)
	}
	defer func() {
		if err := v.Close(); err != nil {
			c.logger.Debug("Failed to detach from stream", slog.String(errLoggerKey, err.Error()))
		}
	}()

	select {
	case err := <-v.Playable():
		if err != nil {
			return Frame{}, fmt.Errorf("stream did not start playing: %w", err)
		}
	case <-ctx.Done():
		return Frame{}, fmt.Errorf("stream did not start playing: %w", ctx.Err())
	}

	if c.cfg.SettleDelay > 0 {
		timer := time.NewTimer(c.cfg.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Frame{}, ctx.Err()
		}
	}

	frame, err := c.fromVideo(v, "stream")
	if err != nil {
		return Frame{}, err
	}

	c.remember(frame)
	return frame, nil
}

// CaptureScreen requests the user's display and captures one frame of it. The display stream is stopped
// before CaptureScreen returns, whatever the outcome.
func (c *Capturer) CaptureScreen(ctx context.Context) (Frame, error) {
	c.begin()
	defer c.end()

	if c.screen == nil {
		return Frame{}, ErrNoScreen
	}

	s, err := c.screen.RequestDisplay(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to request display: %w", err)
	}
	defer s.Stop()

	frame, err := c.CaptureFromStream(ctx, s)
	if err != nil {
		return Frame{}, err
	}
	frame.Source = "screen"
	return frame, nil
}

func (c *Capturer) fromVideo(v Video, name string) (Frame, error) {
	if !v.Ready() {
		return Frame{}, errNotReady
	}
	w, h := v.Size()
	if w <= 0 || h <= 0 {
		return Frame{}, errNoSize
	}

	img, err := v.Frame()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}

	f, err := Encode(Downscale(img, c.cfg.MaxWidth), c.cfg.Quality)
	if err != nil {
		return Frame{}, err
	}
	f.Source = name
	return f, nil
}

func (c *Capturer) fromCanvas(cv Canvas, name string) (Frame, error) {
	w, h := cv.Size()
	if w <= c.cfg.MinCanvasSide || h <= c.cfg.MinCanvasSide {
		return Frame{}, errTooSmall
	}

	img, err := cv.Snapshot()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read canvas: %w", err)
	}

	f, err := Encode(img, c.cfg.Quality)
	if err != nil {
		return Frame{}, err
	}
	f.Source = name
	return f, nil
}

func (c *Capturer) checkPayload(f Frame) (Frame, error) {
	if len(f.Base64) <= c.cfg.MinPayload {
		return Frame{}, errBlankFrame
	}
	return f, nil
}

func (c *Capturer) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy++
}

func (c *Capturer) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy--
}

func (c *Capturer) remember(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = f
}

func (c *Capturer) setDebug(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = s
}
