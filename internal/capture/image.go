package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Downscale returns img scaled so that its largest side is at most maxSide, keeping the aspect ratio.
// Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	tw, th := targetSize(w, h, maxSide)
	if tw == w && th == h {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func targetSize(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		th := int(float64(h)*float64(maxSide)/float64(w) + 0.5)
		return maxSide, max(th, 1)
	}
	tw := int(float64(w)*float64(maxSide)/float64(h) + 0.5)
	return max(tw, 1), maxSide
}

// Encode JPEG encodes img and returns it as a base64 Frame.
func Encode(img image.Image, quality int) (Frame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	bounds := img.Bounds()
	return Frame{
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// StaticSource is a FrameSource over fixed lists of videos and canvases.
type StaticSource struct {
	VideoList  []Video
	CanvasList []Canvas
}

// Videos implements FrameSource.
func (s StaticSource) Videos() []Video {
	return s.VideoList
}

// Canvases implements FrameSource.
func (s StaticSource) Canvases() []Canvas {
	return s.CanvasList
}

// ImageCanvas is a Canvas holding a fixed image.
type ImageCanvas struct {
	Image image.Image
}

// Size implements Canvas.
func (c ImageCanvas) Size() (int, int) {
	if c.Image == nil {
		return 0, 0
	}
	b := c.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot implements Canvas.
func (c ImageCanvas) Snapshot() (image.Image, error) {
	if c.Image == nil {
		return nil, errNoSize
	}
	return c.Image, nil
}
