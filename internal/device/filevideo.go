package device

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for image.Decode
	_ "image/png"  // register PNG for image.Decode
	"os"

	"github.com/MegaGrindStone/meet-assistant/internal/capture"
)

// FileVideo is a video whose current frame is an image file that another program keeps overwriting,
// such as the snapshot file of a conferencing client or a recorder.
type FileVideo struct {
	Path string
}

// Ready reports whether the file exists and is not empty.
func (f FileVideo) Ready() bool {
	info, err := os.Stat(f.Path)
	return err == nil && info.Size() > 0
}

// Size returns the dimensions stored in the file header, or zeros when it can't be read.
func (f FileVideo) Size() (int, int) {
	file, err := os.Open(f.Path)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// Frame decodes the file.
func (f FileVideo) Frame() (image.Image, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame file: %w", err)
	}
	return img, nil
}

// FileSource returns a frame source offering the files at paths as videos, in order.
func FileSource(paths []string) capture.StaticSource {
	videos := make([]capture.Video, len(paths))
	for i, p := range paths {
		videos[i] = FileVideo{Path: p}
	}
	return capture.StaticSource{VideoList: videos}
}
