// Package coverimg prepares extracted cover images for export: it bounds
// their dimensions and re-encodes them when needed.
package coverimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/yuanying/bookmeta/internal/metadata"
)

const (
	defaultJPEGQuality = 90
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

var ErrNoCover = errors.New("book has no cover")

// Options controls how covers are rendered. Zero MaxWidth and MaxHeight keep
// the original dimensions.
type Options struct {
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
	MaxPixels   int // total pixel count limit for decode (width * height)
}

// Image is a rendered cover. Warning is set when the original bytes were
// returned because the image could not be processed; Data is still usable.
type Image struct {
	Data    []byte
	Width   int
	Height  int
	Format  string
	Warning string
}

// Renderer bounds cover dimensions.
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer with defaults filled in.
func NewRenderer(opts Options) *Renderer {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if opts.JPEGQuality > 100 {
		opts.JPEGQuality = 100
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = defaultMaxPixels
	}
	return &Renderer{opts: opts}
}

// Render fits cover within the configured bounds. Covers already inside the
// bounds, animated GIFs and undecodable data are passed through unchanged.
func (r *Renderer) Render(cover *metadata.Cover) (Image, error) {
	if cover == nil || len(cover.Data) == 0 {
		return Image{}, ErrNoCover
	}

	out := Image{Data: cover.Data, Format: cover.Format}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(cover.Data))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height

	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if pixels > uint64(r.opts.MaxPixels) {
		out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
		return out, nil
	}

	if !r.needsResize(cfg.Width, cfg.Height) {
		return out, nil
	}

	if cover.Format == "gif" {
		if animated, err := isAnimatedGIF(cover.Data); err == nil && animated {
			out.Warning = "animated gif kept at original size"
			return out, nil
		}
	}

	src, err := imaging.Decode(bytes.NewReader(cover.Data), imaging.AutoOrientation(true))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}

	maxW, maxH := r.opts.MaxWidth, r.opts.MaxHeight
	if maxW <= 0 {
		maxW = src.Bounds().Dx()
	}
	if maxH <= 0 {
		maxH = src.Bounds().Dy()
	}
	processed := imaging.Fit(src, maxW, maxH, imaging.Lanczos)

	var data []byte
	format := "jpeg"
	if hasAlpha(processed) {
		format = "png"
		data, err = encodePNG(processed)
	} else {
		data, err = encodeJPEG(processed, r.opts.JPEGQuality)
	}
	if err != nil {
		return out, fmt.Errorf("%s encode failed: %w", format, err)
	}

	return Image{
		Data:   data,
		Width:  processed.Bounds().Dx(),
		Height: processed.Bounds().Dy(),
		Format: format,
	}, nil
}

func (r *Renderer) needsResize(w, h int) bool {
	return (r.opts.MaxWidth > 0 && w > r.opts.MaxWidth) || (r.opts.MaxHeight > 0 && h > r.opts.MaxHeight)
}

// Extension returns the file extension for a cover format, including the dot.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png", "gif", "bmp":
		return "." + format
	default:
		return ".bin"
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
