package processor

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/trunov/imagegate/internal/entities"
)

// ImageProcessor holds one decoded image through the decode, resize and
// encode stages. It is a per-request transient; nothing here is shared.
type ImageProcessor struct {
	img image.Image
}

// Load decodes the bytes of the given format into memory. The format set is
// closed, so the switch is exhaustive.
func (i *ImageProcessor) Load(r io.Reader, format entities.Format) error {
	var img image.Image
	var err error

	switch format {
	case entities.FormatJPEG:
		img, err = jpeg.Decode(r)
	case entities.FormatPNG:
		img, err = png.Decode(r)
	case entities.FormatWebP:
		img, err = webp.Decode(r)
	}
	if err != nil {
		return err
	}

	i.img = img
	return nil
}

// Resize resamples the held image to width x height with a Lanczos filter.
func (i *ImageProcessor) Resize(width, height int) {
	i.img = imaging.Resize(i.img, width, height, imaging.Lanczos)
}

// EncodeWebP encodes the held image as lossy WebP at the given quality.
func (i *ImageProcessor) EncodeWebP(quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := webp.Encode(buf, i.img, &webp.Options{Quality: float32(quality)})
	return buf.Bytes(), err
}

// EncodeWebPDefault encodes as WebP at the encoder's default quality.
func (i *ImageProcessor) EncodeWebPDefault() ([]byte, error) {
	buf := new(bytes.Buffer)
	err := webp.Encode(buf, i.img, nil)
	return buf.Bytes(), err
}

// Bounds returns the held image's width and height.
func (i *ImageProcessor) Bounds() (int, int) {
	return i.img.Bounds().Dx(), i.img.Bounds().Dy()
}
