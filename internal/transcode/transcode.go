// Package transcode turns original image bytes into WebP derivatives,
// doing only the decode, resize and encode work a request actually needs.
package transcode

import (
	"bytes"
	"fmt"
	"math"

	"github.com/trunov/imagegate/internal/entities"
	"github.com/trunov/imagegate/internal/processor"
)

// Stage identifies where in the pipeline a codec failure happened.
type Stage string

const (
	StageDecode Stage = "decode"
	StageResize Stage = "resize"
	StageEncode Stage = "encode"
)

// CodecError is a fatal failure of one pipeline stage. There are no partial
// results and no fallback format; the request is aborted.
type CodecError struct {
	Stage Stage
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// Pipeline transcodes originals into WebP derivatives. It holds no state
// across requests; each call owns its working buffers exclusively.
type Pipeline struct{}

func New() *Pipeline {
	return &Pipeline{}
}

// Transcode produces the WebP derivative for data. targetWidth of 0 means
// no resize was requested.
//
// A WebP original with no resize request is already the derivative: the
// input bytes are returned unmodified without ever decoding them. Otherwise
// the image is decoded, resized only when the target width differs from the
// decoded width (proportional, width-driven), and encoded as WebP. The
// encode quality is forwarded unless the source was already WebP; in that
// case the encoder's default is used, since the source's quality was chosen
// at ingestion.
func (p *Pipeline) Transcode(data []byte, format entities.Format, quality, targetWidth int) ([]byte, error) {
	if format == entities.FormatWebP && targetWidth == 0 {
		return data, nil
	}

	imgp := &processor.ImageProcessor{}
	if err := imgp.Load(bytes.NewReader(data), format); err != nil {
		return nil, &CodecError{Stage: StageDecode, Err: err}
	}

	if targetWidth > 0 {
		width, height := imgp.Bounds()
		if width == 0 {
			return nil, &CodecError{Stage: StageResize, Err: fmt.Errorf("decoded image has zero width")}
		}
		if targetWidth != width {
			newHeight := int(math.Round(float64(height) * float64(targetWidth) / float64(width)))
			imgp.Resize(targetWidth, newHeight)
		}
	}

	var out []byte
	var err error
	if format == entities.FormatWebP {
		out, err = imgp.EncodeWebPDefault()
	} else {
		out, err = imgp.EncodeWebP(quality)
	}
	if err != nil {
		return nil, &CodecError{Stage: StageEncode, Err: err}
	}

	return out, nil
}
