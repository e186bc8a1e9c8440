package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/imagegate/internal/entities"
)

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(width, height)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(width, height), nil))
	return buf.Bytes()
}

func encodeWebP(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, testImage(width, height), nil))
	return buf.Bytes()
}

func decodeDims(t *testing.T, webpBytes []byte) (int, int) {
	t.Helper()
	img, err := webp.Decode(bytes.NewReader(webpBytes))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestFastPathReturnsInputUnmodified(t *testing.T) {
	p := New()

	// Deliberately not valid WebP: the fast path must never decode, so
	// garbage has to come back byte-identical.
	input := []byte("not actually webp")

	out, err := p.Transcode(input, entities.FormatWebP, 75, 0)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestResizeProportionalWidthDriven(t *testing.T) {
	p := New()
	input := encodePNG(t, 200, 400)

	out, err := p.Transcode(input, entities.FormatPNG, 50, 100)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 200, h)
}

func TestResizeRoundsHeight(t *testing.T) {
	p := New()
	// 300x100 scaled to width 200 gives height 66.67, which rounds to 67.
	input := encodePNG(t, 300, 100)

	out, err := p.Transcode(input, entities.FormatPNG, 75, 200)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 67, h)
}

func TestResizeSkippedWhenWidthMatches(t *testing.T) {
	p := New()
	input := encodeJPEG(t, 200, 400)

	out, err := p.Transcode(input, entities.FormatJPEG, 75, 200)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 400, h)
}

func TestJPEGIsTranscodedToWebP(t *testing.T) {
	p := New()
	input := encodeJPEG(t, 64, 48)

	out, err := p.Transcode(input, entities.FormatJPEG, 50, 0)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

// A WebP source that needs a resize is re-encoded at the encoder's default
// quality; the explicit quality value is dropped on purpose for this one
// path. The output still has to be a valid WebP of the requested size.
func TestWebPResizeUsesDefaultEncodeQuality(t *testing.T) {
	p := New()
	input := encodeWebP(t, 200, 100)

	out, err := p.Transcode(input, entities.FormatWebP, 50, 100)
	require.NoError(t, err)
	assert.NotEqual(t, input, out)

	w, h := decodeDims(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestDecodeFailureSurfacesStage(t *testing.T) {
	p := New()

	_, err := p.Transcode([]byte("garbage"), entities.FormatPNG, 75, 0)
	require.Error(t, err)

	var cerr *CodecError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StageDecode, cerr.Stage)
}
