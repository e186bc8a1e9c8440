package entities

import (
	"fmt"
	"strings"
	"time"
)

// Format is the container format of a stored original, derived from the
// picture key's extension. It is a closed set: anything that is not one of
// the three decode paths is rejected before any storage I/O happens.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatWebP
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	}
	return "unknown"
}

// ParseFormat classifies a picture key by the substring after its last dot.
// Accepted extensions are exactly jpg, jpeg, png and webp, case-sensitive.
// A missing extension or anything outside that set fails with
// ErrUnsupportedFormat.
func ParseFormat(pictureID string) (Format, error) {
	idx := strings.LastIndex(pictureID, ".")
	if idx < 0 || idx == len(pictureID)-1 {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, pictureID)
	}

	switch pictureID[idx+1:] {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return 0, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, pictureID[idx+1:])
	}
}

// Image is the metadata row kept for every ingested original.
type Image struct {
	ID               int64     `json:"id"`
	OwnerID          string    `json:"owner_id"`
	PictureID        string    `json:"picture_id"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mime_type"`
	CreatedTimestamp time.Time `json:"created_timestamp"`
}
