package cache

import "fmt"

// Key derives the canonical cache key for a derivative. The key carries the
// resolved encode quality (not the raw selector) and, when a resize was
// requested, the target width as a fifth component. A request without a
// width and a request with an unparseable width produce the same key shape.
func Key(ownerID, pictureID string, quality, targetWidth int) string {
	if targetWidth > 0 {
		return fmt.Sprintf("image:%s:%s:%d:%d", ownerID, pictureID, quality, targetWidth)
	}
	return fmt.Sprintf("image:%s:%s:%d", ownerID, pictureID, quality)
}
