package queue

// PrewarmJob is what we push to Redis Streams. No bytes here — workers run
// the derivative pipeline by key, which fetches from the origin itself.
type PrewarmJob struct {
	OwnerID   string `json:"owner_id"`
	PictureID string `json:"picture_id"`
}
