package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	r      redis.UniversalClient
	stream string
	maxLen int64
}

func NewProducer(r redis.UniversalClient, stream string, maxLen int64) *Producer {
	return &Producer{r: r, stream: stream, maxLen: maxLen}
}

// EnqueuePrewarm appends a prewarm job to the Redis Stream so the common
// derivatives of a freshly ingested original get computed in the background.
func (p *Producer) EnqueuePrewarm(ctx context.Context, ownerID, pictureID string) error {
	raw, _ := json.Marshal(PrewarmJob{OwnerID: ownerID, PictureID: pictureID})
	return p.r.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]any{
			"payload": string(raw),
			"attempt": 0,
		},
	}).Err()
}
