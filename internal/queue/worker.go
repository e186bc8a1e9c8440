package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/trunov/imagegate/internal/config"
	"github.com/trunov/imagegate/internal/params"
)

// Warmer computes (and thereby caches) one derivative. Satisfied by the
// derivative use-case.
type Warmer interface {
	Derivative(ctx context.Context, ownerID, pictureID string, quality, targetWidth int) ([]byte, error)
}

type Worker struct {
	rc     redis.UniversalClient
	cfg    config.PrewarmWorkerConfig
	warmer Warmer
	ack    func(ctx context.Context, id string)
}

// Run starts the prewarm consumer group in the background.
func Run(ctx context.Context, rc redis.UniversalClient, cfg config.PrewarmWorkerConfig, warmer Warmer) {
	worker := NewWorker(rc, cfg, warmer)

	go func() {
		if err := worker.Start(ctx); err != nil {
			log.Error().Err(err).Msg("prewarm worker stopped")
		}
	}()
}

func NewWorker(rc redis.UniversalClient, cfg config.PrewarmWorkerConfig, warmer Warmer) *Worker {
	w := &Worker{
		rc:     rc,
		cfg:    cfg,
		warmer: warmer,
	}
	w.ack = func(ctx context.Context, id string) {
		_ = w.rc.XAck(ctx, w.cfg.Stream, w.cfg.Group, id).Err()
	}
	return w
}

func (w *Worker) EnsureGroup(ctx context.Context) error {
	// Without MkStream, Redis errors out when creating a group before any
	// message exists in the stream.
	err := w.rc.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	// BUSYGROUP just means the group already exists.
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure Redis group: %w", err)
	}

	log.Info().
		Str("group", w.cfg.Group).
		Str("stream", w.cfg.Stream).
		Int("workers", w.cfg.Workers).
		Msg("starting prewarm consumer group")

	// Adopt orphaned pending messages left behind by crashed consumers.
	w.autoClaim(ctx)

	errCh := make(chan error, w.cfg.Workers)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		go func() {
			err := w.loop(ctx)
			if err != nil {
				log.Error().Err(err).Int("worker", id).Msg("prewarm worker loop stopped")
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker loop exited with error: %w", err)
		}
		return nil
	}
}

// autoClaim takes ownership of messages that were delivered to other
// consumers but never acknowledged, e.g. because a worker died before XACK.
// Without this, those jobs would sit in the group's pending list forever.
func (w *Worker) autoClaim(ctx context.Context) {
	next := "0-0"

	// Only reclaim messages idle long enough that their original consumer
	// is clearly not coming back for them.
	minIdle := 30 * time.Second
	if w.cfg.BlockTimeout > 0 {
		t := w.cfg.BlockTimeout * 6
		if t > minIdle {
			minIdle = t
		}
	}

	for {
		msgs, start, err := w.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  minIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil || len(msgs) == 0 {
			return
		}
		next = start
	}
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		// XREADGROUP marks delivered messages pending for this consumer;
		// they stay in the pending list until the deferred XACK in handle.
		streams, err := w.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Count:    1,
			Block:    w.cfg.BlockTimeout,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				if err := w.handle(ctx, m); err != nil {
					sentry.CaptureException(err)
				}
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, m redis.XMessage) error {
	// Acknowledge only once handling is done, success or not; an ack issued
	// up front would drop the message from the pending list and a crash
	// mid-job could never be recovered by autoClaim.
	defer w.ack(ctx, m.ID)

	raw, ok := m.Values["payload"].(string)
	if !ok {
		return fmt.Errorf("prewarm message %s has no payload", m.ID)
	}
	var job PrewarmJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("prewarm message %s: %w", m.ID, err)
	}
	attempt := toInt(m.Values["attempt"])

	if err := w.process(ctx, job); err != nil {
		if attempt+1 >= w.cfg.MaxAttempts {
			return fmt.Errorf("prewarm %s/%s gave up after %d attempts: %w",
				job.OwnerID, job.PictureID, attempt+1, err)
		}
		// simple exponential backoff requeue
		backoff := w.cfg.BackoffBase << attempt
		time.AfterFunc(backoff, func() {
			_ = w.rc.XAdd(context.Background(), &redis.XAddArgs{
				Stream: w.cfg.Stream,
				MaxLen: w.cfg.MaxLen,
				Values: map[string]any{
					"payload": raw,
					"attempt": attempt + 1,
				},
			}).Err()
		})
		return err
	}
	return nil
}

// process warms the configured quality tiers at the original size. The
// derivative use-case caches each result under its canonical key, so the
// first real reader gets a cache hit.
func (w *Worker) process(ctx context.Context, job PrewarmJob) error {
	for _, tier := range w.cfg.Tiers {
		quality := params.ResolveQuality(tier)
		if _, err := w.warmer.Derivative(ctx, job.OwnerID, job.PictureID, quality, 0); err != nil {
			return fmt.Errorf("warm %s/%s quality %d: %w", job.OwnerID, job.PictureID, quality, err)
		}
	}
	return nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		var x int
		fmt.Sscanf(t, "%d", &x)
		return x
	default:
		return 0
	}
}
