package use_case

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/rs/zerolog/log"
	"github.com/trunov/imagegate/internal/cache"
	"github.com/trunov/imagegate/internal/entities"
	"github.com/trunov/imagegate/internal/processor"
)

type Storage interface {
	InsertImage(ctx context.Context, img entities.Image) (entities.Image, error)
}

type DerivativeCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte) error
}

type OriginStore interface {
	FetchOriginal(ctx context.Context, ownerID, pictureID string) ([]byte, error)
}

type Transcoder interface {
	Transcode(data []byte, format entities.Format, quality, targetWidth int) ([]byte, error)
}

type KeyGenerator interface {
	Create(ctx context.Context, ext string) (string, error)
}

type Uploader interface {
	UploadWithHook(ctx context.Context, key string, fileType string, payload []byte, onSuccess func()) error
}

type PrewarmProducer interface {
	EnqueuePrewarm(ctx context.Context, ownerID, pictureID string) error
}

type useCase struct {
	storage    Storage
	cache      DerivativeCache
	origin     OriginStore
	transcoder Transcoder
	keygen     KeyGenerator
	uploader   Uploader
	prewarm    PrewarmProducer
}

func New(storage Storage, dc DerivativeCache, origin OriginStore, tr Transcoder,
	kg KeyGenerator, up Uploader, pw PrewarmProducer) *useCase {
	return &useCase{
		storage:    storage,
		cache:      dc,
		origin:     origin,
		transcoder: tr,
		keygen:     kg,
		uploader:   up,
		prewarm:    pw,
	}
}

// Derivative returns the WebP derivative for one (owner, picture, quality,
// width) tuple, computing and caching it when needed. targetWidth of 0
// means no resize was requested.
//
// The cache is consulted first, before the extension is even validated: a
// hit answers the request outright. Only a miss goes on to classify the
// format, fetch the original and run the pipeline. Cache failures never
// fail the request; a broken Get degrades to a miss and a broken Store is
// logged and ignored.
func (c *useCase) Derivative(ctx context.Context, ownerID, pictureID string, quality, targetWidth int) ([]byte, error) {
	key := cache.Key(ownerID, pictureID, quality, targetWidth)

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("key", key).Msg("derivative cache get failed, recomputing")
	}

	format, err := entities.ParseFormat(pictureID)
	if err != nil {
		return nil, err
	}

	orig, err := c.origin.FetchOriginal(ctx, ownerID, pictureID)
	if err != nil {
		return nil, err
	}

	derivative, err := c.transcoder.Transcode(orig, format, quality, targetWidth)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Store(ctx, key, derivative); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("derivative cache store failed")
	}

	return derivative, nil
}

// UploadImage ingests an original: decodes it to record its dimensions,
// allocates a picture key, persists the metadata row and hands the bytes to
// the async origin uploader. Once the object lands in the bucket a prewarm
// job is enqueued so the common derivatives are computed before the first
// read.
func (c *useCase) UploadImage(ctx context.Context, file multipart.File, ext string, fileType string, ownerID string) (entities.Image, error) {
	data, width, height, err := readImage(file, ext)
	if err != nil {
		return entities.Image{}, fmt.Errorf("error processing image: %w", err)
	}

	pictureID, err := c.keygen.Create(ctx, ext)
	if err != nil {
		return entities.Image{}, fmt.Errorf("allocate picture key: %w", err)
	}

	img, err := c.storage.InsertImage(ctx, entities.Image{
		OwnerID:   ownerID,
		PictureID: pictureID,
		Width:     width,
		Height:    height,
		Size:      int64(len(data)),
		MimeType:  fileType,
	})
	if err != nil {
		return entities.Image{}, err
	}

	key := ownerID + "/" + pictureID
	err = c.uploader.UploadWithHook(ctx, key, fileType, data, func() {
		if err := c.prewarm.EnqueuePrewarm(context.Background(), ownerID, pictureID); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to enqueue prewarm job")
		}
	})
	if err != nil {
		return entities.Image{}, err
	}

	return img, nil
}

func readImage(file multipart.File, ext string) ([]byte, int, int, error) {
	b, err := io.ReadAll(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read image: %w", err)
	}

	format, err := entities.ParseFormat("upload" + ext)
	if err != nil {
		return nil, 0, 0, err
	}

	imgp := &processor.ImageProcessor{}
	if err := imgp.Load(bytes.NewReader(b), format); err != nil {
		return nil, 0, 0, err
	}

	width, height := imgp.Bounds()
	return b, width, height, nil
}
