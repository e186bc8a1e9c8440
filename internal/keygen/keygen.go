// Package keygen allocates unique picture keys for ingested originals.
package keygen

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveTTL guards a freshly allocated key against a concurrent upload
// picking the same one. The reservation only needs to outlive the upload.
const reserveTTL = 24 * time.Hour

var ErrExhausted = errors.New("could not allocate a unique picture key")

type Manager struct {
	client redis.UniversalClient
}

func NewManager(redisClient redis.UniversalClient) *Manager {
	return &Manager{
		client: redisClient,
	}
}

// Create returns a new picture key with the given extension (including the
// leading dot). The key is reserved in Redis with SETNX so that two
// concurrent uploads can never be handed the same one.
func (m *Manager) Create(ctx context.Context, ext string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := generateID()
		pictureID := id + ext

		ok, err := m.client.SetNX(ctx, "imagegate:keys:"+pictureID, 1, reserveTTL).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return pictureID, nil
		}
	}

	return "", ErrExhausted
}

func generateID() string {
	src := rand.NewSource(time.Now().UnixNano())
	r := rand.New(src)

	str := strconv.Itoa(int(time.Now().UnixNano()))
	str += strconv.Itoa(r.Intn(65535))

	sum := sha1.Sum([]byte(str))

	// URL-safe alphabet: the key ends up in request paths and object keys.
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
