package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trunov/imagegate/internal/entities"
)

type dbStorage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

// InsertImage persists the metadata row for an ingested original and
// returns it with the generated id and timestamp filled in.
func (s *dbStorage) InsertImage(ctx context.Context, img entities.Image) (entities.Image, error) {
	row := s.dbpool.QueryRow(ctx, `
		INSERT INTO images (owner_id, picture_id, width, height, size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_timestamp`,
		img.OwnerID, img.PictureID, img.Width, img.Height, img.Size, img.MimeType,
	)

	if err := row.Scan(&img.ID, &img.CreatedTimestamp); err != nil {
		return entities.Image{}, fmt.Errorf("insert image %s/%s: %w", img.OwnerID, img.PictureID, err)
	}

	return img, nil
}
