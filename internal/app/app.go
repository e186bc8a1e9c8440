package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trunov/imagegate/cmd/migrate"
	"github.com/trunov/imagegate/internal/cache"
	"github.com/trunov/imagegate/internal/config"
	"github.com/trunov/imagegate/internal/keygen"
	"github.com/trunov/imagegate/internal/queue"
	"github.com/trunov/imagegate/internal/r2"
	"github.com/trunov/imagegate/internal/redisholder"
	"github.com/trunov/imagegate/internal/repository/storage"
	"github.com/trunov/imagegate/internal/transcode"
	"github.com/trunov/imagegate/internal/transport/handler"
	"github.com/trunov/imagegate/internal/transport/router"
	use_case "github.com/trunov/imagegate/internal/use-case"
)

type App struct {
	HttpServer *http.Server
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	if err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations); err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rc := holder.Get()
	kg := keygen.NewManager(rc)
	derivativeCache := cache.New(cfg.Cache.Namespace, rc)

	r2Storage, err := r2.NewStorage(&cfg.R2)
	if err != nil {
		return nil, err
	}

	pipeline := transcode.New()

	producer := queue.NewProducer(rc, cfg.Prewarm.Stream, cfg.Prewarm.MaxLen)
	uc := use_case.New(repo, derivativeCache, r2Storage, pipeline, kg, r2Storage, producer)

	// The worker warms the cache through the same Derivative path requests
	// go through.
	queue.Run(ctx, rc, cfg.Prewarm, uc)

	h := handler.New(uc, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
	}, nil
}

func (a *App) Run() error {
	log.Info().Str("addr", a.HttpServer.Addr).Msg("starting server")
	return a.HttpServer.ListenAndServe()
}
