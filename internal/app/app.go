package app

import (
	"context"
	"log/slog"

	httpapp "vidhub/internal/app/http"
	"vidhub/internal/config"
	jwtlib "vidhub/internal/lib/jwt"
	"vidhub/internal/middleware"
	"vidhub/internal/repository"
	mediaservice "vidhub/internal/services/media_service"
	tokenservice "vidhub/internal/services/token_service"
	filestorage "vidhub/internal/storage/filestorage"
	"vidhub/internal/storage/objectstore"
	"vidhub/internal/storage/postgresql"
	redisapp "vidhub/internal/storage/redis"
	httprouters "vidhub/internal/transport/http"

	userservice "vidhub/internal/services/user_service"

	"github.com/jackc/pgx/v4/pgxpool"
)

type App struct {
	HTTPServer *httpapp.Server

	db    *pgxpool.Pool
	redis *redisapp.Client
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx := context.Background()

	if err := postgresql.Migrate(cfg.DSN); err != nil {
		panic(err)
	}

	db, err := postgresql.New(ctx, cfg.DSN)
	if err != nil {
		panic(err)
	}

	redisClient := redisapp.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	staging, err := filestorage.NewLocalFileStorage(cfg.FileStorage.BaseDir)
	if err != nil {
		panic(err)
	}

	uploader, err := objectstore.NewClient(ctx, objectstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Bucket:    cfg.ObjectStore.Bucket,
		UseSSL:    cfg.ObjectStore.UseSSL,
		PublicURL: cfg.ObjectStore.PublicURL,
	})
	if err != nil {
		panic(err)
	}

	tokens, err := jwtlib.NewManager(
		cfg.Tokens.AccessSecret,
		cfg.Tokens.RefreshSecret,
		cfg.Tokens.AccessTTL,
		cfg.Tokens.RefreshTTL,
	)
	if err != nil {
		panic(err)
	}

	repo := repository.NewRepository(db)
	identities := repository.NewIdentityCache(redisClient, repo.User, cfg.Redis.IdentityTTL)

	tokenService := tokenservice.NewTokenService(log, tokens, repo.Session, repo.User)
	mediaService := mediaservice.NewMediaService(log, staging, uploader, cfg.FileStorage.MaxSize)
	userService := userservice.NewUserService(log, repo.User, repo.Channel, tokenService, mediaService, identities)

	routers := httprouters.NewRouter(
		log,
		userService,
		tokenService,
		cfg.Tokens.SecureCookies,
		cfg.Tokens.AccessTTL,
		cfg.Tokens.RefreshTTL,
	)

	auth := middleware.Auth(log, tokens, identities)

	server := httpapp.New(log, cfg.HTTP.Host, cfg.HTTP.Port, routers, auth)

	return &App{
		HTTPServer: server,
		db:         db,
		redis:      redisClient,
	}
}

func (a *App) Stop() error {
	if err := a.HTTPServer.Stop(); err != nil {
		return err
	}

	a.db.Close()

	return a.redis.Close()
}
