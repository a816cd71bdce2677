package setup

import (
	"github.com/friendlychat-dev/friendlychat/internal/auth"
	"github.com/friendlychat-dev/friendlychat/internal/config"
	"github.com/friendlychat-dev/friendlychat/internal/handler"
	"github.com/friendlychat-dev/friendlychat/internal/middleware"
	"github.com/friendlychat-dev/friendlychat/internal/push"
	"github.com/friendlychat-dev/friendlychat/internal/service"
	"github.com/friendlychat-dev/friendlychat/internal/storage/fs"
	"github.com/friendlychat-dev/friendlychat/internal/storage/pg"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Storage        *pg.Storage
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Config         *config.Config
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := fs.New(cfg.Public.MediaRoot)
	if err != nil {
		return nil, err
	}

	jwt := auth.NewJwt(cfg.JwtKey(), cfg.JwtTTL())
	authService := auth.New(jwt, credentials(cfg))

	hub := push.NewHub()
	notifier := push.NewNotifier(hub, storage)

	chat := service.NewChat(storage, blobs, notifier, &service.MessageValidator{MaxLen: cfg.Public.MaxMsgLen}, "/media/")

	h := handler.New(authService, chat, storage, blobs, notifier, hub, cfg)

	return &Dependencies{
		Storage:        storage,
		Handler:        h,
		AuthMiddleware: middleware.NewAuth(authService),
		Config:         cfg,
	}, nil
}

func credentials(cfg *config.Config) []auth.Credential {
	creds := make([]auth.Credential, len(cfg.Private.Users))
	for i, u := range cfg.Private.Users {
		creds[i] = auth.Credential{
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			AvatarURL:    u.AvatarURL,
			Admin:        u.Admin,
		}
	}
	return creds
}
