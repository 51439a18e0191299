package cmd

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
	"github.com/kustii/board/config"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/routes"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

// app is the set of components every command works on.
type app struct {
	cfg      config.AppConfig
	db       *gorm.DB
	registry *boards.Registry
	posts    *repository.PostRepository
	comments *repository.CommentRepository

	closeOnce sync.Once
}

func newApp(cfg config.AppConfig) (*app, error) {
	registry, err := boards.Load(cfg.BoardsFile)
	if err != nil {
		return nil, fmt.Errorf("load boards: %w", err)
	}

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		_ = config.CloseDatabase(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store := storage.NewDiskStore(cfg.UploadDir, routes.UploadsURLPrefix, cfg.MaxUploadMB)
	thumbs := storage.NewThumbnailer(store, cfg.ThumbnailWidth)

	return &app{
		cfg:      cfg,
		db:       db,
		registry: registry,
		posts:    repository.NewPostRepository(db, registry, store, thumbs),
		comments: repository.NewCommentRepository(db, registry),
	}, nil
}

// close releases the database. It is safe to call more than once.
func (a *app) close() {
	a.closeOnce.Do(func() {
		if err := config.CloseDatabase(a.db); err != nil {
			utils.Logger.Warn("close database", zap.Error(err))
		}
	})
}

func newAuthProvider(cfg config.AppConfig) (*auth.StaticProvider, error) {
	accounts := make([]auth.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, auth.Account{
			Username:     a.Username,
			PasswordHash: a.PasswordHash,
			Role:         auth.ParseRole(a.Role),
		})
	}
	return auth.NewStaticProvider(accounts)
}

// newCache returns nil when caching is off or Redis is unreachable.
func newCache(cfg config.AppConfig) *utils.Cache {
	if !cfg.CacheEnabled {
		return nil
	}
	rc, err := utils.NewRedisClient(cfg)
	if err != nil {
		utils.Logger.Warn("listing cache disabled", zap.Error(err))
		return nil
	}
	return utils.NewCache(rc, time.Duration(cfg.CacheTTLSeconds)*time.Second)
}
