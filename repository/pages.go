package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/metrics"
	"github.com/kustii/board/models"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

// PageInput is the body of a singleton page. A nil Image keeps the current one.
type PageInput struct {
	Title   string
	Content string
	Image   *storage.Upload
}

func (r *PostRepository) singleton(ref boards.Ref) (*boards.Family, error) {
	fam, err := r.registry.Validate(ref)
	if err != nil {
		return nil, err
	}
	if !fam.Singleton {
		return nil, fmt.Errorf("%w: %q is not a page", ErrInvalidType, ref.Type)
	}
	return fam, nil
}

// GetPage returns the single document of a page type.
func (r *PostRepository) GetPage(ctx context.Context, ref boards.Ref) (*models.Post, error) {
	if _, err := r.singleton(ref); err != nil {
		return nil, err
	}
	var post models.Post
	err := r.db.WithContext(ctx).Where("board_type = ?", ref.Type).Order("id ASC").First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, storageErr("load page", err)
	}
	return &post, nil
}

// UpsertPage writes the single document of a page type, creating it on first use.
func (r *PostRepository) UpsertPage(ctx context.Context, ref boards.Ref, in PageInput, actor Actor) (*models.Post, error) {
	if _, err := r.authorize(ref, actor); err != nil {
		return nil, err
	}
	if _, err := r.singleton(ref); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}

	image := ""
	if in.Image != nil {
		saved, err := r.files.Save(ctx, in.Image.Filename, in.Image.Content)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			return nil, storageErr("save image", err)
		}
		image = saved
	}

	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("board_type = ?", ref.Type).
			Order("id ASC").
			First(&post).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			post = models.Post{
				ID:        newID(),
				BoardType: ref.Type,
				Title:     in.Title,
				Content:   in.Content,
				Image:     image,
			}
			return storageErr("create page", tx.Create(&post).Error)
		case err != nil:
			return storageErr("load page", err)
		}
		post.Title = in.Title
		post.Content = in.Content
		if image != "" {
			post.Image = image
		}
		return storageErr("update page", tx.Model(&post).Select("Title", "Content", "Image").Updates(&post).Error)
	})
	if err != nil {
		r.discard(ctx, image)
		return nil, err
	}
	metrics.PostsWritten.WithLabelValues(ref.Type, "upsert").Inc()
	utils.Logger.Info("page updated", zap.String("type", ref.Type), zap.String("by", actor.Identity))
	return &post, nil
}
