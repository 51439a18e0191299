package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/kustii/board/models"
	"github.com/kustii/board/utils"
)

// Seed inserts one placeholder document into every registered type that has none.
// It returns the number of documents created and is safe to run repeatedly.
func (r *PostRepository) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, fam := range r.registry.Families() {
		for _, t := range fam.Types {
			var n int64
			if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("board_type = ?", t).Count(&n).Error; err != nil {
				return created, storageErr("count "+t, err)
			}
			if n > 0 {
				continue
			}
			post := models.Post{
				ID:        newID(),
				BoardType: t,
				Title:     t + " title",
				Content:   t + " content",
			}
			if err := r.db.WithContext(ctx).Create(&post).Error; err != nil {
				return created, storageErr("seed "+t, err)
			}
			created++
			utils.Logger.Info("seeded board", zap.String("family", fam.Name), zap.String("type", t))
		}
	}
	return created, nil
}
