package repository

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kustii/board/metrics"
	"github.com/kustii/board/models"
	"github.com/kustii/board/utils"
)

// RepairMirrors rebuilds the embedded comment list of every post whose list
// disagrees with the comment records, and returns how many posts changed.
// Rows from older deployments can lack entries or replies.
func (r *CommentRepository) RepairMirrors(ctx context.Context) (int, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return 0, storageErr("list posts", err)
	}

	repaired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		changed, err := r.repairOne(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // deleted meanwhile
		}
		if err != nil {
			return repaired, err
		}
		if changed {
			repaired++
		}
	}
	if repaired > 0 {
		metrics.MirrorRepairs.Add(float64(repaired))
		utils.Logger.Warn("comment lists repaired", zap.Int("posts", repaired))
	}
	return repaired, nil
}

func (r *CommentRepository) repairOne(ctx context.Context, id string) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockPost(tx, "", id, &post); err != nil {
			return err
		}
		var records []models.Comment
		if err := tx.Where("post_id = ?", id).Order("id ASC").Find(&records).Error; err != nil {
			return storageErr("load comments", err)
		}
		want := make([]models.CommentNode, 0, len(records))
		for i := range records {
			want = append(want, records[i].Node())
		}
		if slices.Equal(models.TreeSignature(want), models.TreeSignature(post.Comments)) {
			return nil
		}
		changed = true
		post.Comments = want
		return saveMirror(tx, &post)
	})
	return changed, err
}

// StartMirrorRepairer runs RepairMirrors on cronExpr until ctx ends.
func (r *CommentRepository) StartMirrorRepairer(ctx context.Context, cronExpr string) error {
	return utils.StartCronJob(ctx, "mirror-repair", cronExpr, func(ctx context.Context) error {
		_, err := r.RepairMirrors(ctx)
		return err
	})
}
