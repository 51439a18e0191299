package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/metrics"
	"github.com/kustii/board/models"
	"github.com/kustii/board/utils"
)

// CommentInput is a new comment. ParentID names a comment or reply of the same post.
type CommentInput struct {
	Content  string
	ParentID string
}

// CommentRepository keeps the comment records and the copy embedded in each post
// in step. Every write locks the post row first, so writers to one post queue up.
type CommentRepository struct {
	db       *gorm.DB
	registry *boards.Registry
}

func NewCommentRepository(db *gorm.DB, registry *boards.Registry) *CommentRepository {
	return &CommentRepository{db: db, registry: registry}
}

func (r *CommentRepository) family(ref boards.Ref) (*boards.Family, error) {
	fam, err := r.registry.Validate(ref)
	if err != nil {
		return nil, err
	}
	if !fam.Comments {
		return nil, fmt.Errorf("%w: %q has no comments", ErrInvalidType, ref.Type)
	}
	return fam, nil
}

// AddComment stores a top-level comment, or a reply when in.ParentID is set, and
// refreshes the post's embedded list in the same transaction.
func (r *CommentRepository) AddComment(ctx context.Context, ref boards.Ref, postID string, in CommentInput, actor Actor) (*models.CommentNode, error) {
	if _, err := r.family(ref); err != nil {
		return nil, err
	}
	if actor.Identity == "" {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	var node models.CommentNode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockPost(tx, ref.Type, postID, &post); err != nil {
			return err
		}
		// ids are minted under the post lock so id order is append order
		node = models.CommentNode{
			ID:        newID(),
			User:      actor.Identity,
			Content:   in.Content,
			IsAdmin:   actor.Role.IsAdmin(),
			Replies:   []models.CommentNode{},
			CreatedAt: time.Now().UTC(),
		}

		if in.ParentID == "" {
			rec := models.Comment{
				ID:        node.ID,
				PostID:    post.ID,
				BoardType: ref.Type,
				User:      node.User,
				Content:   node.Content,
				IsAdmin:   node.IsAdmin,
				Replies:   []models.CommentNode{},
				CreatedAt: node.CreatedAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return storageErr("create comment", err)
			}
			post.Comments = append(post.Comments, rec.Node())
			return saveMirror(tx, &post)
		}

		root, err := findRoot(tx, post.ID, in.ParentID)
		if err != nil {
			if errors.Is(err, errCommentNotFound) {
				return errParentNotFound
			}
			return err
		}
		if root.ID == in.ParentID {
			root.Replies = append(root.Replies, node)
		} else {
			models.AppendReply(root.Replies, in.ParentID, node)
		}
		if err := saveReplies(tx, root); err != nil {
			return err
		}
		post.Comments = models.UpsertNode(post.Comments, root.Node())
		return saveMirror(tx, &post)
	})
	if err != nil {
		return nil, err
	}

	kind := "comment"
	if in.ParentID != "" {
		kind = "reply"
	}
	metrics.CommentsWritten.WithLabelValues(kind, "add").Inc()
	utils.Logger.Debug("comment added", zap.String("type", ref.Type), zap.String("post", postID), zap.String("id", node.ID), zap.String("kind", kind))
	return &node, nil
}

// ListComments returns the post's embedded comment list.
func (r *CommentRepository) ListComments(ctx context.Context, ref boards.Ref, postID string) ([]models.CommentNode, error) {
	if _, err := r.family(ref); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(postID); err != nil {
		return nil, errPostNotFound
	}
	var post models.Post
	err := r.db.WithContext(ctx).Select("id", "comments").
		Where("id = ? AND board_type = ?", postID, ref.Type).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, storageErr("load comments", err)
	}
	return post.Comments, nil
}

// DeleteComment removes a top-level comment or a reply subtree from both the
// comment records and the post's embedded list. Only admins may delete.
func (r *CommentRepository) DeleteComment(ctx context.Context, ref boards.Ref, postID, commentID string, actor Actor) error {
	if !actor.Role.IsAdmin() {
		return ErrPermissionDenied
	}
	if _, err := r.family(ref); err != nil {
		return err
	}

	kind := "comment"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockPost(tx, ref.Type, postID, &post); err != nil {
			return err
		}
		root, err := findRoot(tx, post.ID, commentID)
		if err != nil {
			return err
		}

		if root.ID == commentID {
			if err := tx.Delete(root).Error; err != nil {
				return storageErr("delete comment", err)
			}
			post.Comments, _ = models.RemoveNode(post.Comments, commentID)
			return saveMirror(tx, &post)
		}

		kind = "reply"
		root.Replies, _ = models.RemoveNode(root.Replies, commentID)
		if err := saveReplies(tx, root); err != nil {
			return err
		}
		post.Comments = models.UpsertNode(post.Comments, root.Node())
		return saveMirror(tx, &post)
	})
	if err != nil {
		return err
	}
	metrics.CommentsWritten.WithLabelValues(kind, "delete").Inc()
	utils.Logger.Info("comment deleted", zap.String("type", ref.Type), zap.String("post", postID), zap.String("id", commentID), zap.String("by", actor.Identity))
	return nil
}

// findRoot returns the top-level record of post that is id or holds id in its
// reply tree.
func findRoot(tx *gorm.DB, postID, id string) (*models.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errCommentNotFound
	}
	var roots []models.Comment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&roots).Error; err != nil {
		return nil, storageErr("load comments", err)
	}
	for i := range roots {
		if roots[i].ID == id || models.FindNode(roots[i].Replies, id) != nil {
			return &roots[i], nil
		}
	}
	return nil, errCommentNotFound
}

func saveReplies(tx *gorm.DB, c *models.Comment) error {
	return storageErr("update replies", tx.Model(c).Select("Replies").Updates(c).Error)
}

func saveMirror(tx *gorm.DB, post *models.Post) error {
	return storageErr("update post comments", tx.Model(post).Select("Comments").Updates(post).Error)
}
