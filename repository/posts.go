package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
	"github.com/kustii/board/metrics"
	"github.com/kustii/board/models"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PostInput carries the writable fields of a post. Files are saved through the
// attachment store before the row is written.
type PostInput struct {
	Title   string
	Content string
	URL     string
	Files   []storage.Upload
}

// PostRepository stores posts of every board type in one table keyed by board type.
type PostRepository struct {
	db       *gorm.DB
	registry *boards.Registry
	files    storage.AttachmentStore
	thumbs   *storage.Thumbnailer
}

// NewPostRepository wires a repository. thumbs may be nil, in which case media
// posts without an uploaded image get no thumbnail.
func NewPostRepository(db *gorm.DB, registry *boards.Registry, files storage.AttachmentStore, thumbs *storage.Thumbnailer) *PostRepository {
	return &PostRepository{db: db, registry: registry, files: files, thumbs: thumbs}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// authorize checks the actor against the family's write role before the type is validated.
func (r *PostRepository) authorize(ref boards.Ref, actor Actor) (*boards.Family, error) {
	fam, ok := r.registry.Family(ref.Family)
	if !ok {
		return nil, fmt.Errorf("%w: family %q", ErrInvalidType, ref.Family)
	}
	if !actor.Role.Satisfies(auth.Role(fam.WriteRole)) {
		return nil, ErrPermissionDenied
	}
	return r.registry.Validate(ref)
}

func validatePostInput(fam *boards.Family, in PostInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if fam.RequireURL {
		if strings.TrimSpace(in.URL) == "" {
			return fmt.Errorf("%w: url is required", ErrInvalidInput)
		}
		return nil
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return nil
}

// saveFiles persists uploads in order and returns their references. For URL
// families it also resolves the thumbnail.
func (r *PostRepository) saveFiles(ctx context.Context, fam *boards.Family, in PostInput) ([]string, string, error) {
	refs := make([]string, 0, len(in.Files))
	thumbnail := ""
	for _, f := range in.Files {
		ref, err := r.files.Save(ctx, f.Filename, f.Content)
		if err != nil {
			r.discard(ctx, refs...)
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			return nil, "", storageErr("save attachment", err)
		}
		refs = append(refs, ref)
		if storage.IsImage(f.Filename) {
			thumbnail = ref
		}
	}
	if !fam.RequireURL {
		return refs, "", nil
	}
	if thumbnail == "" && r.thumbs != nil {
		ref, err := r.thumbs.FromURL(ctx, in.URL)
		if err != nil {
			utils.Logger.Warn("thumbnail from url failed", zap.String("url", in.URL), zap.Error(err))
		} else {
			thumbnail = ref
		}
	}
	return refs, thumbnail, nil
}

// discard removes stored files whose post was never written.
func (r *PostRepository) discard(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := r.files.Remove(context.WithoutCancel(ctx), ref); err != nil {
			utils.Logger.Warn("orphaned attachment", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func attachmentRefs(files []string, thumbnail string) []string {
	if thumbnail == "" || slices.Contains(files, thumbnail) {
		return files
	}
	return append(slices.Clone(files), thumbnail)
}

// lockPost loads a post for update. An empty boardType matches any board.
// Malformed ids are reported as missing.
func lockPost(tx *gorm.DB, boardType, id string, post *models.Post) error {
	if _, err := uuid.Parse(id); err != nil {
		return errPostNotFound
	}
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	if boardType != "" {
		q = q.Where("board_type = ?", boardType)
	}
	err := q.First(post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errPostNotFound
	}
	return storageErr("load post", err)
}

// Create inserts a new post with no comments and no views.
func (r *PostRepository) Create(ctx context.Context, ref boards.Ref, in PostInput, actor Actor) (*models.Post, error) {
	fam, err := r.authorize(ref, actor)
	if err != nil {
		return nil, err
	}
	if err := validatePostInput(fam, in); err != nil {
		return nil, err
	}
	files, thumbnail, err := r.saveFiles(ctx, fam, in)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		ID:        newID(),
		BoardType: ref.Type,
		Title:     in.Title,
		Content:   in.Content,
		URL:       in.URL,
		Thumbnail: thumbnail,
		Files:     files,
		Comments:  []models.CommentNode{},
	}
	if err := r.db.WithContext(ctx).Create(&post).Error; err != nil {
		r.discard(ctx, attachmentRefs(files, thumbnail)...)
		return nil, storageErr("create post", err)
	}
	metrics.PostsWritten.WithLabelValues(ref.Type, "create").Inc()
	utils.Logger.Info("post created", zap.String("type", ref.Type), zap.String("id", post.ID), zap.String("by", actor.Identity))
	return &post, nil
}

// Update replaces title, content and the whole attachment list. Comments and views are kept.
func (r *PostRepository) Update(ctx context.Context, ref boards.Ref, id string, in PostInput, actor Actor) (*models.Post, error) {
	fam, err := r.authorize(ref, actor)
	if err != nil {
		return nil, err
	}
	if err := validatePostInput(fam, in); err != nil {
		return nil, err
	}
	// check existence before attachments hit the disk
	if _, err := r.find(ctx, ref.Type, id); err != nil {
		return nil, err
	}
	files, thumbnail, err := r.saveFiles(ctx, fam, in)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, ref.Type, id, &post); err != nil {
			return err
		}
		post.Title = in.Title
		post.Content = in.Content
		post.URL = in.URL
		post.Files = files
		if fam.RequireURL {
			post.Thumbnail = thumbnail
		}
		return storageErr("update post", tx.Model(&post).
			Select("Title", "Content", "URL", "Thumbnail", "Files").
			Updates(&post).Error)
	})
	if err != nil {
		r.discard(ctx, attachmentRefs(files, thumbnail)...)
		return nil, err
	}
	metrics.PostsWritten.WithLabelValues(ref.Type, "update").Inc()
	return &post, nil
}

// Delete removes a post together with its comment records.
func (r *PostRepository) Delete(ctx context.Context, ref boards.Ref, id string, actor Actor) error {
	if _, err := r.authorize(ref, actor); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return errPostNotFound
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND board_type = ?", id, ref.Type).Delete(&models.Post{})
		if res.Error != nil {
			return storageErr("delete post", res.Error)
		}
		if res.RowsAffected == 0 {
			return errPostNotFound
		}
		return storageErr("delete comments", tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error)
	})
	if err != nil {
		return err
	}
	metrics.PostsWritten.WithLabelValues(ref.Type, "delete").Inc()
	utils.Logger.Info("post deleted", zap.String("type", ref.Type), zap.String("id", id), zap.String("by", actor.Identity))
	return nil
}

// GetDetail counts one view and returns the post as stored after the increment.
func (r *PostRepository) GetDetail(ctx context.Context, ref boards.Ref, id string) (*models.Post, error) {
	if _, err := r.registry.Validate(ref); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errPostNotFound
	}
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND board_type = ?", id, ref.Type).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return storageErr("count view", res.Error)
		}
		if res.RowsAffected == 0 {
			return errPostNotFound
		}
		return storageErr("load post", tx.Where("id = ?", id).First(&post).Error)
	})
	if err != nil {
		return nil, err
	}
	metrics.PostViews.WithLabelValues(ref.Type).Inc()
	return &post, nil
}

// ListPage returns one page of a board in insertion order. page < 1 is treated
// as 1; limit < 1 selects DefaultPageLimit and is capped at MaxPageLimit.
func (r *PostRepository) ListPage(ctx context.Context, ref boards.Ref, page, limit int) (*models.PostPage, error) {
	if _, err := r.registry.Validate(ref); err != nil {
		return nil, err
	}
	page, limit = NormalizePage(page, limit)

	board := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Post{}).Where("board_type = ?", ref.Type)
	}
	var total int64
	if err := board().Count(&total).Error; err != nil {
		return nil, storageErr("count posts", err)
	}

	var posts []models.Post
	if err := board().Select("id", "title", "thumbnail", "views", "files", "created_at").
		Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, storageErr("list posts", err)
	}

	out := &models.PostPage{
		Posts:       make([]models.PostSummary, 0, len(posts)),
		Total:       total,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage: page,
	}
	for i := range posts {
		p := &posts[i]
		out.Posts = append(out.Posts, models.PostSummary{
			ID:        p.ID,
			No:        (page-1)*limit + i + 1,
			Title:     p.Title,
			Thumbnail: p.Thumbnail,
			Views:     p.Views,
			HasFiles:  p.HasFiles(),
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}

// NormalizePage applies the listing defaults to raw query values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func (r *PostRepository) find(ctx context.Context, boardType, id string) (*models.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errPostNotFound
	}
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ? AND board_type = ?", id, boardType).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, storageErr("load post", err)
	}
	return &post, nil
}

// BoardStat aggregates one board type.
type BoardStat struct {
	Type     string `json:"type"`
	Family   string `json:"family"`
	Posts    int64  `json:"posts"`
	Comments int64  `json:"comments"`
	Views    int64  `json:"views"`
}

// Stats reports counts for every registered type, zero rows included.
func (r *PostRepository) Stats(ctx context.Context) ([]BoardStat, error) {
	var postRows []struct {
		BoardType string
		Posts     int64
		Views     int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("board_type, COUNT(*) AS posts, COALESCE(SUM(views), 0) AS views").
		Group("board_type").
		Scan(&postRows).Error; err != nil {
		return nil, storageErr("post stats", err)
	}
	var commentRows []struct {
		BoardType string
		Comments  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("board_type, COUNT(*) AS comments").
		Group("board_type").
		Scan(&commentRows).Error; err != nil {
		return nil, storageErr("comment stats", err)
	}

	byType := make(map[string]*BoardStat)
	var out []BoardStat
	for _, fam := range r.registry.Families() {
		for _, t := range fam.Types {
			out = append(out, BoardStat{Type: t, Family: fam.Name})
		}
	}
	for i := range out {
		byType[out[i].Type] = &out[i]
	}
	for _, row := range postRows {
		if s, ok := byType[row.BoardType]; ok {
			s.Posts, s.Views = row.Posts, row.Views
		}
	}
	for _, row := range commentRows {
		if s, ok := byType[row.BoardType]; ok {
			s.Comments = row.Comments
		}
	}
	return out, nil
}
