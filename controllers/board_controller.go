package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

// BoardController serves the post routes of one board family.
type BoardController struct {
	family *boards.Family
	posts  *repository.PostRepository
	cache  *utils.Cache
}

// NewBoardController creates a controller for family. cache may be nil.
func NewBoardController(family *boards.Family, posts *repository.PostRepository, cache *utils.Cache) *BoardController {
	return &BoardController{family: family, posts: posts, cache: cache}
}

// CreatePost handles multipart title, content (or url) and repeated files fields.
func (b *BoardController) CreatePost(ctx *gin.Context) {
	in, closeFiles, err := readPostForm(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	defer closeFiles()

	ref := refOf(ctx, b.family)
	post, err := b.posts.Create(ctx.Request.Context(), ref, in, actor(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	b.cache.Bump(ctx.Request.Context(), ref.Type)
	utils.Success(ctx, post)
}

// UpdatePost replaces title, content and attachments of a post.
func (b *BoardController) UpdatePost(ctx *gin.Context) {
	in, closeFiles, err := readPostForm(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	defer closeFiles()

	ref := refOf(ctx, b.family)
	post, err := b.posts.Update(ctx.Request.Context(), ref, ctx.Param("id"), in, actor(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	b.cache.Bump(ctx.Request.Context(), ref.Type)
	utils.Success(ctx, post)
}

// DeletePost removes a post and its comments.
func (b *BoardController) DeletePost(ctx *gin.Context) {
	ref := refOf(ctx, b.family)
	if err := b.posts.Delete(ctx.Request.Context(), ref, ctx.Param("id"), actor(ctx)); err != nil {
		respondError(ctx, err)
		return
	}
	b.cache.Bump(ctx.Request.Context(), ref.Type)
	utils.Message(ctx, http.StatusOK, "Deleted successfully")
}

// GetPost returns a post and counts the view.
func (b *BoardController) GetPost(ctx *gin.Context) {
	post, err := b.posts.GetDetail(ctx.Request.Context(), refOf(ctx, b.family), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, post)
}

// ListPosts returns one page of a board. Pages are cached per board version; writes bump the version.
func (b *BoardController) ListPosts(ctx *gin.Context) {
	ref := refOf(ctx, b.family)
	page, _ := strconv.Atoi(ctx.Query("page"))
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	page, limit = repository.NormalizePage(page, limit)

	cacheKey := utils.ListKey(ref.Type, b.cache.Version(ctx.Request.Context(), ref.Type), page, limit)
	if raw, ok := b.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	res, err := b.posts.ListPage(ctx.Request.Context(), ref, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	b.cache.SetJSON(ctx.Request.Context(), cacheKey, res)
	utils.Success(ctx, res)
}

// readPostForm collects the post fields. The returned func closes opened uploads.
func readPostForm(ctx *gin.Context) (repository.PostInput, func(), error) {
	in := repository.PostInput{
		Title:   utils.SanitizePlain(ctx.PostForm("title")),
		Content: utils.Sanitize(ctx.PostForm("content")),
		URL:     strings.TrimSpace(ctx.PostForm("url")),
	}
	files, err := openUploads(ctx, "files")
	if err != nil {
		return in, func() {}, err
	}
	in.Files = make([]storage.Upload, 0, len(files))
	for _, f := range files {
		in.Files = append(in.Files, f.Upload)
	}
	return in, func() { closeUploads(files) }, nil
}

type openUpload struct {
	storage.Upload
	file multipart.File
}

func openUploads(ctx *gin.Context, field string) ([]openUpload, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, err
	}
	var out []openUpload
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			closeUploads(out)
			return nil, err
		}
		out = append(out, openUpload{Upload: storage.Upload{Filename: fh.Filename, Content: f}, file: f})
	}
	return out, nil
}

func closeUploads(files []openUpload) {
	for _, f := range files {
		_ = f.file.Close()
	}
}
