package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

// PageController serves single-document families such as the introduction pages.
type PageController struct {
	family *boards.Family
	posts  *repository.PostRepository
}

func NewPageController(family *boards.Family, posts *repository.PostRepository) *PageController {
	return &PageController{family: family, posts: posts}
}

// UpdatePage upserts the page from multipart title, content and an optional image.
func (p *PageController) UpdatePage(ctx *gin.Context) {
	in := repository.PageInput{
		Title:   utils.SanitizePlain(ctx.PostForm("title")),
		Content: utils.Sanitize(ctx.PostForm("content")),
	}
	if fh, err := ctx.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
			return
		}
		defer f.Close()
		in.Image = &storage.Upload{Filename: fh.Filename, Content: f}
	}

	page, err := p.posts.UpsertPage(ctx.Request.Context(), refOf(ctx, p.family), in, actor(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

// GetPage returns the page document.
func (p *PageController) GetPage(ctx *gin.Context) {
	page, err := p.posts.GetPage(ctx.Request.Context(), refOf(ctx, p.family))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}
