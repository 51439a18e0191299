package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/utils"
)

// CommentController serves comment routes for a family with comments enabled.
type CommentController struct {
	family   *boards.Family
	comments *repository.CommentRepository
}

func NewCommentController(family *boards.Family, comments *repository.CommentRepository) *CommentController {
	return &CommentController{family: family, comments: comments}
}

// AddComment accepts {"content": "...", "parent_id": "..."} from any authenticated identity.
func (c *CommentController) AddComment(ctx *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID string `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	node, err := c.comments.AddComment(ctx.Request.Context(), refOf(ctx, c.family), ctx.Param("id"), repository.CommentInput{
		Content:  utils.SanitizePlain(req.Content),
		ParentID: req.ParentID,
	}, actor(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, node)
}

// ListComments returns the comments embedded in the post.
func (c *CommentController) ListComments(ctx *gin.Context) {
	list, err := c.comments.ListComments(ctx.Request.Context(), refOf(ctx, c.family), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, list)
}

// DeleteComment removes a comment or reply. Admins only.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	err := c.comments.DeleteComment(ctx.Request.Context(), refOf(ctx, c.family), ctx.Param("id"), ctx.Param("commentId"), actor(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Message(ctx, http.StatusOK, "Comment deleted successfully")
}
