package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/kustii/board/repository"
	"github.com/kustii/board/utils"
)

// StatsController provides per-board post, comment and view counts.
type StatsController struct {
	posts *repository.PostRepository
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(posts *repository.PostRepository) *StatsController {
	return &StatsController{posts: posts}
}

// GetStats returns totals and a row per board type.
func (s *StatsController) GetStats(ctx *gin.Context) {
	boards, err := s.posts.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}

	var postCount, commentCount, viewCount int64
	for _, b := range boards {
		postCount += b.Posts
		commentCount += b.Comments
		viewCount += b.Views
	}

	utils.Success(ctx, gin.H{
		"post_count":    postCount,
		"comment_count": commentCount,
		"view_count":    viewCount,
		"boards":        boards,
	})
}
