package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kustii/board/boards"
	"github.com/kustii/board/middleware"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/utils"
)

// respondError maps repository errors onto status codes and the error envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPermissionDenied):
		utils.Error(ctx, http.StatusForbidden, 40301, "Not enough permissions")
	case errors.Is(err, repository.ErrInvalidType):
		utils.Error(ctx, http.StatusBadRequest, 40001, "Invalid type")
	case errors.Is(err, storage.ErrTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, err.Error())
	case errors.Is(err, repository.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, err.Error())
	default:
		utils.Logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "internal server error")
	}
}

// actor reads the identity set by middleware.BasicAuth.
func actor(ctx *gin.Context) repository.Actor {
	identity, role, _ := middleware.Identity(ctx)
	return repository.Actor{Identity: identity, Role: role}
}

func refOf(ctx *gin.Context, family *boards.Family) boards.Ref {
	return boards.Ref{Family: family.Name, Type: ctx.Param("type")}
}
