package utils

import "github.com/gin-gonic/gin"

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error writes an error envelope. Codes are five digits: the HTTP status followed by a two-digit detail.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, ErrorBody{Code: code, Message: message})
}

// Message writes {"message": msg} with the given status.
func Message(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, gin.H{"message": msg})
}

// Success writes the resource itself as the body.
func Success(ctx *gin.Context, data any) {
	ctx.JSON(200, data)
}
