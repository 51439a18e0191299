package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/utils"
)

const (
	// ContextIdentityKey stores the authenticated username inside Gin context.
	ContextIdentityKey = "identity"
	// ContextRoleKey stores the auth.Role of the identity.
	ContextRoleKey = "role"
)

// BasicAuth requires valid HTTP Basic credentials checked against provider.
func BasicAuth(provider auth.Provider) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, password, ok := ctx.Request.BasicAuth()
		if !ok {
			challenge(ctx, 40101, "authorization header missing")
			return
		}

		identity, err := provider.Authenticate(username, password)
		if err != nil {
			utils.Logger.Info("basic auth rejected", zap.String("username", username), zap.String("ip", ctx.ClientIP()))
			challenge(ctx, 40102, err.Error())
			return
		}

		ctx.Set(ContextIdentityKey, identity)
		ctx.Set(ContextRoleKey, provider.RoleOf(identity))
		ctx.Next()
	}
}

func challenge(ctx *gin.Context, code int, msg string) {
	ctx.Header("WWW-Authenticate", "Basic")
	utils.Error(ctx, http.StatusUnauthorized, code, msg)
	ctx.Abort()
}

// Identity returns the authenticated username and role, if any.
func Identity(ctx *gin.Context) (string, auth.Role, bool) {
	identity := ctx.GetString(ContextIdentityKey)
	if identity == "" {
		return "", auth.RoleUser, false
	}
	v, _ := ctx.Get(ContextRoleKey)
	role, _ := v.(auth.Role)
	if role == "" {
		role = auth.RoleUser
	}
	return identity, role, true
}
