package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
	"github.com/kustii/board/config"
	"github.com/kustii/board/controllers"
	"github.com/kustii/board/middleware"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/utils"
)

// UploadsURLPrefix is where stored attachments are served from.
const UploadsURLPrefix = "/static/uploads"

// Deps are the components the router hands to controllers.
type Deps struct {
	Config   config.AppConfig
	Registry *boards.Registry
	Auth     auth.Provider
	Posts    *repository.PostRepository
	Comments *repository.CommentRepository
	Cache    *utils.Cache
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "WWW-Authenticate"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestMetrics())

	if cfg.UploadDir != "" {
		r.Static(UploadsURLPrefix, cfg.UploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/stats", controllers.NewStatsController(deps.Posts).GetStats)

	requireAuth := middleware.BasicAuth(deps.Auth)

	for _, fam := range deps.Registry.Families() {
		g := r.Group("/" + fam.Name)

		if fam.Singleton {
			pages := controllers.NewPageController(fam, deps.Posts)
			g.POST("/update/:type", requireAuth, pages.UpdatePage)
			g.GET("/:type", pages.GetPage)
			continue
		}

		board := controllers.NewBoardController(fam, deps.Posts, deps.Cache)
		g.POST("/create/:type", requireAuth, board.CreatePost)
		g.POST("/:type/create", requireAuth, board.CreatePost)
		g.PUT("/update/:type/:id", requireAuth, board.UpdatePost)
		g.DELETE("/delete/:type/:id", requireAuth, board.DeletePost)
		g.GET("/:type", board.ListPosts)
		g.GET("/:type/:id", board.GetPost)

		if fam.Comments {
			comments := controllers.NewCommentController(fam, deps.Comments)
			g.POST("/:type/:id/comments", requireAuth, comments.AddComment)
			g.GET("/:type/:id/comments", comments.ListComments)
			g.DELETE("/:type/:id/comments/:commentId", requireAuth, comments.DeleteComment)
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/static/") {
			utils.Error(ctx, http.StatusNotFound, 40402, "static asset not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
