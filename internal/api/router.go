package api

import (
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/celerix-dev/pawgram/internal/metrics"
)

// Options configures the router around the handlers.
type Options struct {
	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty means "*".
	CORSOrigin string
	// MaxBodyBytes caps request bodies. Zero disables the limit.
	MaxBodyBytes int64
	// PublicDir holds the browser client. Empty disables static serving.
	PublicDir string
}

// NewRouter wires the API routes, metrics and static client onto a gin engine.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metrics.Middleware(), cors(opts.CORSOrigin))
	if opts.MaxBodyBytes > 0 {
		r.Use(bodyLimit(opts.MaxBodyBytes))
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/register", h.Register)
		apiGroup.POST("/login", h.Login)
		apiGroup.GET("/config", h.Config)

		authed := apiGroup.Group("", h.RequireAuth)
		authed.POST("/logout", h.Logout)
		authed.GET("/posts", h.ListPosts)
		authed.POST("/posts", h.CreatePost)
		authed.DELETE("/posts/:postId", h.DeletePost)
		authed.POST("/posts/:postId/reactions", h.React)
		authed.GET("/users/posts", h.MyPosts)
		authed.PUT("/users/profile", h.UpdateProfile)
		authed.GET("/users/:username", h.UserInfo)
	}

	var public fs.FS
	if opts.PublicDir != "" {
		public = os.DirFS(opts.PublicDir)
	}
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") || public == nil {
			respond(c, http.StatusNotFound, "API route not found")
			return
		}
		if info, err := fs.Stat(public, strings.TrimPrefix(path, "/")); err == nil && !info.IsDir() {
			http.FileServer(http.FS(public)).ServeHTTP(c.Writer, c.Request)
			return
		}
		c.FileFromFS("/", http.FS(public))
	})

	return r
}

func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		})
		if _, ok := c.Get(claimsKey); ok {
			entry = entry.WithField("user", claims(c).Username)
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}
