package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"devrim/internal/infra/config"
	"devrim/internal/infra/obs"
)

type ChatHTTP interface {
	Access(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	CreateGroup(c *gin.Context)
	Rename(c *gin.Context)
	AddMember(c *gin.Context)
	RemoveMember(c *gin.Context)
	Pin(c *gin.Context)
	Unpin(c *gin.Context)
}

type MessageHTTP interface {
	Send(c *gin.Context)
	List(c *gin.Context)
	Delete(c *gin.Context)
}

type UserHTTP interface {
	Search(c *gin.Context)
	Me(c *gin.Context)
}

type AuthHTTP interface {
	Login(c *gin.Context)
	Logout(c *gin.Context)
}

type RealtimeHTTP interface {
	Connect(c *gin.Context)
}

type Handlers struct {
	Chat           ChatHTTP
	Message        MessageHTTP
	User           UserHTTP
	Auth           AuthHTTP
	Realtime       RealtimeHTTP
	AuthMiddleware gin.HandlerFunc
	SendLimiter    gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter registers every route. Tests drive it through httptest.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Realtime != nil {
		router.GET("/ws", h.Realtime.Connect)
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
	}
	if h.Chat != nil {
		chats := api.Group("/chats")
		chats.POST("", h.Chat.Access)
		chats.GET("", h.Chat.List)
		chats.GET("/:id", h.Chat.Get)
		chats.POST("/group", h.Chat.CreateGroup)
		chats.PUT("/rename", h.Chat.Rename)
		chats.PUT("/groupadd", h.Chat.AddMember)
		chats.PUT("/groupremove", h.Chat.RemoveMember)
		chats.PUT("/pin/:id", h.Chat.Pin)
		chats.PUT("/unpin/:id", h.Chat.Unpin)
	}
	if h.Message != nil {
		messages := api.Group("/messages")
		if h.SendLimiter != nil {
			messages.POST("", h.SendLimiter, h.Message.Send)
		} else {
			messages.POST("", h.Message.Send)
		}
		messages.GET("/:id", h.Message.List)
		messages.DELETE("/:id", h.Message.Delete)
	}
	if h.User != nil {
		api.GET("/users", h.User.Search)
		api.GET("/users/me", h.User.Me)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
