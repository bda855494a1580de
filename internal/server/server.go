package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
)

type Server struct {
	cfg     config.Config
	handler *handlers.Handler
	authn   *middleware.Authenticator
	logger  *slog.Logger
}

func New(cfg config.Config, handler *handlers.Handler, authn *middleware.Authenticator, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, authn: authn, logger: logger}
}

// HTTPServer wraps the router in an http.Server using the configured address
// and timeouts
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.logger))
	if s.cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.Server.CORSOrigins) == 1 && s.cfg.Server.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.Use(s.authn.LoadUser())

	h := s.handler
	authRequired := middleware.AuthRequired()
	adminRequired := middleware.AdminRequired()

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.Auth.Signup)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", authRequired, h.Auth.GetMe)
		authGroup.PUT("/profile", authRequired, h.Auth.UpdateProfile)
	}

	api.GET("/users/:id", h.User.GetUserProfile)

	questions := api.Group("/questions")
	{
		questions.GET("", h.Question.ListQuestions)
		questions.GET("/:id", h.Question.GetQuestion)
		questions.POST("/:id/view", h.Question.IncrementView)
		questions.POST("", authRequired, h.Question.CreateQuestion)
		questions.PUT("/:id", authRequired, h.Question.UpdateQuestion)
		questions.DELETE("/:id", authRequired, h.Question.DeleteQuestion)
	}

	answers := api.Group("/answers")
	{
		answers.GET("/question/:questionId", h.Answer.ListAnswers)
		answers.GET("/mine", authRequired, h.Answer.MyAnswers)
		answers.POST("/question/:questionId", authRequired, h.Answer.CreateAnswer)
		answers.PUT("/:id", authRequired, h.Answer.UpdateAnswer)
		answers.DELETE("/:id", authRequired, h.Answer.DeleteAnswer)
		answers.PATCH("/:id/accept", authRequired, h.Answer.AcceptAnswer)
		answers.PATCH("/:id/accept-by-owner", authRequired, h.Answer.AcceptAnswer)
		answers.PATCH("/:id/unaccept", authRequired, h.Answer.UnacceptAnswer)
		answers.PATCH("/:id/reject", authRequired, h.Answer.RejectAnswer)
	}

	votes := api.Group("/votes")
	{
		votes.POST("", authRequired, h.Vote.Vote)
		votes.GET("/user", authRequired, h.Vote.GetMyVotes)
		votes.GET("/user/:targetType/:targetId", authRequired, h.Vote.GetUserVote)
		votes.GET("/stats/:targetType/:targetId", h.Vote.GetVoteStats)
	}

	tags := api.Group("/tags")
	{
		tags.GET("", h.Tag.ListTags)
		tags.GET("/popular", h.Tag.PopularTags)
		tags.GET("/search", h.Tag.SearchTags)
		tags.GET("/:identifier", h.Tag.GetTag)
		tags.GET("/:identifier/questions", h.Tag.QuestionsByTag)
		tags.POST("", authRequired, h.Tag.CreateTag)
		tags.PUT("/:id", authRequired, h.Tag.UpdateTag)
		tags.DELETE("/:id", authRequired, adminRequired, h.Tag.DeleteTag)
	}

	notifications := api.Group("/notifications", authRequired)
	{
		notifications.GET("", h.Notification.ListNotifications)
		notifications.GET("/unread-count", h.Notification.UnreadCount)
		notifications.PATCH("/mark-all-read", h.Notification.MarkAllAsRead)
		notifications.PATCH("/:id/read", h.Notification.MarkAsRead)
		notifications.DELETE("/:id", h.Notification.DeleteNotification)
		notifications.POST("/admin-message", adminRequired, h.Notification.SendAdminMessage)
		notifications.GET("/stats", adminRequired, h.Notification.Stats)
	}

	admin := api.Group("/admin", authRequired, adminRequired)
	{
		admin.GET("/dashboard", h.Admin.Dashboard)
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id", h.Admin.UpdateUser)
		admin.PATCH("/users/:id/toggle-ban", h.Admin.ToggleBan)
		admin.GET("/flagged-content", h.Admin.FlaggedContent)
		admin.DELETE("/content/:type/:id", h.Admin.DeleteContent)
		admin.GET("/analytics", h.Admin.Analytics)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return r
}
