package server

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ideaboard/internal/auth"
	"ideaboard/internal/identity"
	"ideaboard/internal/models"
	"ideaboard/internal/sharing"
	"ideaboard/internal/storage/sqlite"
)

// Options carries the server settings that come from configuration.
type Options struct {
	StaticDir        string
	AllowedOrigins   []string
	DefaultBoardName string
	SuggestDebounce  time.Duration
	SuggestLimit     int
	DirectoryLimit   int
	ShareCloseDelay  time.Duration
}

// Server provides HTTP and websocket handlers for the board backend.
type Server struct {
	engine   *gin.Engine
	store    *sqlite.Store
	tokens   *auth.Tokens
	sharing  *sharing.Service
	resolver *identity.Resolver
	logger   *slog.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, tokens *auth.Tokens, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	if len(opts.AllowedOrigins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}
		// Browsers refuse credentials on a wildcard origin.
		if allowsAnyOrigin(opts.AllowedOrigins) {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = opts.AllowedOrigins
			corsConfig.AllowCredentials = true
		}
		router.Use(cors.New(corsConfig))
	}

	srv := &Server{
		engine: router,
		store:  store,
		tokens: tokens,
		sharing: sharing.NewService(store, logger, sharing.Options{
			DirectoryLimit: opts.DirectoryLimit,
			SuggestLimit:   opts.SuggestLimit,
		}),
		resolver: identity.NewResolver(store, logger),
		logger:   logger,
		opts:     opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		authed := api.Group("", s.requireAuth())
		{
			authed.POST("/session", s.handleSession)
			authed.GET("/ws", s.handleWebSocket)
			authed.GET("/users/suggest", s.handleSuggestUsers)

			boards := authed.Group("/boards")
			{
				boards.GET("", s.handleListBoards)
				boards.POST("", s.handleCreateBoard)
			}

			board := boards.Group("/:id", s.requireMember())
			{
				board.GET("", s.handleGetBoard)
				board.DELETE("", s.handleDeleteBoard)
				board.GET("/members", s.handleListMembers)
				board.POST("/members", s.handleShareBoard)
				board.DELETE("/members/:uid", s.handleRemoveMember)
				board.GET("/tasks", s.handleListTasks)
				board.POST("/tasks", s.handleCreateTask)
				board.PUT("/tasks/:taskId", s.handleUpdateTask)
				board.DELETE("/tasks/:taskId", s.handleDeleteTask)
			}
		}
	}

	s.mountStatic()
}

// handleHealth reports readiness, including whether the database answers.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// checkOrigin admits websocket upgrades from configured origins and from
// non-browser clients that send no Origin header.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowsAnyOrigin(s.opts.AllowedOrigins) {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, origin)
}

func allowsAnyOrigin(origins []string) bool {
	return slices.Contains(origins, "*")
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// respondError classifies err, logs unexpected failures and returns the
// user-facing message as JSON.
func (s *Server) respondError(c *gin.Context, err error) {
	err = models.Classify(err)
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": models.PublicMessage(err)})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
