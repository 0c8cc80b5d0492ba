package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/animation"
	"github.com/Tomlord1122/concierge-backend/internal/controller"
	"github.com/Tomlord1122/concierge-backend/internal/database"
	"github.com/Tomlord1122/concierge-backend/internal/notify"
	"github.com/Tomlord1122/concierge-backend/internal/repository"
	"github.com/Tomlord1122/concierge-backend/internal/service"
)

// Config wires the server's dependencies.
type Config struct {
	Port          int
	Todos         service.TodoService
	TodoRepo      repository.TodoRepository
	Notifications *notify.Queue
	Submitter     controller.Submitter
	DB            database.Service
	Logger        *zap.Logger
	Animation     animation.Config
}

// Server serves the todo API and live UI sessions.
type Server struct {
	port          int
	todoService   service.TodoService
	todoRepo      repository.TodoRepository
	notifications *notify.Queue
	submitter     controller.Submitter
	db            database.Service
	logger        *zap.Logger
	animation     animation.Config
	upgrader      websocket.Upgrader

	// ctx is cancelled on shutdown so hijacked websocket sessions end too.
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Server. A zero Port is read from the PORT environment variable.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = portFromEnv(cfg.Logger)
	}
	if cfg.Animation == (animation.Config{}) {
		cfg.Animation = animation.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:          cfg.Port,
		todoService:   cfg.Todos,
		todoRepo:      cfg.TodoRepo,
		notifications: cfg.Notifications,
		submitter:     cfg.Submitter,
		db:            cfg.DB,
		logger:        cfg.Logger,
		animation:     cfg.Animation,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewServer returns the HTTP server for cfg. Shutting it down also ends
// every live UI session.
func NewServer(cfg Config) *http.Server {
	appServer := New(cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	server.RegisterOnShutdown(appServer.cancel)

	return server
}

func portFromEnv(logger *zap.Logger) int {
	portStr := os.Getenv("PORT")
	if portStr == "" {
		return 8080
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Warn("invalid PORT, using 8080", zap.String("port", portStr), zap.Error(err))
		return 8080
	}
	return port
}

// newController builds a controller for one request or session.
func (s *Server) newController(views viewSet) *controller.Controller {
	return controller.New(controller.Config{
		Todos:         s.todoService,
		Notifications: s.notifications,
		Submitter:     s.submitter,
		Logger:        s.logger,
		ModalView:     views.modal,
		AnimationView: views.animation,
		ErrorView:     views.errors,
		Animation:     s.animation,
	})
}
