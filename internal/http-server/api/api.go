package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"alphagate/internal/config"
	"alphagate/internal/http-server/handlers/access"
	"alphagate/internal/http-server/handlers/admin"
	"alphagate/internal/http-server/handlers/booking"
	"alphagate/internal/http-server/handlers/captcha"
	handlerErrors "alphagate/internal/http-server/handlers/errors"
	"alphagate/internal/http-server/handlers/health"
	"alphagate/internal/http-server/handlers/login"
	"alphagate/internal/http-server/middleware/authenticate"
	"alphagate/internal/http-server/middleware/logger"
	"alphagate/internal/http-server/middleware/ratelimit"
	"alphagate/internal/http-server/middleware/timeout"
	"alphagate/lib/api/remote"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	captcha.Core
	login.Core
	access.Core
	admin.Core
	booking.Core
}

func NewRouter(conf *config.Config, log *slog.Logger, handler Handler) http.Handler {
	trusted, err := remote.ParseTrusted(conf.Listen.TrustedProxies)
	if err != nil {
		log.With(sl.Module("api.server")).Error("ignoring trusted proxies", sl.Err(err))
		trusted = nil
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(remote.Resolver(trusted))
	router.Use(logger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(timeout.Timeout(10))
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(handlerErrors.NotFound(log))
	router.MethodNotAllowed(handlerErrors.NotAllowed(log))

	strict := passThrough
	moderate := passThrough
	if conf.RateLimit.Enabled {
		strict = ratelimit.ByIP(log, ratelimit.Strict)
		moderate = ratelimit.ByIP(log, ratelimit.Moderate)
	}

	router.Get("/health", health.Health())
	router.With(moderate).Get("/captcha", captcha.Issue(log, handler))
	router.With(strict).Post("/login", login.Login(log, handler))
	router.With(moderate).Post("/request-pass", access.RequestPass(log, handler))
	router.With(moderate).Post("/booking", booking.Book(log, handler))

	router.Route("/admin", func(adm chi.Router) {
		adm.With(strict).Post("/login", admin.Login(log, handler))
		adm.Group(func(secured chi.Router) {
			secured.Use(authenticate.New(log, handler))
			secured.Get("/requests", admin.Requests(log, handler))
			secured.Get("/logins", admin.Logins(log, handler))
			secured.Post("/approve-request/{id}", admin.Approve(log, handler))
			secured.Post("/generate-code", admin.Generate(log, handler))
			secured.Get("/export", admin.Export(log, handler))
		})
	})

	return router
}

func passThrough(next http.Handler) http.Handler {
	return next
}

func New(conf *config.Config, log *slog.Logger, handler Handler) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(conf, log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIp, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}
