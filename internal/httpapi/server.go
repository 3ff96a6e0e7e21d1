package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tyemirov/signedattach/pkg/model"
	"github.com/tyemirov/signedattach/pkg/plugin"
	"github.com/tyemirov/signedattach/pkg/service"
	"github.com/tyemirov/signedattach/pkg/signer"
)

const (
	defaultTimeout  = 5 * time.Second
	maxRequestBytes = 32 << 20
	requestIDHeader = "X-Request-ID"
)

// Config captures all inputs required to construct the HTTP server.
type Config struct {
	ListenAddr           string
	AllowedOrigins       []string
	AuthToken            string
	SigningService       service.SigningService
	Gatherer             prometheus.Gatherer
	Logger               *slog.Logger
	OperationTimeout     time.Duration
	ReadHeaderTimeout    time.Duration
	ShutdownGraceTimeout time.Duration
}

// Server hosts the authenticated signing endpoints, health and metrics.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires Gin, middleware, and handlers for the HTTP API.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, errors.New("httpapi: listen address is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("httpapi: auth token is required")
	}
	if cfg.SigningService == nil {
		return nil, errors.New("httpapi: signing service is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("httpapi: logger is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(cfg.Logger))
	engine.Use(buildCORS(cfg.AllowedOrigins))

	engine.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	protected := engine.Group("/api")
	protected.Use(bearerMiddleware(cfg.AuthToken))

	handler := newSigningHandler(cfg.SigningService, cfg.Logger, pickDuration(cfg.OperationTimeout, 30*time.Second))
	protected.POST("/mail/sign", handler.signMail)
	protected.GET("/signing-requests/:id", handler.getSigningRequest)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: pickDuration(cfg.ReadHeaderTimeout, defaultTimeout),
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     cfg.Logger,
	}, nil
}

// Handler exposes the routed engine.
func (server *Server) Handler() http.Handler {
	return server.httpServer.Handler
}

// Start begins serving HTTP traffic.
func (server *Server) Start() error {
	err := server.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates the HTTP server.
func (server *Server) Shutdown(ctx context.Context) error {
	timeout := pickDuration(server.config.ShutdownGraceTimeout, defaultTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return server.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		started := time.Now()
		contextGin.Next()
		logger.Info(
			"http_request_completed",
			"method", contextGin.Request.Method,
			"path", contextGin.Request.URL.Path,
			"status", contextGin.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}

func buildCORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func bearerMiddleware(expectedToken string) gin.HandlerFunc {
	expected := []byte("Bearer " + expectedToken)
	return func(contextGin *gin.Context) {
		provided := []byte(contextGin.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		contextGin.Next()
	}
}

type signingHandler struct {
	service          service.SigningService
	logger           *slog.Logger
	operationTimeout time.Duration
}

func newSigningHandler(svc service.SigningService, logger *slog.Logger, operationTimeout time.Duration) *signingHandler {
	return &signingHandler{service: svc, logger: logger, operationTimeout: operationTimeout}
}

func (handler *signingHandler) signMail(contextGin *gin.Context) {
	contextGin.Request.Body = http.MaxBytesReader(contextGin.Writer, contextGin.Request.Body, maxRequestBytes)
	var mail model.Mail
	if err := contextGin.ShouldBindJSON(&mail); err != nil {
		contextGin.JSON(http.StatusBadRequest, gin.H{"error": "invalid mail payload"})
		return
	}

	ctx, cancel := context.WithTimeout(contextGin.Request.Context(), handler.operationTimeout)
	defer cancel()

	response, err := handler.service.SignMail(ctx, &mail)
	if err != nil {
		if response.RequestID != "" {
			contextGin.Header(requestIDHeader, response.RequestID)
		}
		handler.writeError(contextGin, err)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{
		"request_id": response.RequestID,
		"mail":       response.Mail,
	})
}

func (handler *signingHandler) getSigningRequest(contextGin *gin.Context) {
	ctx, cancel := context.WithTimeout(contextGin.Request.Context(), handler.operationTimeout)
	defer cancel()

	response, err := handler.service.GetSigningRequest(ctx, strings.TrimSpace(contextGin.Param("id")))
	if err != nil {
		handler.writeError(contextGin, err)
		return
	}
	contextGin.JSON(http.StatusOK, response)
}

func (handler *signingHandler) writeError(contextGin *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidMail),
		errors.Is(err, signer.ErrMissingBucket),
		errors.Is(err, service.ErrMissingRequestID),
		errors.Is(err, plugin.ErrInvalidConfig):
		contextGin.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrSigningRequestNotFound):
		contextGin.JSON(http.StatusNotFound, gin.H{"error": "signing request not found"})
	case errors.Is(err, context.DeadlineExceeded):
		contextGin.JSON(http.StatusGatewayTimeout, gin.H{"error": "signing timed out"})
	default:
		handler.logger.Error("http_handler_error", "error", err)
		contextGin.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pickDuration(candidate time.Duration, fallback time.Duration) time.Duration {
	if candidate <= 0 {
		return fallback
	}
	return candidate
}
