package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tyemirov/signedattach/internal/config"
	"github.com/tyemirov/signedattach/internal/httpapi"
	"github.com/tyemirov/signedattach/pkg/db"
	"github.com/tyemirov/signedattach/pkg/grpcapi"
	"github.com/tyemirov/signedattach/pkg/grpcutil"
	"github.com/tyemirov/signedattach/pkg/logging"
	"github.com/tyemirov/signedattach/pkg/metrics"
	"github.com/tyemirov/signedattach/pkg/model"
	"github.com/tyemirov/signedattach/pkg/plugin"
	"github.com/tyemirov/signedattach/pkg/service"
	"github.com/tyemirov/signedattach/pkg/signer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// attachmentSignerServer implements grpcapi.AttachmentSignerServer.
type attachmentSignerServer struct {
	grpcapi.UnimplementedAttachmentSignerServer
	signingService   service.SigningService
	logger           *slog.Logger
	operationTimeout time.Duration
}

const (
	requestIDHeader         = "x-request-id"
	defaultOperationTimeout = 30 * time.Second
)

func (server *attachmentSignerServer) SignMail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mail, err := grpcapi.MailFromStruct(req)
	if err != nil {
		server.logger.Error("Invalid mail payload", "error", err)
		return nil, status.Errorf(codes.InvalidArgument, "invalid mail: %v", err)
	}

	operationCtx, cancel := context.WithTimeout(ctx, server.operationTimeout)
	defer cancel()

	response, err := server.signingService.SignMail(operationCtx, mail)
	if err != nil {
		server.logger.Error("Service SignMail error", "request_id", response.RequestID, "error", err)
		if response.RequestID != "" {
			if headerErr := grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, response.RequestID)); headerErr != nil {
				server.logger.Warn("Failed to attach request id", "error", headerErr)
			}
		}
		return nil, toStatusError(err)
	}

	encoded, err := grpcapi.SignResultToStruct(grpcapi.SignResult{RequestID: response.RequestID, Mail: response.Mail})
	if err != nil {
		server.logger.Error("Failed to encode signed mail", "error", err)
		return nil, status.Errorf(codes.Internal, "encode signed mail: %v", err)
	}
	return encoded, nil
}

func (server *attachmentSignerServer) GetSigningRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	operationCtx, cancel := context.WithTimeout(ctx, server.operationTimeout)
	defer cancel()

	response, err := server.signingService.GetSigningRequest(operationCtx, grpcapi.RequestIDFromStruct(req))
	if err != nil {
		server.logger.Error("Service GetSigningRequest error", "error", err)
		return nil, toStatusError(err)
	}
	encoded, err := grpcapi.SigningRequestToStruct(response)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode signing request: %v", err)
	}
	return encoded, nil
}

func toStatusError(err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidMail),
		errors.Is(err, signer.ErrMissingBucket),
		errors.Is(err, service.ErrMissingRequestID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrSigningRequestNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func buildAuthInterceptor(logger *slog.Logger, requiredToken string) grpc.UnaryServerInterceptor {
	expected := []byte(requiredToken)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			logger.Error("Missing metadata in gRPC request")
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			logger.Error("Missing authorization header")
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		if !strings.HasPrefix(authHeaders[0], "Bearer ") {
			logger.Error("Invalid authorization header format")
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header")
		}
		token := strings.TrimPrefix(authHeaders[0], "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.Error("Invalid token provided", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}

func newGRPCServer(logger *slog.Logger, authToken string, operationTimeout time.Duration, signingService service.SigningService) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(buildAuthInterceptor(logger, authToken)),
		grpc.MaxRecvMsgSize(grpcutil.MaxMessageSizeBytes),
		grpc.MaxSendMsgSize(grpcutil.MaxMessageSizeBytes),
	)
	grpcapi.RegisterAttachmentSignerServer(grpcServer, &attachmentSignerServer{
		signingService:   signingService,
		logger:           logger,
		operationTimeout: pickOperationTimeout(operationTimeout),
	})
	return grpcServer
}

func pickOperationTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultOperationTimeout
	}
	return timeout
}

func main() {
	configuration, configErr := config.LoadConfig()
	if configErr != nil {
		fallbackLogger := logging.NewLogger("INFO", "text")
		for _, errMsg := range strings.Split(configErr.Error(), ", ") {
			fallbackLogger.Error("Configuration error", "detail", errMsg)
		}
		os.Exit(1)
	}

	mainLogger := logging.NewLogger(configuration.LogLevel, configuration.LogFormat)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runErr := run(rootCtx, configuration, mainLogger); runErr != nil {
		mainLogger.Error("Server stopped with error", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, configuration config.Config, logger *slog.Logger) error {
	databaseInstance, dbErr := db.InitDB(configuration.DatabasePath, logger)
	if dbErr != nil {
		logger.Error("Failed to initialize DB", "error", dbErr)
		return dbErr
	}

	pluginInstance, pluginErr := plugin.New(ctx, configuration.Plugin, plugin.WithLogger(logger))
	if pluginErr != nil {
		logger.Error("Failed to configure attachment signer", "error", pluginErr)
		return pluginErr
	}

	registry := prometheus.NewRegistry()
	signingMetrics := metrics.MustNewMetrics(registry)
	signingSvc := service.NewSigningService(databaseInstance, logger, pluginInstance, signingMetrics)

	operationTimeout := time.Duration(configuration.OperationTimeoutSec) * time.Second
	grpcServer := newGRPCServer(logger, configuration.GRPCAuthToken, operationTimeout, signingSvc)
	listener, listenErr := net.Listen("tcp", configuration.GRPCListenAddr)
	if listenErr != nil {
		logger.Error("Failed to listen", "address", configuration.GRPCListenAddr, "error", listenErr)
		return listenErr
	}

	httpServer, httpErr := httpapi.NewServer(httpapi.Config{
		ListenAddr:       configuration.HTTPListenAddr,
		AllowedOrigins:   configuration.HTTPAllowedOrigins,
		AuthToken:        configuration.GRPCAuthToken,
		SigningService:   signingSvc,
		Gatherer:         registry,
		Logger:           logger,
		OperationTimeout: operationTimeout,
	})
	if httpErr != nil {
		listener.Close()
		logger.Error("Failed to configure HTTP server", "error", httpErr)
		return httpErr
	}

	serveErrors := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "address", configuration.GRPCListenAddr)
		serveErrors <- grpcServer.Serve(listener)
	}()
	go func() {
		logger.Info("HTTP server listening", "address", configuration.HTTPListenAddr)
		serveErrors <- httpServer.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case serveErr = <-serveErrors:
		logger.Error("Server crashed", "error", serveErr)
	}

	if shutdownErr := httpServer.Shutdown(context.Background()); shutdownErr != nil {
		logger.Error("HTTP shutdown failed", "error", shutdownErr)
	}
	grpcServer.GracefulStop()
	return serveErr
}
