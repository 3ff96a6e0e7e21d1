package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/tyemirov/signedattach/pkg/grpcapi"
	"github.com/tyemirov/signedattach/pkg/grpcutil"
	"github.com/tyemirov/signedattach/pkg/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Settings holds the connection parameters of a SigningClient.
type Settings struct {
	serverAddress     string
	authToken         string
	connectionTimeout time.Duration
	operationTimeout  time.Duration
}

// NewSettings validates and captures the client connection parameters.
func NewSettings(serverAddress string, authToken string, connectionTimeoutSec int, operationTimeoutSec int) (Settings, error) {
	trimmedAddress := strings.TrimSpace(serverAddress)
	if trimmedAddress == "" {
		return Settings{}, errors.New("client: server address is required")
	}
	if strings.TrimSpace(authToken) == "" {
		return Settings{}, errors.New("client: auth token is required")
	}
	if connectionTimeoutSec <= 0 {
		return Settings{}, fmt.Errorf("client: connection timeout must be positive, got %d", connectionTimeoutSec)
	}
	if operationTimeoutSec <= 0 {
		return Settings{}, fmt.Errorf("client: operation timeout must be positive, got %d", operationTimeoutSec)
	}
	return Settings{
		serverAddress:     trimmedAddress,
		authToken:         authToken,
		connectionTimeout: time.Duration(connectionTimeoutSec) * time.Second,
		operationTimeout:  time.Duration(operationTimeoutSec) * time.Second,
	}, nil
}

func (settings Settings) ServerAddress() string {
	return settings.serverAddress
}

func (settings Settings) OperationTimeout() time.Duration {
	return settings.operationTimeout
}

// SigningClient is a thin wrapper over the gRPC AttachmentSigner client.
type SigningClient struct {
	conn       *grpc.ClientConn
	grpcClient grpcapi.AttachmentSignerClient
	logger     *slog.Logger
	settings   Settings
}

// NewSigningClient creates a new SigningClient.
func NewSigningClient(logger *slog.Logger, settings Settings) (*SigningClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	connectionTimeout := settings.connectionTimeout

	conn, err := grpc.NewClient(
		settings.serverAddress,
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: connectionTimeout}
			return dialer.DialContext(ctx, "tcp", addr)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(grpcutil.MaxMessageSizeBytes),
			grpc.MaxCallSendMsgSize(grpcutil.MaxMessageSizeBytes),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gRPC server: %w", err)
	}

	return &SigningClient{
		conn:       conn,
		grpcClient: grpcapi.NewAttachmentSignerClient(conn),
		logger:     logger,
		settings:   settings,
	}, nil
}

// Close closes the underlying gRPC connection.
func (clientInstance *SigningClient) Close() error {
	return clientInstance.conn.Close()
}

// SignMail sends mail to the server and returns the rewritten copy along with
// the audit id of the request.
// Note: Errors are simply returned without logging here.
func (clientInstance *SigningClient) SignMail(ctx context.Context, mail *model.Mail) (grpcapi.SignResult, error) {
	request, err := grpcapi.MailToStruct(mail)
	if err != nil {
		return grpcapi.SignResult{}, err
	}
	ctx, cancel := clientInstance.operationContext(ctx)
	defer cancel()

	response, err := clientInstance.grpcClient.SignMail(ctx, request)
	if err != nil {
		return grpcapi.SignResult{}, err
	}
	return grpcapi.SignResultFromStruct(response)
}

// GetSigningRequest retrieves the audit record of a request.
// Note: Errors are simply returned without logging here.
func (clientInstance *SigningClient) GetSigningRequest(ctx context.Context, requestID string) (model.SigningRequestResponse, error) {
	ctx, cancel := clientInstance.operationContext(ctx)
	defer cancel()

	response, err := clientInstance.grpcClient.GetSigningRequest(ctx, grpcapi.RequestIDToStruct(requestID))
	if err != nil {
		return model.SigningRequestResponse{}, err
	}
	return grpcapi.SigningRequestFromStruct(response)
}

func (clientInstance *SigningClient) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, clientInstance.settings.operationTimeout)
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+clientInstance.settings.authToken)
	return ctx, cancel
}
