package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tyemirov/signedattach/pkg/attachments"
	"github.com/tyemirov/signedattach/pkg/metrics"
	"github.com/tyemirov/signedattach/pkg/model"
	"gorm.io/gorm"
)

// SigningService defines the external interface for signing mail attachments.
type SigningService interface {
	// SignMail rewrites the attachments of mail and records what was signed.
	// When signing fails after the audit record was stored, the response
	// still carries its RequestID.
	SignMail(ctx context.Context, mail *model.Mail) (SignResponse, error)
	// GetSigningRequest retrieves the stored audit record of a request.
	GetSigningRequest(ctx context.Context, requestID string) (model.SigningRequestResponse, error)
}

// ErrMissingRequestID indicates a lookup without a request id.
var ErrMissingRequestID = errors.New("missing request_id")

// MailCompiler is the plugin surface the service depends on.
type MailCompiler interface {
	Compile(ctx context.Context, mail *model.Mail, observers ...attachments.Observer) (*model.Mail, error)
	URLLifetime() time.Duration
}

// SignResponse carries the rewritten mail and the audit id of the request.
type SignResponse struct {
	RequestID string
	Mail      *model.Mail
}

type signingServiceImpl struct {
	database *gorm.DB
	logger   *slog.Logger
	compiler MailCompiler
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSigningService creates a SigningService backed by the given database and compiler.
// metrics may be nil.
func NewSigningService(db *gorm.DB, logger *slog.Logger, compiler MailCompiler, collectors *metrics.Metrics) SigningService {
	return &signingServiceImpl{
		database: db,
		logger:   logger,
		compiler: compiler,
		metrics:  collectors,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (serviceInstance *signingServiceImpl) SignMail(ctx context.Context, mail *model.Mail) (SignResponse, error) {
	if mail == nil {
		serviceInstance.logger.Error("Missing mail payload")
		return SignResponse{}, fmt.Errorf("%w: missing mail", model.ErrInvalidMail)
	}

	requestID := uuid.NewString()
	startedAt := serviceInstance.now()
	expiresAt := startedAt.Add(serviceInstance.compiler.URLLifetime())
	attachmentCount := len(mail.Attachments)

	var signedObjects []model.SignedObject
	compiledMail, compileError := serviceInstance.compiler.Compile(ctx, mail, func(signed attachments.SignedAttachment) {
		signedObjects = append(signedObjects, model.SignedObject{
			Position:  signed.Position,
			Bucket:    signed.Params.Bucket,
			Key:       signed.Params.Key,
			ExpiresAt: expiresAt,
		})
	})

	record := model.SigningRequest{
		RequestID:       requestID,
		AttachmentCount: attachmentCount,
		SignedCount:     len(signedObjects),
		Status:          model.StatusSigned,
		Objects:         signedObjects,
	}
	if compileError != nil {
		serviceInstance.logger.Error("Attachment signing failed", "request_id", requestID, "error", compileError)
		record.Status = model.StatusFailed
		record.Error = compileError.Error()
		record.Objects = nil
		record.SignedCount = 0
	}

	serviceInstance.metrics.ObserveRequest(string(record.Status), record.SignedCount, serviceInstance.now().Sub(startedAt))

	if persistError := model.CreateSigningRequest(ctx, serviceInstance.database, &record); persistError != nil {
		serviceInstance.logger.Error("Failed to store signing request", "request_id", requestID, "error", persistError)
		if compileError != nil {
			return SignResponse{}, compileError
		}
		return SignResponse{}, persistError
	}
	serviceInstance.logger.Info(
		"signing_request_persisted",
		"request_id", requestID,
		"status", record.Status,
		"attachment_count", record.AttachmentCount,
		"signed_count", record.SignedCount,
	)

	if compileError != nil {
		return SignResponse{RequestID: requestID}, fmt.Errorf("signing request %s: %w", requestID, compileError)
	}
	return SignResponse{RequestID: requestID, Mail: compiledMail}, nil
}

func (serviceInstance *signingServiceImpl) GetSigningRequest(ctx context.Context, requestID string) (model.SigningRequestResponse, error) {
	if requestID == "" {
		serviceInstance.logger.Error("Missing request_id")
		return model.SigningRequestResponse{}, ErrMissingRequestID
	}
	record, retrievalError := model.GetSigningRequestByID(ctx, serviceInstance.database, requestID)
	if retrievalError != nil {
		serviceInstance.logger.Error("Failed to retrieve signing request", "request_id", requestID, "error", retrievalError)
		return model.SigningRequestResponse{}, retrievalError
	}
	return model.NewSigningRequestResponse(*record), nil
}
