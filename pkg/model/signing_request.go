package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SigningStatus records how a signing request ended.
type SigningStatus string

const (
	StatusSigned SigningStatus = "signed"
	StatusFailed SigningStatus = "failed"
)

// ErrSigningRequestNotFound indicates that no audit record exists for a request id.
var ErrSigningRequestNotFound = errors.New("signing request not found")

// SigningRequest is the audit record of one mail passing through the plugin.
// Signed URLs are bearer credentials and are deliberately not stored.
type SigningRequest struct {
	ID              uint           `json:"-" gorm:"primaryKey"`
	RequestID       string         `json:"request_id" gorm:"uniqueIndex"`
	AttachmentCount int            `json:"attachment_count"`
	SignedCount     int            `json:"signed_count"`
	Status          SigningStatus  `json:"status"`
	Error           string         `json:"error,omitempty"`
	Objects         []SignedObject `json:"objects" gorm:"foreignKey:RequestID;references:RequestID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SignedObject is one object-store reference that was turned into a URL.
type SignedObject struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	RequestID string    `json:"-" gorm:"index"`
	Position  int       `json:"position"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SigningRequestResponse is the outward shape of a SigningRequest.
type SigningRequestResponse struct {
	RequestID       string                 `json:"request_id"`
	Status          SigningStatus          `json:"status"`
	AttachmentCount int                    `json:"attachment_count"`
	SignedCount     int                    `json:"signed_count"`
	Error           string                 `json:"error,omitempty"`
	Objects         []SignedObjectResponse `json:"objects"`
	CreatedAt       time.Time              `json:"created_at"`
}

// SignedObjectResponse is the outward shape of a SignedObject.
type SignedObjectResponse struct {
	Position  int       `json:"position"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSigningRequestResponse translates a stored SigningRequest to its response shape.
func NewSigningRequestResponse(request SigningRequest) SigningRequestResponse {
	objects := make([]SignedObjectResponse, 0, len(request.Objects))
	for _, object := range request.Objects {
		objects = append(objects, SignedObjectResponse{
			Position:  object.Position,
			Bucket:    object.Bucket,
			Key:       object.Key,
			ExpiresAt: object.ExpiresAt.UTC(),
		})
	}
	return SigningRequestResponse{
		RequestID:       request.RequestID,
		Status:          request.Status,
		AttachmentCount: request.AttachmentCount,
		SignedCount:     request.SignedCount,
		Error:           request.Error,
		Objects:         objects,
		CreatedAt:       request.CreatedAt.UTC(),
	}
}

// ====================== DB CRUD METHODS ====================== //

func CreateSigningRequest(ctx context.Context, db *gorm.DB, request *SigningRequest) error {
	return db.WithContext(ctx).Create(request).Error
}

func GetSigningRequestByID(ctx context.Context, db *gorm.DB, requestID string) (*SigningRequest, error) {
	var request SigningRequest
	err := db.WithContext(ctx).
		Preload("Objects", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Where("request_id = ?", requestID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSigningRequestNotFound, requestID)
		}
		return nil, err
	}
	return &request, nil
}
