package signer

import (
	"context"
	"errors"
)

// Operation names the object-store call a URL grants access to.
type Operation string

// OperationGetObject grants retrieval of a single object.
const OperationGetObject Operation = "getObject"

var (
	// ErrMissingBucket indicates that no bucket could be resolved for an object.
	ErrMissingBucket = errors.New("signer: missing required parameter Bucket")
	// ErrUnsupportedOperation indicates an operation the signer cannot presign.
	ErrUnsupportedOperation = errors.New("signer: unsupported operation")
)

// Params identifies the object a URL is signed for.
type Params struct {
	Bucket string
	Key    string
}

// Signer produces time-limited URLs for object-store operations.
// Implementations must be safe for concurrent use.
type Signer interface {
	SignURL(ctx context.Context, operation Operation, params Params) (string, error)
}

// Func adapts a plain function to the Signer interface.
type Func func(ctx context.Context, operation Operation, params Params) (string, error)

// SignURL calls the underlying function.
func (signerFunc Func) SignURL(ctx context.Context, operation Operation, params Params) (string, error) {
	return signerFunc(ctx, operation, params)
}
