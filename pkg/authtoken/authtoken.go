// Package authtoken generates bearer tokens for GRPC_AUTH_TOKEN and
// SIGNEDATTACH_AUTH_TOKEN.
package authtoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	minTokenBytes     = 32
	defaultTokenBytes = 48
)

var (
	// ErrEntropyUnavailable indicates that reading random bytes failed.
	ErrEntropyUnavailable = errors.New("authtoken: entropy_unavailable")
	// ErrMissingEntropySource indicates a nil random source.
	ErrMissingEntropySource = errors.New("authtoken: missing_entropy_source")
	// ErrTokenTooShort indicates a requested size below the minimum.
	ErrTokenTooShort = errors.New("authtoken: token_too_short")
)

// Size is the number of random bytes behind a token.
type Size struct {
	bytes int
}

// NewSize validates a requested token size.
func NewSize(byteCount int) (Size, error) {
	if byteCount < minTokenBytes {
		return Size{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrTokenTooShort, byteCount, minTokenBytes)
	}
	return Size{bytes: byteCount}, nil
}

// DefaultSize returns the size used when none is requested.
func DefaultSize() Size {
	return Size{bytes: defaultTokenBytes}
}

// Bytes reports the underlying byte count.
func (size Size) Bytes() int {
	return size.bytes
}

// Generator mints tokens from an entropy source.
type Generator struct {
	entropy io.Reader
}

// NewGenerator constructs a Generator reading from entropy.
func NewGenerator(entropy io.Reader) (*Generator, error) {
	if entropy == nil {
		return nil, ErrMissingEntropySource
	}
	return &Generator{entropy: entropy}, nil
}

// NewCryptoGenerator returns a Generator backed by crypto/rand.
func NewCryptoGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// Generate returns a URL-safe token of the given size.
func (generator *Generator) Generate(ctx context.Context, size Size) (string, error) {
	if generator == nil || generator.entropy == nil {
		return "", ErrMissingEntropySource
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("authtoken: %w", err)
	}
	if size.bytes == 0 {
		size = DefaultSize()
	}

	buffer := make([]byte, size.bytes)
	if _, err := io.ReadFull(generator.entropy, buffer); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
