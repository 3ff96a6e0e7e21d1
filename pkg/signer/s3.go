package signer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// APIVersion is the S3 API version every signed request targets.
	APIVersion = "2006-03-01"
	// SignatureVersion is the only accepted scheme; it signs every query
	// parameter, including response metadata overrides.
	SignatureVersion = "v4"
	// DefaultRegion applies when neither options nor the AWS environment name one.
	DefaultRegion = "us-east-1"
	// DefaultExpiry is how long a signed URL stays valid unless configured.
	DefaultExpiry = 15 * time.Minute
)

// S3Options configures the S3 signing client.
type S3Options struct {
	APIVersion       string `yaml:"apiVersion" json:"apiVersion"`
	SignatureVersion string `yaml:"signatureVersion" json:"signatureVersion"`
	Region           string `yaml:"region" json:"region"`
	Endpoint         string `yaml:"endpoint" json:"endpoint"`
	ForcePathStyle   bool   `yaml:"forcePathStyle" json:"forcePathStyle"`
	Profile          string `yaml:"profile" json:"profile"`
	AccessKeyID      string `yaml:"accessKeyId" json:"accessKeyId"`
	SecretAccessKey  string `yaml:"secretAccessKey" json:"secretAccessKey"`
	SessionToken     string `yaml:"sessionToken" json:"sessionToken"`
	ExpiresSec       int    `yaml:"expiresSec" json:"expiresSec"`
}

// WithDefaults fills unset versions. Region is left alone so the AWS
// environment can still supply it.
func (options S3Options) WithDefaults() S3Options {
	if options.APIVersion == "" {
		options.APIVersion = APIVersion
	}
	if options.SignatureVersion == "" {
		options.SignatureVersion = SignatureVersion
	}
	return options
}

// Expiry returns the configured URL lifetime.
func (options S3Options) Expiry() time.Duration {
	if options.ExpiresSec <= 0 {
		return DefaultExpiry
	}
	return time.Duration(options.ExpiresSec) * time.Second
}

// PresignGetObjectAPI is the subset of the S3 presign client used for signing.
type PresignGetObjectAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ PresignGetObjectAPI = (*s3.PresignClient)(nil)

// S3Signer presigns GetObject requests.
type S3Signer struct {
	presigner PresignGetObjectAPI
	expiry    time.Duration
	logger    *slog.Logger
}

// NewS3Signer loads AWS configuration for the given options and returns a
// signer backed by a single S3 presign client.
func NewS3Signer(ctx context.Context, options S3Options, logger *slog.Logger) (*S3Signer, error) {
	normalized := options.WithDefaults()
	if normalized.APIVersion != APIVersion {
		return nil, fmt.Errorf("signer: unsupported s3 api version %q", normalized.APIVersion)
	}
	if normalized.SignatureVersion != SignatureVersion {
		return nil, fmt.Errorf("signer: unsupported signature version %q", normalized.SignatureVersion)
	}

	var loadOptions []func(*config.LoadOptions) error
	if normalized.Region != "" {
		loadOptions = append(loadOptions, config.WithRegion(normalized.Region))
	}
	if normalized.Profile != "" {
		loadOptions = append(loadOptions, config.WithSharedConfigProfile(normalized.Profile))
	}
	if normalized.AccessKeyID != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(normalized.AccessKeyID, normalized.SecretAccessKey, normalized.SessionToken),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("signer: load aws config: %w", err)
	}
	if awsConfig.Region == "" {
		awsConfig.Region = DefaultRegion
	}

	client := s3.NewFromConfig(awsConfig, func(clientOptions *s3.Options) {
		clientOptions.UsePathStyle = normalized.ForcePathStyle
		if normalized.Endpoint != "" {
			clientOptions.BaseEndpoint = aws.String(normalized.Endpoint)
		}
	})
	return NewS3SignerWithPresigner(s3.NewPresignClient(client), normalized.Expiry(), logger), nil
}

// NewS3SignerWithPresigner wraps an existing presigner.
func NewS3SignerWithPresigner(presigner PresignGetObjectAPI, expiry time.Duration, logger *slog.Logger) *S3Signer {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Signer{
		presigner: presigner,
		expiry:    expiry,
		logger:    logger,
	}
}

// Expiry reports how long URLs produced by this signer stay valid.
func (s3Signer *S3Signer) Expiry() time.Duration {
	return s3Signer.expiry
}

// SignURL presigns a GetObject request for params.
func (s3Signer *S3Signer) SignURL(ctx context.Context, operation Operation, params Params) (string, error) {
	if operation != OperationGetObject {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, operation)
	}
	if params.Bucket == "" {
		return "", ErrMissingBucket
	}

	presigned, err := s3Signer.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(params.Bucket),
		Key:    aws.String(params.Key),
	}, s3.WithPresignExpires(s3Signer.expiry))
	if err != nil {
		return "", fmt.Errorf("signer: presign %s/%s: %w", params.Bucket, params.Key, err)
	}
	s3Signer.logger.Debug("object_url_signed", "bucket", params.Bucket, "key", params.Key, "expires_in", s3Signer.expiry)
	return presigned.URL, nil
}
