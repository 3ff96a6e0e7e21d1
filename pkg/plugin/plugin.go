package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tyemirov/signedattach/pkg/attachments"
	"github.com/tyemirov/signedattach/pkg/model"
	"github.com/tyemirov/signedattach/pkg/signer"
)

// TransformFunc is the hook installed into a host mail pipeline. It rewrites
// mail in place and reports completion through done.
type TransformFunc func(ctx context.Context, mail *model.Mail, done func(error))

// Plugin holds the normalized options and the signing client shared by every
// transformed mail.
type Plugin struct {
	options Options
	signer  signer.Signer
	logger  *slog.Logger
}

// Option customizes plugin construction.
type Option func(*Plugin)

// WithSigner replaces the S3 signing client, mainly for tests and alternative stores.
func WithSigner(urlSigner signer.Signer) Option {
	return func(pluginInstance *Plugin) {
		pluginInstance.signer = urlSigner
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pluginInstance *Plugin) {
		if logger != nil {
			pluginInstance.logger = logger
		}
	}
}

// New normalizes options and builds the signing client once for the lifetime
// of the plugin.
func New(ctx context.Context, options Options, opts ...Option) (*Plugin, error) {
	pluginInstance := &Plugin{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(pluginInstance)
	}
	pluginInstance.options = normalizeOptions(options, pluginInstance.logger)

	if pluginInstance.signer == nil {
		s3Signer, err := signer.NewS3Signer(ctx, pluginInstance.options.S3, pluginInstance.logger)
		if err != nil {
			return nil, fmt.Errorf("plugin: build signing client: %w", err)
		}
		pluginInstance.signer = s3Signer
	}
	return pluginInstance, nil
}

// NewFromMap decodes loosely typed options and builds the plugin.
func NewFromMap(ctx context.Context, raw map[string]any, opts ...Option) (*Plugin, error) {
	options, err := DecodeOptions(raw)
	if err != nil {
		return nil, err
	}
	return New(ctx, options, opts...)
}

func normalizeOptions(options Options, logger *slog.Logger) Options {
	normalized := options
	normalized.S3 = options.S3.WithDefaults()
	if normalized.S3.APIVersion != signer.APIVersion {
		logger.Warn("Overriding S3 API version", "requested", normalized.S3.APIVersion, "pinned", signer.APIVersion)
		normalized.S3.APIVersion = signer.APIVersion
	}
	if normalized.S3.SignatureVersion != signer.SignatureVersion {
		logger.Warn("Overriding S3 signature version", "requested", normalized.S3.SignatureVersion, "forced", signer.SignatureVersion)
		normalized.S3.SignatureVersion = signer.SignatureVersion
	}
	return normalized
}

// Options returns the normalized options.
func (pluginInstance *Plugin) Options() Options {
	return pluginInstance.options
}

// URLLifetime reports how long signed URLs remain valid.
func (pluginInstance *Plugin) URLLifetime() time.Duration {
	return pluginInstance.options.S3.Expiry()
}

// Compile rewrites the attachments of mail and returns it.
func (pluginInstance *Plugin) Compile(ctx context.Context, mail *model.Mail, observers ...attachments.Observer) (*model.Mail, error) {
	compiled, err := attachments.Compile(ctx, mail, pluginInstance.signer, attachments.Options{
		DefaultBucket: pluginInstance.options.DefaultBucket,
	}, observers...)
	if err != nil {
		return nil, err
	}
	if compiled != nil {
		pluginInstance.logger.Debug("attachments_compiled", "attachment_count", len(compiled.Attachments))
	}
	return compiled, nil
}

// Transform compiles mail and calls done exactly once, with nil on success or
// the failure otherwise. A panic while compiling is reported through done.
// done runs before Transform returns.
func (pluginInstance *Plugin) Transform(ctx context.Context, mail *model.Mail, done func(error)) {
	transformErr := pluginInstance.safeCompile(ctx, mail)
	if transformErr != nil {
		pluginInstance.logger.Error("Attachment transform failed", "error", transformErr)
	}
	if done != nil {
		done(transformErr)
	}
}

// TransformFunc returns Transform as a value ready to install into a host pipeline.
func (pluginInstance *Plugin) TransformFunc() TransformFunc {
	return pluginInstance.Transform
}

func (pluginInstance *Plugin) safeCompile(ctx context.Context, mail *model.Mail) (compileErr error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			compileErr = fmt.Errorf("plugin: transform panicked: %v", recovered)
		}
	}()
	_, compileErr = pluginInstance.Compile(ctx, mail)
	return compileErr
}
