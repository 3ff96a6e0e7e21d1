package attachments

import (
	"context"
	"fmt"

	"github.com/tyemirov/signedattach/pkg/model"
	"github.com/tyemirov/signedattach/pkg/signer"
	"golang.org/x/sync/errgroup"
)

// Options controls a Compile call.
type Options struct {
	// DefaultBucket is used for references that do not name a bucket.
	DefaultBucket string
}

// SignedAttachment describes one attachment whose reference was replaced.
type SignedAttachment struct {
	Position int
	Params   signer.Params
}

// Observer is told about each signed attachment once the whole mail succeeded.
// Observers run sequentially in attachment order.
type Observer func(SignedAttachment)

// Compile replaces every object-store reference in mail's attachments with a
// signed URL. The mail is mutated in place and also returned.
//
// A mail without an attachments field is returned untouched. All references
// are signed concurrently; the first failure cancels the remaining calls and
// fails the whole mail, leaving its attachment list as it was.
func Compile(ctx context.Context, mail *model.Mail, urlSigner signer.Signer, options Options, observers ...Observer) (*model.Mail, error) {
	if mail == nil || mail.Attachments == nil {
		return mail, nil
	}

	transformed := make([]model.Attachment, len(mail.Attachments))
	signedParams := make([]*signer.Params, len(mail.Attachments))

	group, groupCtx := errgroup.WithContext(ctx)
	for position, attachment := range mail.Attachments {
		group.Go(func() (signErr error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					signErr = fmt.Errorf("attachment %d: signer panicked: %v", position, recovered)
				}
			}()
			signedAttachment, params, err := signAttachment(groupCtx, attachment, urlSigner, options.DefaultBucket)
			if err != nil {
				return fmt.Errorf("attachment %d: %w", position, err)
			}
			transformed[position] = signedAttachment
			signedParams[position] = params
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	mail.Attachments = transformed

	for position, params := range signedParams {
		if params == nil {
			continue
		}
		for _, observer := range observers {
			observer(SignedAttachment{Position: position, Params: *params})
		}
	}
	return mail, nil
}

func signAttachment(ctx context.Context, attachment model.Attachment, urlSigner signer.Signer, defaultBucket string) (model.Attachment, *signer.Params, error) {
	reference := attachment.ObjectStore
	if reference == nil {
		return attachment, nil, nil
	}

	params := signer.Params{
		Bucket: reference.ResolveBucket(defaultBucket),
		Key:    reference.Key,
	}
	if params.Bucket == "" {
		return model.Attachment{}, nil, signer.ErrMissingBucket
	}

	signedURL, err := urlSigner.SignURL(ctx, signer.OperationGetObject, params)
	if err != nil {
		return model.Attachment{}, nil, err
	}

	attachment.ObjectStore = nil
	attachment.URL = signedURL
	return attachment, &params, nil
}
