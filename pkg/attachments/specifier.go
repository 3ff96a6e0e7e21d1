package attachments

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/tyemirov/signedattach/pkg/model"
)

const (
	specifierSeparator = "::"
	objectStoreScheme  = "s3://"
)

// ErrEmptySpecifier indicates a specifier without an object location.
var ErrEmptySpecifier = errors.New("attachments: missing object location")

// Load turns specifiers of the form "s3://bucket/key[ :: filename]" or
// "key[ :: filename]" into attachments referencing object-store objects.
// Specifiers without a bucket rely on the plugin's default bucket.
func Load(specifiers []string) ([]model.Attachment, error) {
	loaded := make([]model.Attachment, 0, len(specifiers))
	for _, specifier := range specifiers {
		location, filename := splitInput(specifier)
		if location == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySpecifier, specifier)
		}
		reference, err := parseLocation(location)
		if err != nil {
			return nil, err
		}
		if filename == "" {
			filename = path.Base(reference.Key)
		}

		fields := map[string]any{"filename": filename}
		if contentType := mime.TypeByExtension(path.Ext(filename)); contentType != "" {
			fields["contentType"] = contentType
		}
		loaded = append(loaded, model.Attachment{
			Fields:      fields,
			ObjectStore: &reference,
		})
	}
	return loaded, nil
}

func splitInput(input string) (string, string) {
	location, filename, _ := strings.Cut(input, specifierSeparator)
	return strings.TrimSpace(location), strings.TrimSpace(filename)
}

func parseLocation(location string) (model.ObjectReference, error) {
	if !strings.HasPrefix(location, objectStoreScheme) {
		return model.ObjectReference{Key: location}, nil
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(location, objectStoreScheme), "/")
	if bucket == "" || !found || key == "" {
		return model.ObjectReference{}, fmt.Errorf("attachments: %q must look like s3://bucket/key", location)
	}
	return model.ObjectReference{Bucket: bucket, Key: key}, nil
}
