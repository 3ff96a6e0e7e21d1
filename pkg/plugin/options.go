package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tyemirov/signedattach/pkg/signer"
	"gopkg.in/yaml.v3"
)

const defaultBucketField = "defaultBucket"

// ErrInvalidConfig indicates plugin options that cannot be used.
var ErrInvalidConfig = errors.New("plugin: invalid configuration")

// Options configures the plugin.
type Options struct {
	// DefaultBucket is used for attachments whose reference names no bucket.
	DefaultBucket string           `yaml:"defaultBucket" json:"defaultBucket"`
	S3            signer.S3Options `yaml:"s3" json:"s3"`
}

func errDefaultBucketNotString(found string) error {
	return fmt.Errorf("%w: option `defaultBucket` must be a string (e.g. defaultBucket: \"mybucket\"), got %s", ErrInvalidConfig, found)
}

// DecodeOptions converts loosely typed options, as supplied by a host
// configuration, into Options.
func DecodeOptions(raw map[string]any) (Options, error) {
	if raw == nil {
		return Options{}, nil
	}
	if value, present := raw[defaultBucketField]; present && value != nil {
		if _, isString := value.(string); !isString {
			return Options{}, errDefaultBucketNotString(fmt.Sprintf("%T", value))
		}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	var options Options
	if err := json.Unmarshal(encoded, &options); err != nil {
		return Options{}, err
	}
	return options, nil
}

// UnmarshalJSON implements json.Unmarshaler and enforces that defaultBucket is a string.
func (options *Options) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if rawBucket, present := probe[defaultBucketField]; present {
		trimmed := bytes.TrimSpace(rawBucket)
		if !bytes.Equal(trimmed, []byte("null")) && (len(trimmed) == 0 || trimmed[0] != '"') {
			return errDefaultBucketNotString(string(trimmed))
		}
	}

	type plainOptions Options
	var decoded plainOptions
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	*options = Options(decoded)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler and enforces that defaultBucket is a string.
func (options *Options) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for index := 0; index+1 < len(node.Content); index += 2 {
			if node.Content[index].Value != defaultBucketField {
				continue
			}
			valueNode := node.Content[index+1]
			if valueNode.Kind != yaml.ScalarNode || (valueNode.ShortTag() != "!!str" && valueNode.ShortTag() != "!!null") {
				return errDefaultBucketNotString(valueNode.ShortTag())
			}
		}
	}

	type plainOptions Options
	var decoded plainOptions
	if err := node.Decode(&decoded); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	*options = Options(decoded)
	return nil
}
