package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	fieldAttachments = "attachments"
	fieldObjectStore = "s3"
	fieldURL         = "url"
)

// ErrInvalidMail reports a mail payload whose attachments cannot be interpreted.
var ErrInvalidMail = errors.New("model: invalid mail")

// Mail is an outgoing message as handed over by the host mailer.
// Fields holds everything except the attachment list and is never inspected.
// A nil Attachments slice means the mail has no attachments field at all,
// while a non-nil empty slice means the field is present but empty.
type Mail struct {
	Fields      map[string]any
	Attachments []Attachment
}

// Attachment is one entry of a mail's attachment list.
type Attachment struct {
	Fields      map[string]any
	URL         string
	ObjectStore *ObjectReference
}

// ObjectReference points at an object in the object store.
type ObjectReference struct {
	Bucket string
	Key    string
}

// ResolveBucket returns the reference bucket, falling back to defaultBucket.
func (reference ObjectReference) ResolveBucket(defaultBucket string) string {
	if reference.Bucket != "" {
		return reference.Bucket
	}
	return defaultBucket
}

// NewMail builds a Mail from a loosely typed payload such as decoded JSON.
func NewMail(raw map[string]any) (*Mail, error) {
	mail := &Mail{Fields: make(map[string]any, len(raw))}
	for fieldName, fieldValue := range raw {
		if fieldName != fieldAttachments {
			mail.Fields[fieldName] = fieldValue
			continue
		}
		if fieldValue == nil {
			continue
		}
		rawAttachments, ok := fieldValue.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: attachments must be a list, got %T", ErrInvalidMail, fieldValue)
		}
		mail.Attachments = make([]Attachment, 0, len(rawAttachments))
		for index, rawAttachment := range rawAttachments {
			attachmentFields, isObject := rawAttachment.(map[string]any)
			if !isObject {
				return nil, fmt.Errorf("%w: attachment %d must be an object, got %T", ErrInvalidMail, index, rawAttachment)
			}
			mail.Attachments = append(mail.Attachments, NewAttachment(attachmentFields))
		}
	}
	return mail, nil
}

// NewAttachment splits a raw attachment into its opaque fields, its url and
// its object-store reference. Only an object-valued s3 field counts as a
// reference; any other s3 value stays among the opaque fields, as does a
// url that is not a non-empty string.
func NewAttachment(raw map[string]any) Attachment {
	attachment := Attachment{Fields: make(map[string]any, len(raw))}
	for fieldName, fieldValue := range raw {
		switch fieldName {
		case fieldObjectStore:
			if referenceFields, isObject := fieldValue.(map[string]any); isObject {
				reference := parseObjectReference(referenceFields)
				attachment.ObjectStore = &reference
				continue
			}
		case fieldURL:
			if urlValue, isString := fieldValue.(string); isString && urlValue != "" {
				attachment.URL = urlValue
				continue
			}
		}
		attachment.Fields[fieldName] = fieldValue
	}
	return attachment
}

func parseObjectReference(raw map[string]any) ObjectReference {
	return ObjectReference{
		Bucket: firstString(raw, "bucket", "Bucket"),
		Key:    firstString(raw, "key", "Key"),
	}
}

func firstString(raw map[string]any, candidateNames ...string) string {
	for _, candidateName := range candidateNames {
		if value, isString := raw[candidateName].(string); isString && value != "" {
			return value
		}
	}
	return ""
}

// Map renders the mail back into its loosely typed form.
func (mail *Mail) Map() map[string]any {
	rendered := make(map[string]any, len(mail.Fields)+1)
	for fieldName, fieldValue := range mail.Fields {
		rendered[fieldName] = fieldValue
	}
	if mail.Attachments != nil {
		renderedAttachments := make([]any, 0, len(mail.Attachments))
		for _, attachment := range mail.Attachments {
			renderedAttachments = append(renderedAttachments, attachment.Map())
		}
		rendered[fieldAttachments] = renderedAttachments
	}
	return rendered
}

// Map renders the attachment back into its loosely typed form.
func (attachment Attachment) Map() map[string]any {
	rendered := make(map[string]any, len(attachment.Fields)+2)
	for fieldName, fieldValue := range attachment.Fields {
		rendered[fieldName] = fieldValue
	}
	if attachment.URL != "" {
		rendered[fieldURL] = attachment.URL
	}
	if attachment.ObjectStore != nil {
		referenceFields := map[string]any{}
		if attachment.ObjectStore.Bucket != "" {
			referenceFields["bucket"] = attachment.ObjectStore.Bucket
		}
		if attachment.ObjectStore.Key != "" {
			referenceFields["key"] = attachment.ObjectStore.Key
		}
		rendered[fieldObjectStore] = referenceFields
	}
	return rendered
}

// MarshalJSON implements json.Marshaler.
func (mail *Mail) MarshalJSON() ([]byte, error) {
	return json.Marshal(mail.Map())
}

// UnmarshalJSON implements json.Unmarshaler.
func (mail *Mail) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMail, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after mail object", ErrInvalidMail)
	}
	decoded, err := NewMail(raw)
	if err != nil {
		return err
	}
	*mail = *decoded
	return nil
}
