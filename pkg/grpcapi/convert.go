package grpcapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tyemirov/signedattach/pkg/model"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldRequestID = "request_id"
	fieldMail      = "mail"
)

// ErrMalformedMessage indicates a Struct that does not carry the expected fields.
var ErrMalformedMessage = errors.New("grpcapi: malformed message")

// SignResult is the decoded answer of SignMail.
type SignResult struct {
	RequestID string
	Mail      *model.Mail
}

// MailToStruct renders mail as a Struct.
func MailToStruct(mail *model.Mail) (*structpb.Struct, error) {
	if mail == nil {
		return nil, fmt.Errorf("%w: nil mail", ErrMalformedMessage)
	}
	rendered, err := numbersToFloats(mail.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidMail, err)
	}
	encoded, err := structpb.NewStruct(rendered.(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidMail, err)
	}
	return encoded, nil
}

// numbersToFloats replaces json.Number values with the float64 a Struct
// number can hold.
func numbersToFloats(value any) (any, error) {
	switch typed := value.(type) {
	case json.Number:
		return typed.Float64()
	case map[string]any:
		converted := make(map[string]any, len(typed))
		for fieldName, fieldValue := range typed {
			convertedValue, err := numbersToFloats(fieldValue)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fieldName, err)
			}
			converted[fieldName] = convertedValue
		}
		return converted, nil
	case []any:
		converted := make([]any, len(typed))
		for index, element := range typed {
			convertedElement, err := numbersToFloats(element)
			if err != nil {
				return nil, err
			}
			converted[index] = convertedElement
		}
		return converted, nil
	default:
		return value, nil
	}
}

// MailFromStruct builds a mail from a Struct.
func MailFromStruct(message *structpb.Struct) (*model.Mail, error) {
	if message == nil {
		return nil, fmt.Errorf("%w: empty mail", model.ErrInvalidMail)
	}
	return model.NewMail(message.AsMap())
}

// SignResultToStruct renders the answer of SignMail.
func SignResultToStruct(result SignResult) (*structpb.Struct, error) {
	mailStruct, err := MailToStruct(result.Mail)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldRequestID: structpb.NewStringValue(result.RequestID),
		fieldMail:      structpb.NewStructValue(mailStruct),
	}}, nil
}

// SignResultFromStruct decodes the answer of SignMail.
func SignResultFromStruct(message *structpb.Struct) (SignResult, error) {
	if message == nil {
		return SignResult{}, fmt.Errorf("%w: empty sign result", ErrMalformedMessage)
	}
	mailValue := message.GetFields()[fieldMail].GetStructValue()
	if mailValue == nil {
		return SignResult{}, fmt.Errorf("%w: sign result without mail", ErrMalformedMessage)
	}
	mail, err := MailFromStruct(mailValue)
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{
		RequestID: message.GetFields()[fieldRequestID].GetStringValue(),
		Mail:      mail,
	}, nil
}

// RequestIDToStruct builds the GetSigningRequest input.
func RequestIDToStruct(requestID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldRequestID: structpb.NewStringValue(requestID),
	}}
}

// RequestIDFromStruct reads the GetSigningRequest input. A missing id yields "".
func RequestIDFromStruct(message *structpb.Struct) string {
	return message.GetFields()[fieldRequestID].GetStringValue()
}

// SigningRequestToStruct renders an audit record using its JSON field names.
func SigningRequestToStruct(response model.SigningRequestResponse) (*structpb.Struct, error) {
	encoded, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	message := &structpb.Struct{}
	if err := message.UnmarshalJSON(encoded); err != nil {
		return nil, err
	}
	return message, nil
}

// SigningRequestFromStruct decodes an audit record.
func SigningRequestFromStruct(message *structpb.Struct) (model.SigningRequestResponse, error) {
	if message == nil {
		return model.SigningRequestResponse{}, fmt.Errorf("%w: empty signing request", ErrMalformedMessage)
	}
	encoded, err := message.MarshalJSON()
	if err != nil {
		return model.SigningRequestResponse{}, err
	}
	var response model.SigningRequestResponse
	if err := json.Unmarshal(encoded, &response); err != nil {
		return model.SigningRequestResponse{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return response, nil
}
