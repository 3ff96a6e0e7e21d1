package attachments

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tyemirov/signedattach/pkg/model"
	"github.com/tyemirov/signedattach/pkg/signer"
)

func mockSigner(t *testing.T) signer.Signer {
	t.Helper()
	return signer.Func(func(_ context.Context, operation signer.Operation, params signer.Params) (string, error) {
		if operation != signer.OperationGetObject {
			t.Errorf("unexpected operation %q", operation)
		}
		if params.Bucket == "" {
			t.Errorf("signer called without a bucket")
		}
		return fmt.Sprintf("mock://%s/%s", params.Bucket, params.Key), nil
	})
}

func mustMail(t *testing.T, raw map[string]any) *model.Mail {
	t.Helper()
	mail, err := model.NewMail(raw)
	if err != nil {
		t.Fatalf("build mail: %v", err)
	}
	return mail
}

func TestCompileRewritesReferences(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		raw           map[string]any
		defaultBucket string
		expected      map[string]any
	}{
		{
			name:     "no attachments field",
			raw:      map[string]any{"test": "something"},
			expected: map[string]any{"test": "something"},
		},
		{
			name:     "empty attachments",
			raw:      map[string]any{"attachments": []any{}},
			expected: map[string]any{"attachments": []any{}},
		},
		{
			name:     "attachment without reference",
			raw:      map[string]any{"attachments": []any{map[string]any{"filename": "a.txt", "content": "hi"}}},
			expected: map[string]any{"attachments": []any{map[string]any{"filename": "a.txt", "content": "hi"}}},
		},
		{
			name:     "empty url without reference kept",
			raw:      map[string]any{"attachments": []any{map[string]any{"filename": "a.txt", "url": ""}}},
			expected: map[string]any{"attachments": []any{map[string]any{"filename": "a.txt", "url": ""}}},
		},
		{
			name:     "reference replaced by url",
			raw:      map[string]any{"attachments": []any{map[string]any{"s3": map[string]any{"Bucket": "example", "Key": "test"}}}},
			expected: map[string]any{"attachments": []any{map[string]any{"url": "mock://example/test"}}},
		},
		{
			name:          "default bucket used",
			raw:           map[string]any{"attachments": []any{map[string]any{"s3": map[string]any{"Key": "test"}}}},
			defaultBucket: "default_example",
			expected:      map[string]any{"attachments": []any{map[string]any{"url": "mock://default_example/test"}}},
		},
		{
			name:          "attachment bucket wins",
			raw:           map[string]any{"attachments": []any{map[string]any{"s3": map[string]any{"Bucket": "example", "Key": "test"}}}},
			defaultBucket: "default_example",
			expected:      map[string]any{"attachments": []any{map[string]any{"url": "mock://example/test"}}},
		},
		{
			name: "other fields preserved",
			raw: map[string]any{
				"subject":     "Report",
				"attachments": []any{map[string]any{"filename": "r.pdf", "s3": map[string]any{"bucket": "reports", "key": "2024/r.pdf"}}},
			},
			expected: map[string]any{
				"subject":     "Report",
				"attachments": []any{map[string]any{"filename": "r.pdf", "url": "mock://reports/2024/r.pdf"}},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			mail := mustMail(t, testCase.raw)
			compiled, err := Compile(context.Background(), mail, mockSigner(t), Options{DefaultBucket: testCase.defaultBucket})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if compiled != mail {
				t.Fatalf("expected the same mail to be returned")
			}
			if rendered := compiled.Map(); !reflect.DeepEqual(rendered, testCase.expected) {
				t.Fatalf("unexpected mail:\n got %#v\nwant %#v", rendered, testCase.expected)
			}
		})
	}
}

func TestCompileRequiresBucket(t *testing.T) {
	t.Parallel()

	mail := mustMail(t, map[string]any{"attachments": []any{map[string]any{"s3": map[string]any{"Key": "test"}}}})
	original := mail.Attachments

	_, err := Compile(context.Background(), mail, mockSigner(t), Options{})
	if !errors.Is(err, signer.ErrMissingBucket) {
		t.Fatalf("expected ErrMissingBucket, got %v", err)
	}
	if !strings.Contains(err.Error(), "Bucket") {
		t.Fatalf("expected error to mention Bucket, got %q", err.Error())
	}
	if !reflect.DeepEqual(mail.Attachments, original) {
		t.Fatalf("attachments must be left untouched on failure")
	}
}

func TestCompilePreservesOrderUnderReversedLatency(t *testing.T) {
	t.Parallel()

	const attachmentCount = 5
	rawAttachments := make([]any, 0, attachmentCount)
	for index := 0; index < attachmentCount; index++ {
		rawAttachments = append(rawAttachments, map[string]any{
			"s3": map[string]any{"Bucket": "b", "Key": strconv.Itoa(index)},
		})
	}
	mail := mustMail(t, map[string]any{"attachments": rawAttachments})

	var completionOrder []string
	completions := make(chan string, attachmentCount)
	slowFirst := signer.Func(func(ctx context.Context, _ signer.Operation, params signer.Params) (string, error) {
		index, convErr := strconv.Atoi(params.Key)
		if convErr != nil {
			return "", convErr
		}
		select {
		case <-time.After(time.Duration(attachmentCount-index) * 20 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		completions <- params.Key
		return "signed-" + params.Key, nil
	})

	if _, err := Compile(context.Background(), mail, slowFirst, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(completions)
	for key := range completions {
		completionOrder = append(completionOrder, key)
	}
	if completionOrder[0] != strconv.Itoa(attachmentCount-1) {
		t.Fatalf("expected the last attachment to finish first, got %v", completionOrder)
	}

	for index, attachment := range mail.Attachments {
		if expected := fmt.Sprintf("signed-%d", index); attachment.URL != expected {
			t.Fatalf("attachment %d: got %q want %q", index, attachment.URL, expected)
		}
	}
}

func TestCompileFailsFastAndCancelsPendingSignatures(t *testing.T) {
	t.Parallel()

	signingErr := errors.New("access denied")
	var cancelled atomic.Int32
	failing := signer.Func(func(ctx context.Context, _ signer.Operation, params signer.Params) (string, error) {
		if params.Key == "bad" {
			return "", signingErr
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	})

	mail := mustMail(t, map[string]any{"attachments": []any{
		map[string]any{"s3": map[string]any{"Bucket": "b", "Key": "slow"}},
		map[string]any{"s3": map[string]any{"Bucket": "b", "Key": "bad"}},
		map[string]any{"filename": "plain.txt"},
	}})

	started := time.Now()
	compiled, err := Compile(context.Background(), mail, failing, Options{})
	if !errors.Is(err, signingErr) {
		t.Fatalf("expected signing error, got %v", err)
	}
	if compiled != nil {
		t.Fatalf("expected no mail on failure")
	}
	if time.Since(started) > 2*time.Second {
		t.Fatalf("compile did not fail fast")
	}
	if cancelled.Load() != 1 {
		t.Fatalf("expected the pending signature to be cancelled")
	}
	if mail.Attachments[0].ObjectStore == nil {
		t.Fatalf("attachments must be left untouched on failure")
	}
}

func TestCompileNotifiesObserversInOrder(t *testing.T) {
	t.Parallel()

	mail := mustMail(t, map[string]any{"attachments": []any{
		map[string]any{"s3": map[string]any{"Bucket": "b", "Key": "first"}},
		map[string]any{"filename": "inline.txt"},
		map[string]any{"s3": map[string]any{"Key": "third"}},
	}})

	var observed []SignedAttachment
	_, err := Compile(context.Background(), mail, mockSigner(t), Options{DefaultBucket: "fallback"}, func(signed SignedAttachment) {
		observed = append(observed, signed)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []SignedAttachment{
		{Position: 0, Params: signer.Params{Bucket: "b", Key: "first"}},
		{Position: 2, Params: signer.Params{Bucket: "fallback", Key: "third"}},
	}
	if !reflect.DeepEqual(observed, expected) {
		t.Fatalf("unexpected observations %#v", observed)
	}
}

func TestCompileNilMail(t *testing.T) {
	t.Parallel()

	compiled, err := Compile(context.Background(), nil, mockSigner(t), Options{})
	if err != nil || compiled != nil {
		t.Fatalf("expected nil mail and no error, got %v %v", compiled, err)
	}
}
