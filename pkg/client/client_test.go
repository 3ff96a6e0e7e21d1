package client

import (
	"strings"
	"testing"
	"time"
)

func TestNewSettings(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name           string
		address        string
		token          string
		connectionSec  int
		operationSec   int
		errorSubstring string
	}{
		{name: "valid", address: " localhost:50051 ", token: "token", connectionSec: 3, operationSec: 7},
		{name: "missing address", address: " ", token: "token", connectionSec: 3, operationSec: 7, errorSubstring: "server address"},
		{name: "missing token", address: "localhost:50051", connectionSec: 3, operationSec: 7, errorSubstring: "auth token"},
		{name: "zero connection timeout", address: "localhost:50051", token: "token", operationSec: 7, errorSubstring: "connection timeout"},
		{name: "negative operation timeout", address: "localhost:50051", token: "token", connectionSec: 3, operationSec: -1, errorSubstring: "operation timeout"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			settings, err := NewSettings(testCase.address, testCase.token, testCase.connectionSec, testCase.operationSec)
			if testCase.errorSubstring != "" {
				if err == nil || !strings.Contains(err.Error(), testCase.errorSubstring) {
					t.Fatalf("expected error containing %q, got %v", testCase.errorSubstring, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if settings.ServerAddress() != "localhost:50051" {
				t.Fatalf("expected trimmed address, got %q", settings.ServerAddress())
			}
			if settings.OperationTimeout() != 7*time.Second {
				t.Fatalf("unexpected operation timeout %v", settings.OperationTimeout())
			}
		})
	}
}
