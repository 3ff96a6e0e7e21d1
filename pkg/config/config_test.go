package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

type envEntry struct {
	key   string
	value string
}

func TestLoadConfig(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name              string
		environment       []envEntry
		expectError       bool
		errorSubstring    string
		expectedAddress   string
		expectedToken     string
		expectedOperation time.Duration
	}{
		{
			name: "Defaults",
			environment: []envEntry{
				{key: "SIGNEDATTACH_AUTH_TOKEN", value: "unit-token"},
			},
			expectedAddress:   "localhost:50051",
			expectedToken:     "unit-token",
			expectedOperation: 30 * time.Second,
		},
		{
			name: "Overrides",
			environment: []envEntry{
				{key: "SIGNEDATTACH_SERVER_ADDR", value: "signer:6000"},
				{key: "SIGNEDATTACH_AUTH_TOKEN", value: "unit-token"},
				{key: "OPERATION_TIMEOUT_SEC", value: "7"},
			},
			expectedAddress:   "signer:6000",
			expectedToken:     "unit-token",
			expectedOperation: 7 * time.Second,
		},
		{
			name:           "MissingToken",
			environment:    nil,
			expectError:    true,
			errorSubstring: "missing environment variable SIGNEDATTACH_AUTH_TOKEN",
		},
		{
			name: "InvalidTimeout",
			environment: []envEntry{
				{key: "SIGNEDATTACH_AUTH_TOKEN", value: "unit-token"},
				{key: "CONNECTION_TIMEOUT_SEC", value: "soon"},
			},
			expectError:    true,
			errorSubstring: "invalid integer for CONNECTION_TIMEOUT_SEC",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Helper()
			clearEnvironment(t)
			setEnvironment(t, testCase.environment)

			loadedConfig, loadError := LoadConfig(viper.New())
			if testCase.expectError {
				if loadError == nil || !strings.Contains(loadError.Error(), testCase.errorSubstring) {
					t.Fatalf("expected error containing %q, got %v", testCase.errorSubstring, loadError)
				}
				return
			}
			if loadError != nil {
				t.Fatalf("load config error: %v", loadError)
			}
			if loadedConfig.ServerAddress() != testCase.expectedAddress {
				t.Fatalf("unexpected address %q", loadedConfig.ServerAddress())
			}
			if loadedConfig.AuthToken() != testCase.expectedToken {
				t.Fatalf("unexpected token %q", loadedConfig.AuthToken())
			}
			if loadedConfig.OperationTimeout() != testCase.expectedOperation {
				t.Fatalf("unexpected operation timeout %v", loadedConfig.OperationTimeout())
			}
		})
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	clearEnvironment(t)

	configPath := filepath.Join(t.TempDir(), "client.yaml")
	contents := "signedattach_server_addr: file-host:7000\nsignedattach_auth_token: file-token\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIGNEDATTACH_CLIENT_CONFIG", configPath)
	t.Setenv("OPERATION_TIMEOUT_SEC", "9")

	loadedConfig, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("load config error: %v", err)
	}
	if loadedConfig.ServerAddress() != "file-host:7000" || loadedConfig.AuthToken() != "file-token" {
		t.Fatalf("expected file values, got %+v", loadedConfig)
	}
	if loadedConfig.OperationTimeoutSeconds() != 9 {
		t.Fatalf("expected environment to win, got %d", loadedConfig.OperationTimeoutSeconds())
	}
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SIGNEDATTACH_SERVER_ADDR",
		"SIGNEDATTACH_AUTH_TOKEN",
		"SIGNEDATTACH_CLIENT_CONFIG",
		"CONNECTION_TIMEOUT_SEC",
		"OPERATION_TIMEOUT_SEC",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func setEnvironment(t *testing.T, entries []envEntry) {
	t.Helper()
	for _, entry := range entries {
		t.Setenv(entry.key, entry.value)
	}
}
