package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var recognizedEnvironment = []string{
	"SIGNEDATTACH_CONFIG_PATH",
	"DATABASE_PATH",
	"GRPC_LISTEN_ADDR",
	"GRPC_AUTH_TOKEN",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"OPERATION_TIMEOUT_SEC",
	"HTTP_LISTEN_ADDR",
	"HTTP_ALLOWED_ORIGINS",
	"DEFAULT_BUCKET",
	"S3_REGION",
	"S3_ENDPOINT",
	"S3_URL_EXPIRES_SEC",
}

func TestLoadConfigFromYAMLWithEnvExpansion(t *testing.T) {
	t.Helper()
	clearEnvironment(t)

	configPath := writeConfigFile(t, `
server:
  databasePath: ${DATABASE_FILE}
  grpcAuthToken: ${SIGNING_TOKEN}
  logLevel: DEBUG
  logFormat: json
  operationTimeoutSec: 12
http:
  listenAddr: :9090
  allowedOrigins:
    - https://app.local
    - https://alt.local
plugin:
  defaultBucket: reports
  s3:
    region: eu-west-1
    forcePathStyle: true
    expiresSec: 600
`)

	t.Setenv("SIGNEDATTACH_CONFIG_PATH", configPath)
	t.Setenv("DATABASE_FILE", "file.db")
	t.Setenv("SIGNING_TOKEN", "unit-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config error: %v", err)
	}

	if cfg.DatabasePath != "file.db" || cfg.GRPCAuthToken != "unit-token" {
		t.Fatalf("expected expanded values, got %+v", cfg)
	}
	if cfg.LogLevel != "DEBUG" || cfg.LogFormat != "json" || cfg.OperationTimeoutSec != 12 {
		t.Fatalf("unexpected server section %+v", cfg)
	}
	if cfg.GRPCListenAddr != ":50051" {
		t.Fatalf("expected default grpc address, got %q", cfg.GRPCListenAddr)
	}
	if cfg.HTTPListenAddr != ":9090" {
		t.Fatalf("unexpected http address %q", cfg.HTTPListenAddr)
	}
	if !reflect.DeepEqual(cfg.HTTPAllowedOrigins, []string{"https://app.local", "https://alt.local"}) {
		t.Fatalf("unexpected origins %v", cfg.HTTPAllowedOrigins)
	}
	if cfg.Plugin.DefaultBucket != "reports" || cfg.Plugin.S3.Region != "eu-west-1" || !cfg.Plugin.S3.ForcePathStyle || cfg.Plugin.S3.ExpiresSec != 600 {
		t.Fatalf("unexpected plugin section %+v", cfg.Plugin)
	}
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	t.Helper()
	clearEnvironment(t)

	configPath := writeConfigFile(t, `
server:
  grpcAuthToken: file-token
plugin:
  defaultBucket: from-file
`)
	t.Setenv("SIGNEDATTACH_CONFIG_PATH", configPath)
	t.Setenv("GRPC_AUTH_TOKEN", "env-token")
	t.Setenv("DEFAULT_BUCKET", "from-env")
	t.Setenv("HTTP_ALLOWED_ORIGINS", " https://a.test , ,https://b.test ")
	t.Setenv("S3_URL_EXPIRES_SEC", "60")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config error: %v", err)
	}
	if cfg.GRPCAuthToken != "env-token" || cfg.Plugin.DefaultBucket != "from-env" {
		t.Fatalf("expected environment to win, got %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.HTTPAllowedOrigins, []string{"https://a.test", "https://b.test"}) {
		t.Fatalf("unexpected origins %v", cfg.HTTPAllowedOrigins)
	}
	if cfg.Plugin.S3.ExpiresSec != 60 {
		t.Fatalf("unexpected expiry %d", cfg.Plugin.S3.ExpiresSec)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name           string
		environment    map[string]string
		fileContents   string
		errorSubstring []string
	}{
		{
			name:           "MissingToken",
			environment:    map[string]string{},
			errorSubstring: []string{"missing environment variable GRPC_AUTH_TOKEN"},
		},
		{
			name: "InvalidIntegers",
			environment: map[string]string{
				"GRPC_AUTH_TOKEN":       "unit-token",
				"OPERATION_TIMEOUT_SEC": "soon",
				"S3_URL_EXPIRES_SEC":    "later",
			},
			errorSubstring: []string{"invalid integer for OPERATION_TIMEOUT_SEC", "invalid integer for S3_URL_EXPIRES_SEC"},
		},
		{
			name:           "NonStringDefaultBucket",
			environment:    map[string]string{"GRPC_AUTH_TOKEN": "unit-token"},
			fileContents:   "plugin:\n  defaultBucket: [one, two]\n",
			errorSubstring: []string{"defaultBucket"},
		},
		{
			name:           "MissingFile",
			environment:    map[string]string{"SIGNEDATTACH_CONFIG_PATH": filepath.Join(os.TempDir(), "signedattach-missing", "config.yml")},
			errorSubstring: []string{"read config"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Helper()
			clearEnvironment(t)
			for key, value := range testCase.environment {
				t.Setenv(key, value)
			}
			if testCase.fileContents != "" {
				t.Setenv("SIGNEDATTACH_CONFIG_PATH", writeConfigFile(t, testCase.fileContents))
			}

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("expected error")
			}
			for _, fragment := range testCase.errorSubstring {
				if !strings.Contains(err.Error(), fragment) {
					t.Fatalf("expected %q in %v", fragment, err)
				}
			}
		})
	}
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range recognizedEnvironment {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}
