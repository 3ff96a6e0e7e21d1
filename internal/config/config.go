package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/tyemirov/signedattach/pkg/plugin"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "SIGNEDATTACH_CONFIG_PATH"

	defaultDatabasePath        = "signedattach.db"
	defaultGRPCListenAddr      = ":50051"
	defaultHTTPListenAddr      = ":8080"
	defaultLogLevel            = "INFO"
	defaultLogFormat           = "text"
	defaultOperationTimeoutSec = 30
)

// Config is the server runtime configuration.
type Config struct {
	DatabasePath        string
	GRPCListenAddr      string
	GRPCAuthToken       string
	LogLevel            string
	LogFormat           string
	OperationTimeoutSec int

	HTTPListenAddr     string
	HTTPAllowedOrigins []string

	Plugin plugin.Options
}

type fileConfig struct {
	Server serverSection  `yaml:"server"`
	HTTP   httpSection    `yaml:"http"`
	Plugin plugin.Options `yaml:"plugin"`
}

type serverSection struct {
	DatabasePath        string `yaml:"databasePath"`
	GRPCListenAddr      string `yaml:"grpcListenAddr"`
	GRPCAuthToken       string `yaml:"grpcAuthToken"`
	LogLevel            string `yaml:"logLevel"`
	LogFormat           string `yaml:"logFormat"`
	OperationTimeoutSec int    `yaml:"operationTimeoutSec"`
}

type httpSection struct {
	ListenAddr     string   `yaml:"listenAddr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoadConfig builds the configuration from the optional YAML file named by
// SIGNEDATTACH_CONFIG_PATH, then applies environment overrides concurrently.
func LoadConfig() (Config, error) {
	configuration := Config{
		DatabasePath:        defaultDatabasePath,
		GRPCListenAddr:      defaultGRPCListenAddr,
		HTTPListenAddr:      defaultHTTPListenAddr,
		LogLevel:            defaultLogLevel,
		LogFormat:           defaultLogFormat,
		OperationTimeoutSec: defaultOperationTimeoutSec,
	}

	if configPath := strings.TrimSpace(os.Getenv(configPathEnv)); configPath != "" {
		if fileError := applyFile(configPath, &configuration); fileError != nil {
			return Config{}, fileError
		}
	}

	var waitGroup sync.WaitGroup

	taskFunctions := []func() error{
		overrideEnvString("DATABASE_PATH", &configuration.DatabasePath),
		overrideEnvString("GRPC_LISTEN_ADDR", &configuration.GRPCListenAddr),
		overrideEnvString("GRPC_AUTH_TOKEN", &configuration.GRPCAuthToken),
		overrideEnvString("LOG_LEVEL", &configuration.LogLevel),
		overrideEnvString("LOG_FORMAT", &configuration.LogFormat),
		overrideEnvInt("OPERATION_TIMEOUT_SEC", &configuration.OperationTimeoutSec),
		overrideEnvString("HTTP_LISTEN_ADDR", &configuration.HTTPListenAddr),
		overrideEnvString("DEFAULT_BUCKET", &configuration.Plugin.DefaultBucket),
		overrideEnvString("S3_REGION", &configuration.Plugin.S3.Region),
		overrideEnvString("S3_ENDPOINT", &configuration.Plugin.S3.Endpoint),
		overrideEnvInt("S3_URL_EXPIRES_SEC", &configuration.Plugin.S3.ExpiresSec),
		func() error {
			if origins := parseCSV(os.Getenv("HTTP_ALLOWED_ORIGINS")); origins != nil {
				configuration.HTTPAllowedOrigins = origins
			}
			return nil
		},
	}

	errorChannel := make(chan error, len(taskFunctions))
	for _, taskFunction := range taskFunctions {
		waitGroup.Add(1)
		go func(task func() error) {
			defer waitGroup.Done()
			if taskError := task(); taskError != nil {
				errorChannel <- taskError
			}
		}(taskFunction)
	}

	waitGroup.Wait()
	close(errorChannel)

	var errorMessages []string
	for errorValue := range errorChannel {
		errorMessages = append(errorMessages, errorValue.Error())
	}
	errorMessages = append(errorMessages, configuration.validate()...)
	if len(errorMessages) > 0 {
		return Config{}, fmt.Errorf("configuration errors: %s", strings.Join(errorMessages, ", "))
	}

	return configuration, nil
}

func applyFile(configPath string, configuration *Config) error {
	rawContents, readError := os.ReadFile(configPath)
	if readError != nil {
		return fmt.Errorf("read config %s: %w", configPath, readError)
	}
	var parsed fileConfig
	if decodeError := yaml.Unmarshal([]byte(os.ExpandEnv(string(rawContents))), &parsed); decodeError != nil {
		return fmt.Errorf("parse config %s: %w", configPath, decodeError)
	}

	assignString(&configuration.DatabasePath, parsed.Server.DatabasePath)
	assignString(&configuration.GRPCListenAddr, parsed.Server.GRPCListenAddr)
	assignString(&configuration.GRPCAuthToken, parsed.Server.GRPCAuthToken)
	assignString(&configuration.LogLevel, parsed.Server.LogLevel)
	assignString(&configuration.LogFormat, parsed.Server.LogFormat)
	if parsed.Server.OperationTimeoutSec != 0 {
		configuration.OperationTimeoutSec = parsed.Server.OperationTimeoutSec
	}
	assignString(&configuration.HTTPListenAddr, parsed.HTTP.ListenAddr)
	if len(parsed.HTTP.AllowedOrigins) > 0 {
		configuration.HTTPAllowedOrigins = parsed.HTTP.AllowedOrigins
	}
	configuration.Plugin = parsed.Plugin
	return nil
}

func (configuration Config) validate() []string {
	var problems []string
	if configuration.GRPCAuthToken == "" {
		problems = append(problems, "missing environment variable GRPC_AUTH_TOKEN")
	}
	if configuration.OperationTimeoutSec <= 0 {
		problems = append(problems, fmt.Sprintf("invalid integer for OPERATION_TIMEOUT_SEC: %d", configuration.OperationTimeoutSec))
	}
	if configuration.Plugin.S3.ExpiresSec < 0 {
		problems = append(problems, fmt.Sprintf("invalid integer for S3_URL_EXPIRES_SEC: %d", configuration.Plugin.S3.ExpiresSec))
	}
	return problems
}

func assignString(destination *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*destination = trimmed
	}
}

func overrideEnvString(environmentKey string, destination *string) func() error {
	return func() error {
		assignString(destination, os.Getenv(environmentKey))
		return nil
	}
}

func overrideEnvInt(environmentKey string, destination *int) func() error {
	const invalidIntFormat = "invalid integer for %s: %v"
	return func() error {
		environmentValue := strings.TrimSpace(os.Getenv(environmentKey))
		if environmentValue == "" {
			return nil
		}
		parsedInteger, conversionError := strconv.Atoi(environmentValue)
		if conversionError != nil {
			return fmt.Errorf(invalidIntFormat, environmentKey, conversionError)
		}
		*destination = parsedInteger
		return nil
	}
}

func parseCSV(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	rawParts := strings.Split(trimmed, ",")
	var normalized []string
	for _, part := range rawParts {
		candidate := strings.TrimSpace(part)
		if candidate == "" {
			continue
		}
		normalized = append(normalized, candidate)
	}
	return normalized
}
