package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	keyServerAddress     = "SIGNEDATTACH_SERVER_ADDR"
	keyAuthToken         = "SIGNEDATTACH_AUTH_TOKEN"
	keyConnectionTimeout = "CONNECTION_TIMEOUT_SEC"
	keyOperationTimeout  = "OPERATION_TIMEOUT_SEC"
	keyLogLevel          = "LOG_LEVEL"
	keyConfigFile        = "SIGNEDATTACH_CLIENT_CONFIG"
)

// Config holds client runtime configuration.
type Config struct {
	serverAddress        string
	authToken            string
	connectionTimeoutSec int
	operationTimeoutSec  int
	logLevel             string
}

// LoadConfig reads client settings from the environment and, when
// SIGNEDATTACH_CLIENT_CONFIG names one, from a config file. Environment values win.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetDefault(keyServerAddress, "localhost:50051")
	v.SetDefault(keyConnectionTimeout, 5)
	v.SetDefault(keyOperationTimeout, 30)
	v.SetDefault(keyLogLevel, "INFO")
	v.AutomaticEnv()

	if configFile := strings.TrimSpace(v.GetString(keyConfigFile)); configFile != "" {
		v.SetConfigFile(configFile)
		if readErr := v.ReadInConfig(); readErr != nil {
			return Config{}, fmt.Errorf("read client config %s: %w", configFile, readErr)
		}
	}

	configuration := Config{
		serverAddress:        strings.TrimSpace(v.GetString(keyServerAddress)),
		authToken:            strings.TrimSpace(v.GetString(keyAuthToken)),
		connectionTimeoutSec: v.GetInt(keyConnectionTimeout),
		operationTimeoutSec:  v.GetInt(keyOperationTimeout),
		logLevel:             strings.TrimSpace(v.GetString(keyLogLevel)),
	}

	var validationErrors []error
	if configuration.authToken == "" {
		validationErrors = append(validationErrors, fmt.Errorf("missing environment variable %s", keyAuthToken))
	}
	if configuration.connectionTimeoutSec <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("invalid integer for %s: must be positive", keyConnectionTimeout))
	}
	if configuration.operationTimeoutSec <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("invalid integer for %s: must be positive", keyOperationTimeout))
	}
	if len(validationErrors) > 0 {
		return Config{}, fmt.Errorf("configuration errors: %w", errors.Join(validationErrors...))
	}
	return configuration, nil
}

func (configuration Config) ServerAddress() string {
	return configuration.serverAddress
}

func (configuration Config) AuthToken() string {
	return configuration.authToken
}

func (configuration Config) ConnectionTimeoutSeconds() int {
	return configuration.connectionTimeoutSec
}

func (configuration Config) OperationTimeoutSeconds() int {
	return configuration.operationTimeoutSec
}

func (configuration Config) OperationTimeout() time.Duration {
	return time.Duration(configuration.operationTimeoutSec) * time.Second
}

func (configuration Config) LogLevel() string {
	return configuration.logLevel
}
