package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/tyemirov/signedattach/clients/cli/internal/command"
	"github.com/tyemirov/signedattach/pkg/authtoken"
	"github.com/tyemirov/signedattach/pkg/client"
	"github.com/tyemirov/signedattach/pkg/config"
	"github.com/tyemirov/signedattach/pkg/grpcapi"
	"github.com/tyemirov/signedattach/pkg/logging"
	"github.com/tyemirov/signedattach/pkg/model"
)

// unavailableSigner answers every call with the error that prevented
// building a client.
type unavailableSigner struct {
	err error
}

func (signer unavailableSigner) SignMail(context.Context, *model.Mail) (grpcapi.SignResult, error) {
	return grpcapi.SignResult{}, signer.err
}

func (signer unavailableSigner) GetSigningRequest(context.Context, string) (model.SigningRequestResponse, error) {
	return model.SigningRequestResponse{}, signer.err
}

func main() {
	dependencies := command.Dependencies{
		Output:         os.Stdout,
		TokenGenerator: authtoken.NewCryptoGenerator(),
	}

	signingClient, cfg, setupErr := connect()
	if setupErr != nil {
		dependencies.Signer = unavailableSigner{err: setupErr}
	} else {
		defer signingClient.Close()
		dependencies.Signer = signingClient
		dependencies.OperationTimeout = cfg.OperationTimeout()
	}

	root := command.NewRootCommand(dependencies)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if execErr := root.Execute(); execErr != nil {
		if signingClient != nil {
			signingClient.Close()
		}
		fmt.Fprintln(os.Stderr, execErr)
		os.Exit(1)
	}
}

func connect() (*client.SigningClient, config.Config, error) {
	cfg, err := config.LoadConfig(viper.New())
	if err != nil {
		return nil, config.Config{}, err
	}

	settings, err := client.NewSettings(
		cfg.ServerAddress(),
		cfg.AuthToken(),
		cfg.ConnectionTimeoutSeconds(),
		cfg.OperationTimeoutSeconds(),
	)
	if err != nil {
		return nil, config.Config{}, err
	}

	logger := logging.NewLoggerWithWriter(os.Stderr, cfg.LogLevel(), "text")
	signingClient, err := client.NewSigningClient(logger, settings)
	if err != nil {
		return nil, config.Config{}, err
	}
	return signingClient, cfg, nil
}
