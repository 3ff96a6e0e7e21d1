package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tyemirov/signedattach/pkg/attachments"
	"github.com/tyemirov/signedattach/pkg/authtoken"
	"github.com/tyemirov/signedattach/pkg/grpcapi"
	"github.com/tyemirov/signedattach/pkg/model"
)

type MailSigner interface {
	SignMail(context.Context, *model.Mail) (grpcapi.SignResult, error)
	GetSigningRequest(context.Context, string) (model.SigningRequestResponse, error)
}

type TokenGenerator interface {
	Generate(context.Context, authtoken.Size) (string, error)
}

type Dependencies struct {
	Signer           MailSigner
	OperationTimeout time.Duration
	Output           io.Writer
	TokenGenerator   TokenGenerator
}

func NewRootCommand(dependencies Dependencies) *cobra.Command {
	root := &cobra.Command{
		Use:           "signedattach-cli",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildSignCommand(dependencies))
	root.AddCommand(buildRequestCommand(dependencies))
	root.AddCommand(buildGenerateTokenCommand(dependencies))
	return root
}

func buildSignCommand(dependencies Dependencies) *cobra.Command {
	var (
		mailPath         string
		subjectInput     string
		attachmentInputs []string
	)

	command := &cobra.Command{
		Use:   "sign",
		Short: "Replace object-store attachment references in a mail with signed URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			mail, err := readMail(mailPath)
			if err != nil {
				return err
			}
			if subjectInput != "" {
				mail.Fields["subject"] = subjectInput
			}

			loaded, loadErr := attachments.Load(attachmentInputs)
			if loadErr != nil {
				return loadErr
			}
			if len(loaded) > 0 {
				mail.Attachments = append(mail.Attachments, loaded...)
			}
			if mail.Attachments == nil {
				return errors.New("mail has no attachments; pass --mail or --attachment")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), pickTimeout(dependencies.OperationTimeout))
			defer cancel()

			result, signErr := dependencies.Signer.SignMail(ctx, mail)
			if signErr != nil {
				return signErr
			}
			return writeJSON(dependencies.Output, map[string]any{
				"request_id": result.RequestID,
				"mail":       result.Mail,
			})
		},
	}

	command.Flags().StringVar(&mailPath, "mail", "", "Path to a JSON mail document (- for stdin)")
	command.Flags().StringVar(&subjectInput, "subject", "", "Mail subject")
	command.Flags().StringArrayVar(&attachmentInputs, "attachment", nil, "Object reference s3://bucket/key or key, optionally followed by ':: filename'")

	return command
}

func buildRequestCommand(dependencies Dependencies) *cobra.Command {
	var requestID string

	command := &cobra.Command{
		Use:   "request",
		Short: "Show the audit record of a signing request",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), pickTimeout(dependencies.OperationTimeout))
			defer cancel()

			record, err := dependencies.Signer.GetSigningRequest(ctx, strings.TrimSpace(requestID))
			if err != nil {
				return err
			}
			return writeJSON(dependencies.Output, record)
		},
	}

	command.Flags().StringVar(&requestID, "id", "", "Signing request id")
	markRequired(command, "id")

	return command
}

func buildGenerateTokenCommand(dependencies Dependencies) *cobra.Command {
	var byteCount int

	command := &cobra.Command{
		Use:   "generate-token",
		Short: "Generate a GRPC_AUTH_TOKEN value",
		RunE: func(cmd *cobra.Command, args []string) error {
			generator := dependencies.TokenGenerator
			if generator == nil {
				return errors.New("token generator is not configured")
			}

			size := authtoken.DefaultSize()
			if cmd.Flags().Changed("bytes") {
				requested, err := authtoken.NewSize(byteCount)
				if err != nil {
					return fmt.Errorf("invalid token size: %w", err)
				}
				size = requested
			}

			token, err := generator.Generate(cmd.Context(), size)
			if err != nil {
				return err
			}
			output := dependencies.Output
			if output == nil {
				output = io.Discard
			}
			_, writeErr := fmt.Fprintln(output, token)
			return writeErr
		},
	}

	command.Flags().IntVar(&byteCount, "bytes", 0, "Number of random bytes in the token (minimum 32)")

	return command
}

func readMail(mailPath string) (*model.Mail, error) {
	if mailPath == "" {
		return &model.Mail{Fields: map[string]any{}}, nil
	}
	var (
		contents []byte
		err      error
	)
	if mailPath == "-" {
		contents, err = io.ReadAll(os.Stdin)
	} else {
		contents, err = os.ReadFile(mailPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read mail %s: %w", mailPath, err)
	}
	var mail model.Mail
	if err := json.Unmarshal(contents, &mail); err != nil {
		return nil, fmt.Errorf("decode mail %s: %w", mailPath, err)
	}
	if mail.Fields == nil {
		mail.Fields = map[string]any{}
	}
	return &mail, nil
}

func writeJSON(output io.Writer, value any) error {
	if output == nil {
		output = io.Discard
	}
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func pickTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

func markRequired(cmd *cobra.Command, name string) {
	_ = cmd.MarkFlagRequired(name)
}
