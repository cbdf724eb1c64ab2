package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-jwt/internal/app"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

func newValidateCmd(c *cli) *cobra.Command {
	var consumerID string
	cmd := &cobra.Command{
		Use:   "validate [token|-]",
		Short: "Validate a token as a configured consumer and print its claims",
		Long: `Validate runs the full check sequence (signature, issuer, audience,
iat/exp, nbf, algorithm, amr) and prints the claims as JSON. A rejected
token exits non-zero and prints the rejection code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := app.New(ctx, c.file, app.WithLogger(c.logger))
			if err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

			claims, err := svc.Validate(ctx, consumerID, raw)
			if err != nil {
				return fmt.Errorf("token rejected (%s): %w", sserr.GetCode(err), err)
			}
			return printJSON(cmd.OutOrStdout(), claims)
		},
	}
	cmd.Flags().StringVar(&consumerID, "consumer", "", "consumer id from the configuration file")
	_ = cmd.MarkFlagRequired("consumer")
	return cmd
}

// readToken takes the token from args, or from stdin when it is "-" or
// absent.
func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading token from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
