package main

import (
	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"
)

type parsed struct {
	Header map[string]any `json:"header"`
	Claims *claims.Claims `json:"claims"`
}

func newParseCmd(c *cli) *cobra.Command {
	var consumerID string
	cmd := &cobra.Command{
		Use:   "parse [token|-]",
		Short: "Decode a token without verifying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			cfg, _ := c.file.Consumer(consumerID)
			tc, err := consumer.NewEngine(consumer.WithLogger(c.logger)).ParseWithoutValidation(cmd.Context(), raw, cfg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), parsed{Header: tc.Header, Claims: tc.Claims})
		},
	}
	cmd.Flags().StringVar(&consumerID, "consumer", "", "consumer id used in error context")
	return cmd
}
