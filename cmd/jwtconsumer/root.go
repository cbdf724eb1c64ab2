package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/config"
)

// cli holds the persistent flags and what PersistentPreRunE derives from
// them.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	file   *config.File
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "jwtconsumer",
		Short:         "Validate and inspect JSON Web Tokens",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "consumers.yaml", "consumer configuration file (.yaml, .yml or .json)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (json, text); overrides the config file")

	root.AddCommand(
		newServeCmd(c),
		newValidateCmd(c),
		newParseCmd(c),
		newIssueCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	f, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", c.configPath, err)
	}
	c.file = f

	level, format := f.Log.Level, f.Log.Format
	if c.logLevel != "" {
		level = c.logLevel
	}
	if c.logFormat != "" {
		format = c.logFormat
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return err
	}
	c.logger = logger
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
