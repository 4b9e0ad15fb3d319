package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atlas-sanctum/vrc-issuer/internal/app"
	"github.com/atlas-sanctum/vrc-issuer/internal/config"
	"github.com/atlas-sanctum/vrc-issuer/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "atlasctl: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries persistent flag values and the state built from them.
type rootOptions struct {
	baseURL  string
	apiKey   string
	timeout  time.Duration
	logLevel string

	cfg *config.Config
	log logger.Logger
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "atlasctl",
		Short:         "Issue verifiable reputation credentials through the Atlas API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", "", "Atlas API base URL (overrides ATLAS_BASE_URL)")
	flags.StringVar(&opts.apiKey, "api-key", "", "bearer API key (overrides ATLAS_API_KEY)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout, e.g. 10s (overrides ATLAS_TIMEOUT_SECONDS)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newIssueCmd(opts), newBatchCmd(opts))
	return rootCmd
}

// load reads config from the environment and applies flag overrides. Logs
// always go to stderr so stdout carries only command output.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.AtlasBaseURL = strings.TrimSpace(o.baseURL)
		if err := config.ValidateBaseURL(cfg.AtlasBaseURL); err != nil {
			return err
		}
	}
	if flags.Changed("api-key") {
		cfg.AtlasAPIKey = o.apiKey
	}
	if flags.Changed("timeout") {
		if o.timeout < 0 {
			return fmt.Errorf("--timeout must not be negative")
		}
		cfg.AtlasTimeout = o.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	cfg.LogOutput = "stderr"

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.cfg = cfg
	o.log = log
	return nil
}

func newIssueCmd(opts *rootOptions) *cobra.Command {
	var (
		file       string
		showStatus bool
	)
	cmd := &cobra.Command{
		Use:   "issue [payload|-]",
		Short: "POST one credential request and print the raw response body",
		Long: "Sends the JSON payload to {base-url}/v1/vrc/issue and writes the response body\n" +
			"to stdout whatever the HTTP status. The payload comes from the argument,\n" +
			"--file, or stdin when the argument is '-' or omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			client, err := app.NewClient(opts.cfg, opts.log)
			if err != nil {
				return err
			}
			resp, err := client.IssueCredentialResponse(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if showStatus {
				fmt.Fprintf(cmd.ErrOrStderr(), "HTTP %d\n", resp.StatusCode)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the payload from this file")
	cmd.Flags().BoolVar(&showStatus, "show-status", false, "print the HTTP status to stderr")
	return cmd
}

// readPayload picks the payload source. The payload is passed on untouched.
func readPayload(stdin io.Reader, args []string, file string) (string, error) {
	if file != "" {
		if len(args) > 0 {
			return "", errors.New("pass either a payload argument or --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read payload file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read payload from stdin: %w", err)
	}
	return string(data), nil
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var requestsFile string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one issuance pass over the requests file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *opts.cfg
			if requestsFile != "" {
				cfg.RequestsFile = requestsFile
			}
			// The metrics endpoint belongs to the daemon.
			cfg.MetricsAddr = ""

			issuer, err := app.NewIssuer(cmd.Context(), &cfg, opts.log)
			if err != nil {
				return err
			}
			defer issuer.Close()

			sum, runErr := issuer.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "issued=%d rejected=%d failed=%d skipped=%d\n",
				sum.Issued, sum.Rejected, sum.Failed, sum.Skipped)
			return runErr
		},
	}
	cmd.Flags().StringVar(&requestsFile, "requests", "", "requests file (overrides REQUESTS_FILE)")
	return cmd
}
