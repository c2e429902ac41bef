package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WeDesignz/WebApp-sub000/internal/apiclient"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

type globalOptions struct {
	apiURL   string
	token    string
	logLevel string
	timeout  time.Duration
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "mockpdf",
		Short: "Request mock-PDF design bundles from the command line",
		Long: `mockpdf drives the mock-PDF workflow against a running API: check
eligibility, price a bundle, submit it, pay for it with the dev checkout and
wait for the PDF.

Examples:
  mockpdf eligibility
  mockpdf quote --strategy first_n --count 50
  mockpdf request --strategy first_n --count 50 --q logo
  mockpdf request --strategy specific --count 50 --name "Asha" --contact 9876543210 --dev-secret local-dev-secret
  mockpdf status <job-id>
  mockpdf download <job-id> -o bundle.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			telemetry.ConfigureWriter(cmd.ErrOrStderr(), "cli", opts.logLevel)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", envOr("MOCKPDF_API_URL", "http://localhost:8080"), "API base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("MOCKPDF_TOKEN"), "Bearer token of the account")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Minute, "Overall deadline for the command")

	root.AddCommand(
		newEligibilityCmd(opts),
		newQuoteCmd(opts),
		newRequestCmd(opts),
		newStatusCmd(opts),
		newDownloadsCmd(opts),
		newDownloadCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

func (o *globalOptions) client() (*apiclient.Client, error) {
	if strings.TrimSpace(o.token) == "" {
		return nil, errors.New("a token is required (--token or MOCKPDF_TOKEN)")
	}
	return apiclient.New(o.apiURL, apiclient.WithToken(o.token))
}

func (o *globalOptions) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
