package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/WeDesignz/WebApp-sub000/internal/apiclient"
	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

func newEligibilityCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility",
		Short: "Show free-bundle eligibility and pricing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			snap, err := client.Eligibility(ctx)
			if err != nil {
				return err
			}
			table, err := client.PriceTable(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			free := "used"
			if snap.IsFreeEligible {
				free = fmt.Sprintf("available (%d designs, first_n)", table.FreeTierSize)
			}
			fmt.Fprintf(out, "free bundle:      %s\n", free)
			fmt.Fprintf(out, "allowance left:   %d\n", snap.SubscriptionAllowanceRemaining)
			fmt.Fprintf(out, "first_n price:    %s per design\n", formatAmount(table.FirstNUnitPrice, table.Currency))
			fmt.Fprintf(out, "specific price:   %s per design\n", formatAmount(table.SpecificUnitPrice, table.Currency))
			fmt.Fprintf(out, "bundle sizes:     %s\n", joinInts(table.AllowedSizes))
			return nil
		},
	}
}

func newQuoteCmd(opts *globalOptions) *cobra.Command {
	var (
		strategy     string
		count        int
		useAllowance bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a bundle configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			s, err := mockpdf.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			snap, err := mockpdf.NewEligibilityResolver(client, 0).Refresh(ctx, client.Authenticated())
			if err != nil {
				return err
			}
			q, err := mockpdf.NewCalculator(client).Quote(ctx, s, count, snap, useAllowance)
			if err != nil {
				return err
			}
			printQuote(cmd.OutOrStdout(), q)
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(mockpdf.StrategyFirstN), "Selection strategy (first_n or specific)")
	cmd.Flags().IntVarP(&count, "count", "n", 50, "Number of designs in the bundle")
	cmd.Flags().BoolVar(&useAllowance, "use-allowance", false, "Spend subscription allowance when available")
	return cmd
}

type requestOptions struct {
	strategy     string
	count        int
	query        string
	category     string
	ids          []string
	name         string
	contact      string
	useAllowance bool
	devSecret    string
	interval     time.Duration
	output       string
}

func newRequestCmd(opts *globalOptions) *cobra.Command {
	ro := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Select designs, submit a bundle, pay if needed and wait for the PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			return runRequest(cmd, opts, client, ro)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&ro.strategy, "strategy", "s", string(mockpdf.StrategyFirstN), "Selection strategy (first_n or specific)")
	f.IntVarP(&ro.count, "count", "n", 50, "Number of designs in the bundle")
	f.StringVarP(&ro.query, "q", "q", "", "Catalog search text")
	f.StringVar(&ro.category, "category", "", "Catalog category id")
	f.StringSliceVar(&ro.ids, "ids", nil, "Design ids for the specific strategy; the first matches are picked when omitted")
	f.StringVar(&ro.name, "name", "", "Customer name for paid bundles")
	f.StringVar(&ro.contact, "contact", "", "Customer phone number for paid bundles")
	f.BoolVar(&ro.useAllowance, "use-allowance", false, "Spend subscription allowance when available")
	f.StringVar(&ro.devSecret, "dev-secret", os.Getenv("MOCKPDF_DEV_PAYMENT_SECRET"), "Local gateway secret used to sign dev payments")
	f.DurationVar(&ro.interval, "poll-interval", mockpdf.DefaultPollInterval, "Status poll interval")
	f.StringVarP(&ro.output, "output", "o", "", "Save the finished PDF to this path")
	return cmd
}

func runRequest(cmd *cobra.Command, opts *globalOptions, client *apiclient.Client, ro *requestOptions) error {
	strategy, err := mockpdf.ParseStrategy(ro.strategy)
	if err != nil {
		return err
	}
	ctx, cancel := opts.withTimeout(cmd)
	defer cancel()

	engine, err := mockpdf.NewSelectionEngine(client, mockpdf.SelectionOptions{
		Mode:          strategy,
		RequiredCount: ro.count,
		Filter:        mockpdf.Filter{Query: ro.query, CategoryID: ro.category},
	})
	if err != nil {
		return err
	}
	if err := engine.FillToRequired(ctx); err != nil {
		return err
	}
	if strategy == mockpdf.StrategySpecific {
		if err := pickDesigns(ctx, engine, ro.ids); err != nil {
			return err
		}
	}
	sel, err := engine.Selection()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var checkout mockpdf.Checkout = mockpdf.CheckoutFunc(func(ctx context.Context, order mockpdf.PaymentOrder) (mockpdf.PaymentConfirmation, error) {
		return mockpdf.PaymentConfirmation{}, errors.New("paid bundles need --dev-secret to complete checkout from the command line")
	})
	if ro.devSecret != "" {
		checkout = apiclient.DevCheckout{Secret: ro.devSecret}
	}

	orch := mockpdf.NewOrchestrator(mockpdf.OrchestratorDeps{
		Eligibility: mockpdf.NewEligibilityResolver(client, time.Minute),
		Pricing:     mockpdf.NewCalculator(client),
		Generation:  client,
		Payments:    client,
		Checkout:    checkout,
		Tracker: mockpdf.NewTracker(client, mockpdf.TrackerConfig{
			Interval: ro.interval,
			OnUpdate: func(j mockpdf.Job) { fmt.Fprintf(out, "job %s: %s\n", j.ID, j.Status) },
		}),
		Notifier: mockpdf.NotifierFunc(func(n mockpdf.Notification) {
			// Failures surface as the command error.
			if n.Kind == mockpdf.NotifySubmitted || n.Kind == mockpdf.NotifyCompleted {
				fmt.Fprintln(cmd.ErrOrStderr(), n.Message)
			}
		}),
	})

	result, err := orch.Submit(ctx, mockpdf.SubmitInput{
		Authenticated:            client.Authenticated(),
		Selection:                sel,
		UseSubscriptionAllowance: ro.useAllowance,
		CustomerName:             ro.name,
		CustomerContact:          ro.contact,
	})
	if result.JobID != "" {
		fmt.Fprintf(out, "job id:  %s\n", result.JobID)
	}
	if err != nil {
		return err
	}
	if result.IsFree {
		fmt.Fprintln(out, "price:   free")
	} else {
		fmt.Fprintf(out, "paid:    %s (payment %s)\n", formatAmount(result.Amount, result.Currency), result.PaymentID)
	}
	if ro.output != "" {
		return saveDownload(ctx, client, result.JobID, ro.output, out)
	}
	return nil
}

// pickDesigns selects ids, or the first RequiredCount designs of the pool when ids is empty.
func pickDesigns(ctx context.Context, engine *mockpdf.SelectionEngine, ids []string) error {
	if len(ids) == 0 {
		for _, d := range engine.Pool() {
			if engine.ChosenCount() == engine.RequiredCount() {
				break
			}
			if _, err := engine.Toggle(d.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		for {
			_, err := engine.Toggle(id)
			if !errors.Is(err, mockpdf.ErrUnknownDesign) || !engine.HasMore() {
				if err != nil {
					return fmt.Errorf("select %s: %w", id, err)
				}
				break
			}
			if err := engine.LoadMore(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a bundle request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			job, err := client.JobStatus(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job id:  %s\nstatus:  %s\n", job.ID, job.Status)
			if job.Error != "" {
				fmt.Fprintf(out, "error:   %s\n", job.Error)
			}
			return nil
		},
	}
}

func newDownloadsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "downloads",
		Short: "List bundle requests and their PDFs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			items, err := client.ListDownloads(ctx)
			if err != nil {
				return err
			}
			printDownloads(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Save a finished PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()
			if output == "" {
				output = "mock-pdf-" + args[0] + ".pdf"
			}
			return saveDownload(ctx, client, args[0], output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (default mock-pdf-<job-id>.pdf)")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream job and downloads events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = client.WatchEvents(cmd.Context(), nil, func(ev events.Event) {
				switch ev.Type {
				case events.TypeJobUpdated:
					fmt.Fprintf(out, "%s job %s: %s\n", ev.At.Format(time.TimeOnly), ev.JobID, ev.Status)
				default:
					fmt.Fprintf(out, "%s %s\n", ev.At.Format(time.TimeOnly), ev.Type)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func saveDownload(ctx context.Context, client *apiclient.Client, jobID, path string, out io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := client.Download(ctx, jobID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	fmt.Fprintf(out, "saved:   %s (%d bytes)\n", path, n)
	return nil
}

func printQuote(w io.Writer, q mockpdf.Quote) {
	fmt.Fprintf(w, "strategy: %s\ncount:    %d\n", q.Strategy, q.Count)
	switch {
	case q.IsFree && q.UsesAllowance:
		fmt.Fprintln(w, "price:    free (subscription allowance)")
	case q.IsFree:
		fmt.Fprintln(w, "price:    free")
	default:
		fmt.Fprintf(w, "price:    %s (%s x %d)\n", formatAmount(q.Amount, q.Currency), formatAmount(q.UnitPrice, q.Currency), q.Count)
	}
}

func printDownloads(w io.Writer, items []apiclient.DownloadItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no requests yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTATUS\tSTRATEGY\tCOUNT\tPRICE\tCREATED")
	for _, it := range items {
		price := "free"
		if !it.IsFree {
			price = formatAmount(it.Amount, it.Currency)
			if !it.Paid {
				price += " (unpaid)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", it.ID, it.Status, it.Strategy, it.Count, price, it.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

// formatAmount renders minor units, e.g. 50000 INR as "INR 500.00".
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	s := fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	if currency == "" {
		return s
	}
	return currency + " " + s
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func describe(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return fmt.Sprintf("%s (retry in %s)", apiErr.Message, apiErr.RetryAfter)
		}
		return apiErr.Message
	}
	// Errors the workflow does not know keep their own text.
	if msg := mockpdf.Describe(err); msg != genericFailure {
		return msg
	}
	return err.Error()
}

var genericFailure = mockpdf.Describe(errors.New("unclassified"))
