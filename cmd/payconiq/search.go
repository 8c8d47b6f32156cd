package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolfman30/payconiq-go/internal/app/bootstrap"
	"github.com/wolfman30/payconiq-go/internal/export"
	"github.com/wolfman30/payconiq-go/internal/ledger"
	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// errReconcileMismatch makes reconcile exit non-zero when the two sides
// disagree.
var errReconcileMismatch = errors.New("reconcile: ledger and payconiq disagree")

type dateRange struct {
	from string
	to   string
	size int
}

func (r *dateRange) bind(cmd *cobra.Command, defaultSize int) {
	f := cmd.Flags()
	f.StringVar(&r.from, "from", "", "start of range, YYYY-MM-ddTHH:mm:ss.SSSZ")
	f.StringVar(&r.to, "to", "", "end of range, YYYY-MM-ddTHH:mm:ss.SSSZ")
	f.IntVar(&r.size, "size", defaultSize, "page size")
}

func (a *app) searchRange(ctx context.Context, r dateRange) ([]payconiq.Payment, error) {
	return a.client.GetPaymentsListByDateRange(ctx, r.from, r.to, r.size)
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		reference string
		window    dateRange
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "list payments by reference or succeeded payments by date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				payments []payconiq.Payment
				err      error
			)
			if reference != "" {
				payments, err = a.client.GetPaymentsListByReference(cmd.Context(), reference)
			} else {
				payments, err = a.searchRange(cmd.Context(), window)
			}
			if err != nil {
				return err
			}
			a.logger.Info("payments found", "count", len(payments))
			return a.printJSON(payments)
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "merchant reference")
	window.bind(cmd, a.cfg.PayconiqSearchPageSize)
	cmd.MarkFlagsMutuallyExclusive("reference", "from")
	cmd.MarkFlagsMutuallyExclusive("reference", "to")
	return cmd
}

type exportOutput struct {
	Key   string `json:"key,omitempty"`
	File  string `json:"file,omitempty"`
	Count int    `json:"count"`
}

func newExportCmd(a *app) *cobra.Command {
	var (
		window dateRange
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export succeeded payments in a date range as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if out == "" && a.cfg.ExportS3Bucket == "" {
				return fmt.Errorf("export: no destination, set EXPORT_S3_BUCKET or --out")
			}
			payments, err := a.searchRange(ctx, window)
			if err != nil {
				return err
			}

			if out != "" {
				if err := writeLinesTo(out, a.out, payments); err != nil {
					return err
				}
				if out == "-" {
					return nil
				}
				return a.printJSON(exportOutput{File: out, Count: len(payments)})
			}

			exporter, err := bootstrap.BuildExporter(ctx, a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			key, err := exporter.Export(ctx, export.Batch{
				From:       window.from,
				To:         window.to,
				Payments:   payments,
				ExportedAt: a.now(),
			})
			if err != nil {
				return err
			}
			return a.printJSON(exportOutput{Key: key, Count: len(payments)})
		},
	}
	window.bind(cmd, a.cfg.PayconiqSearchPageSize)
	cmd.Flags().StringVar(&out, "out", "", "write to a local file instead of S3 (- for stdout)")
	return cmd
}

func writeLinesTo(path string, stdout io.Writer, payments []payconiq.Payment) error {
	if path == "-" {
		return export.WriteJSONLines(stdout, payments)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := export.WriteJSONLines(f, payments); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newReconcileCmd(a *app) *cobra.Command {
	var reference string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "compare the local ledger with Payconiq for a reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.ledger == nil {
				return fmt.Errorf("reconcile: ledger unavailable, set REDIS_ADDR")
			}
			local, err := a.ledger.ListByReference(ctx, reference)
			if err != nil {
				return err
			}
			remote, err := a.client.GetPaymentsListByReference(ctx, reference)
			if err != nil && !isEmptySearch(err) {
				return err
			}

			report := ledger.Reconcile(local, remote)
			if err := a.printJSON(report); err != nil {
				return err
			}
			if !report.Clean() {
				a.logger.Warn("reconcile found differences",
					"reference", reference,
					"missing_remote", len(report.MissingRemote),
					"unknown_local", len(report.UnknownLocal),
					"drift", len(report.Drift),
				)
				return errReconcileMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "merchant reference")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

// isEmptySearch reports whether a search failed only because nothing
// matched: no transport failure and no error code in the body.
func isEmptySearch(err error) bool {
	var apiErr *payconiq.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Op == payconiq.OpGetPaymentsList && apiErr.Err == nil && apiErr.Code == "" && apiErr.Message == ""
}
