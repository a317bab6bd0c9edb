package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"finreport_srv/internal/app"
	"finreport_srv/internal/models"
	"finreport_srv/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startStopTimeout = 15 * time.Second

type generateOptions struct {
	client    string
	kind      string
	year      int
	requestID string
	asJSON    bool
}

type listOptions struct {
	client string
	limit  int
	asJSON bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reportgen",
		Short:         "Generate and inspect financial report documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenerateCmd(), newListCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.ReportService) error {
				return runGenerate(ctx, cmd.OutOrStdout(), svc, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.client, "client", "c", "", "Client name")
	cmd.Flags().StringVarP(&opts.kind, "type", "t", "", "Report type, e.g. \"P&L\"")
	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "Reporting year (default: current year)")
	cmd.Flags().StringVar(&opts.requestID, "request-id", "", "Correlation id stored with the report")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently generated reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.ReportService) error {
				return runList(ctx, cmd.OutOrStdout(), svc, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.client, "client", "c", "", "Only reports for this client")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of reports")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	return cmd
}

// withService поднимает граф зависимостей без HTTP сервера на время команды
func withService(ctx context.Context, fn func(context.Context, service.ReportService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var svc service.ReportService
	application := fx.New(app.Module, fx.NopLogger, fx.Populate(&svc))

	startCtx, cancel := context.WithTimeout(ctx, startStopTimeout)
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	runErr := fn(ctx, svc)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("stop: %w", err)
	}
	return runErr
}

func runGenerate(ctx context.Context, out io.Writer, svc service.ReportService, opts *generateOptions) error {
	result, err := svc.GenerateReport(ctx, models.ReportRequest{
		ClientName: opts.client,
		ReportType: opts.kind,
		ReportYear: opts.year,
		RequestID:  opts.requestID,
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		return writeJSON(out, models.GenerateResponse{
			Success:  true,
			Message:  "Report generated successfully",
			FilePath: result.FilePath,
			FileName: result.Report.FileName,
		})
	}

	_, err = fmt.Fprintln(out, result.FilePath)
	return err
}

func runList(ctx context.Context, out io.Writer, svc service.ReportService, opts *listOptions) error {
	list, err := svc.ListReports(ctx, service.ListReportParams{
		ClientName: opts.client,
		Limit:      opts.limit,
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		return writeJSON(out, list)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tCLIENT\tTYPE\tYEAR\tFILE")
	for _, r := range list.Reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Format(time.DateTime), r.ClientName, r.ReportType, r.ReportYear, r.FileName)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
