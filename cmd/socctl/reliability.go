package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/internal/infrastructure/persistence/postgres"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newReliabilityCmd(a *app) *cobra.Command {
	var query usecase.ReportQuery
	var output string

	cmd := &cobra.Command{
		Use:   "reliability",
		Short: "Print the reliability report for a range",
		Example: `  socctl reliability --range lastMonth
  socctl reliability --range custom --start 2024-01-01 --end 2024-01-31 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputTable && output != outputJSON {
				return fmt.Errorf("unsupported output %q, use table or json", output)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			reporter := usecase.NewGetReliabilityReportUseCase(
				postgres.NewPostgresDowntimeRepository(db),
				service.NewDowntimeAggregator(),
				service.NewReliabilityScorer(),
				nil,
				a.log,
			)

			query.MaxCustomDays = a.cfg.Report.MaxCustomRangeDays
			report, err := reporter.Execute(context.Background(), query)
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeReportJSON(cmd.OutOrStdout(), report)
			}
			return writeReportTable(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&query.Range, "range", "r", "thisWeek", "today, thisWeek, lastWeek, last7days, last30days, thisMonth, lastMonth, thisYear or custom")
	cmd.Flags().StringVar(&query.StartDate, "start", "", "custom range start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&query.EndDate, "end", "", "custom range end (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "table or json")
	return cmd
}

func writeReportJSON(w io.Writer, report *dto.ReliabilityReportDTO) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeReportTable prints one row per channel followed by the overall footer.
func writeReportTable(w io.Writer, report *dto.ReliabilityReportDTO) error {
	fmt.Fprintf(w, "Range %s: %s - %s\n", report.Range,
		report.WindowStart.Format("2006-01-02 15:04"), report.WindowEnd.Format("2006-01-02 15:04"))

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Channel", "Impact Min", "Incidents", "Share %", "Reliability %", "Tier"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(report.Channels))
	for _, ch := range report.Channels {
		tier := valueobject.TierFor(ch.ReliabilityPercentage)
		data = append(data, []string{
			ch.Channel,
			strconv.Itoa(ch.Minutes),
			strconv.Itoa(ch.IncidentCount),
			strconv.FormatFloat(ch.Percentage, 'f', 2, 64),
			strconv.FormatFloat(ch.ReliabilityPercentage, 'f', 3, 64),
			colorTier(tier),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	sla := color.New(color.FgGreen).Sprint("met")
	if !report.Summary.MeetsSLA {
		sla = color.New(color.FgRed, color.Bold).Sprint("breached")
	}

	_, err := fmt.Fprintf(w, "Overall %.2f%% (%s), impact %d of %d min, SLA %s %s\n",
		report.ReliabilityPercentage,
		report.Summary.ReliabilityStatus,
		report.TotalReliabilityImpactMinutes,
		report.TotalAvailableMinutes,
		report.Summary.SLA,
		sla,
	)
	return err
}

func colorTier(tier valueobject.SLATier) string {
	switch tier {
	case valueobject.TierExcellent:
		return color.New(color.FgGreen).Sprint(tier)
	case valueobject.TierGood:
		return color.New(color.FgHiGreen).Sprint(tier)
	case valueobject.TierFair:
		return color.New(color.FgYellow, color.Bold).Sprint(tier)
	default:
		return color.New(color.FgRed, color.Bold).Sprint(tier)
	}
}
