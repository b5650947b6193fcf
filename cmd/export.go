package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xthestreams/current-rms-watcher/internal/forecast"
	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/store"
)

var (
	exportOut  string
	exportFrom string
	exportTo   string
)

// money formats currency values with thousand separators for the workbook.
var money = message.NewPrinter(language.BritishEnglish)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the forecast to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 0, 90)
		if exportFrom != "" {
			if from, err = time.Parse("2006-01-02", exportFrom); err != nil {
				return eris.Wrap(err, "parse --from")
			}
		}
		if exportTo != "" {
			if to, err = time.Parse("2006-01-02", exportTo); err != nil {
				return eris.Wrap(err, "parse --to")
			}
		}

		enriched, err := loadEnriched(ctx, st, from, to)
		if err != nil {
			return err
		}

		f := xlsx.NewFile()
		if err := writeSummarySheet(f, enriched); err != nil {
			return err
		}
		if err := writeGroupSheet(f, "By Owner", forecast.ByOwner(enriched)); err != nil {
			return err
		}
		if err := writeGroupSheet(f, "By Customer", forecast.ByCustomer(enriched)); err != nil {
			return err
		}
		if err := writeOpportunitySheet(f, enriched); err != nil {
			return err
		}

		if err := f.Save(exportOut); err != nil {
			return eris.Wrapf(err, "save workbook %s", exportOut)
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("opportunities", len(enriched)),
		)
		return nil
	},
}

func loadEnriched(ctx context.Context, st store.Store, from, to time.Time) ([]model.EnrichedOpportunity, error) {
	opps, err := st.ListOpportunities(ctx, store.OpportunityFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	metas, err := st.ListForecastMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return forecast.EnrichAll(opps, metas), nil
}

func headerRow(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		row.AddCell().Value = t
	}
}

func writeSummarySheet(f *xlsx.File, enriched []model.EnrichedOpportunity) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "add summary sheet")
	}
	s := forecast.CalculateSummary(enriched)

	headerRow(sheet, "Metric", "Count", "Revenue", "Profit")
	for _, line := range []struct {
		name    string
		count   int
		revenue float64
		profit  float64
	}{
		{"Pipeline", s.PipelineCount, s.PipelineRevenue, s.PipelineProfit},
		{"Weighted", s.PipelineCount, s.WeightedRevenue, s.WeightedProfit},
		{"Commit", s.CommitCount, s.CommitRevenue, s.CommitProfit},
		{"Upside", s.UpsideCount, s.UpsideRevenue, s.UpsideProfit},
		{"Unreviewed", s.UnreviewedCount, s.UnreviewedRevenue, 0},
		{"Excluded", s.ExcludedCount, s.ExcludedRevenue, 0},
	} {
		row := sheet.AddRow()
		row.AddCell().Value = line.name
		row.AddCell().SetInt(line.count)
		row.AddCell().Value = money.Sprintf("%.2f", line.revenue)
		row.AddCell().Value = money.Sprintf("%.2f", line.profit)
	}
	return nil
}

func writeGroupSheet(f *xlsx.File, name string, groups []forecast.GroupAggregate) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "add sheet %s", name)
	}
	headerRow(sheet, "Name", "Opportunities", "Weighted Revenue", "Weighted Profit", "Avg Probability")
	for _, g := range groups {
		row := sheet.AddRow()
		row.AddCell().Value = g.Name
		row.AddCell().SetInt(g.OpportunityCount)
		row.AddCell().Value = money.Sprintf("%.2f", g.WeightedRevenue)
		row.AddCell().Value = money.Sprintf("%.2f", g.WeightedProfit)
		row.AddCell().SetFloatWithFormat(g.AvgProbability, "0.0")
	}
	return nil
}

func writeOpportunitySheet(f *xlsx.File, enriched []model.EnrichedOpportunity) error {
	sheet, err := f.AddSheet("Opportunities")
	if err != nil {
		return eris.Wrap(err, "add opportunities sheet")
	}
	headerRow(sheet, "ID", "Subject", "Customer", "Owner", "Starts",
		"State", "Probability", "Commit", "Excluded",
		"Effective Revenue", "Weighted Revenue", "Weighted Profit")
	for i := range enriched {
		e := &enriched[i]
		row := sheet.AddRow()
		row.AddCell().SetInt(e.ID)
		row.AddCell().Value = e.Subject
		row.AddCell().Value = e.OrganisationName
		row.AddCell().Value = e.OwnerName
		if e.StartsAt != nil {
			row.AddCell().Value = e.StartsAt.Format("2006-01-02")
		} else {
			row.AddCell()
		}
		row.AddCell().Value = e.StateName

		probability, commit := "", ""
		if e.Forecast != nil {
			probability = money.Sprintf("%d%%", e.Forecast.Probability)
			if e.Forecast.IsCommit {
				commit = "yes"
			}
		}
		row.AddCell().Value = probability
		row.AddCell().Value = commit
		excluded := ""
		if e.Excluded() {
			excluded = "yes"
		}
		row.AddCell().Value = excluded
		row.AddCell().Value = money.Sprintf("%.2f", e.EffectiveRevenue)
		row.AddCell().Value = money.Sprintf("%.2f", e.WeightedRevenue)
		row.AddCell().Value = money.Sprintf("%.2f", e.WeightedProfit)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "forecast.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "window start (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "window end (YYYY-MM-DD)")
	rootCmd.AddCommand(exportCmd)
}
