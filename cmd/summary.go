package main

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/evidia/srex/internal/completeness"
	"github.com/evidia/srex/internal/review"
)

var summaryExtractionID string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print completeness and review progress for an extraction",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		id, err := uuid.Parse(summaryExtractionID)
		if err != nil {
			return eris.Wrap(err, "parse extraction id")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetExtraction(ctx, id)
		if err != nil {
			return err
		}

		summary := rec.CompletenessSummary
		if summary == nil {
			summary = completeness.Compute(rec)
		}
		progress := review.ComputeProgress(rec)

		fmt.Printf("extraction %s (article %s, version %d, status %s)\n",
			rec.ID, rec.ArticleID, rec.Version, rec.Status)
		fmt.Printf("fields: %d total, %d extracted, %d missing\n",
			summary.TotalFields, summary.Extracted, summary.Missing)
		fmt.Printf("confidence: %d high, %d medium, %d low\n",
			summary.HighConfidence, summary.MediumConfidence, summary.LowConfidence)
		fmt.Printf("review: %d verified, %d needs review, %d pending (%.1f%% verified)\n",
			progress.Verified, progress.NeedsReview, progress.Pending, progress.PercentVerified())

		if len(rec.ValidationWarnings) > 0 {
			fmt.Printf("warnings (%d):\n", len(rec.ValidationWarnings))
			for _, w := range rec.ValidationWarnings {
				fmt.Printf("  [%s] %s: %s\n", w.Severity, w.FieldPath, w.Message)
			}
		}

		sections := make([]string, 0, len(summary.BySection))
		for name := range summary.BySection {
			sections = append(sections, name)
		}
		sort.Strings(sections)
		for _, section := range sections {
			stats := summary.BySection[section]
			fmt.Printf("  %-16s %d/%d extracted\n", section, stats.Extracted, stats.Total)
		}
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryExtractionID, "extraction", "", "extraction UUID (required)")
	_ = summaryCmd.MarkFlagRequired("extraction")
	rootCmd.AddCommand(summaryCmd)
}
