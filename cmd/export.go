package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/export"
)

var (
	exportOutPath  string
	exportArticles []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an evidence summary workbook for the given articles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		studies := make([]export.Study, 0, len(exportArticles))
		for _, raw := range exportArticles {
			articleID, err := uuid.Parse(raw)
			if err != nil {
				return eris.Wrapf(err, "parse article id %q", raw)
			}

			recs, err := st.ListExtractions(ctx, articleID)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return eris.Errorf("no extractions for article %s", articleID)
			}

			// Latest version wins.
			latest := recs[0]
			for _, r := range recs[1:] {
				if r.Version > latest.Version {
					latest = r
				}
			}

			assessments, err := st.ListGradeAssessments(ctx, latest.ID)
			if err != nil {
				return err
			}

			studies = append(studies, export.Study{
				Title:       articleID.String(),
				Record:      &latest,
				Assessments: assessments,
			})
		}

		out := exportOutPath
		if out == "" {
			name := fmt.Sprintf("evidence-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
			out = filepath.Join(cfg.Export.OutputDir, name)
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return eris.Wrap(err, "create output dir")
			}
		}

		if err := export.WriteWorkbook(out, studies); err != nil {
			return err
		}

		zap.L().Info("workbook written",
			zap.String("path", out),
			zap.Int("studies", len(studies)),
		)
		fmt.Println(out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output .xlsx path (default under export output_dir)")
	exportCmd.Flags().StringArrayVar(&exportArticles, "article", nil, "article UUID to include (repeatable, required)")
	_ = exportCmd.MarkFlagRequired("article")
	rootCmd.AddCommand(exportCmd)
}
