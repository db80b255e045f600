package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/extract"
	"github.com/evidia/srex/internal/template"
	"github.com/evidia/srex/pkg/anthropic"
)

var (
	extractPDFPath      string
	extractArticleID    string
	extractUserID       string
	extractTemplateName string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract study data from an article PDF",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		ctx := cmd.Context()

		articleID := uuid.New()
		if extractArticleID != "" {
			id, err := uuid.Parse(extractArticleID)
			if err != nil {
				return eris.Wrap(err, "parse article id")
			}
			articleID = id
		}

		var userID uuid.UUID
		if extractUserID != "" {
			id, err := uuid.Parse(extractUserID)
			if err != nil {
				return eris.Wrap(err, "parse user id")
			}
			userID = id
		}

		req := extract.RunRequest{
			ArticleID: articleID,
			UserID:    userID,
			PDFPath:   extractPDFPath,
		}

		if extractTemplateName != "" {
			path := extractTemplateName
			if !filepath.IsAbs(path) && cfg.Extract.TemplateDir != "" {
				path = filepath.Join(cfg.Extract.TemplateDir, path)
			}
			tmpl, err := template.Load(path)
			if err != nil {
				return err
			}
			req.TemplateID = &tmpl.ID
			req.TemplateSchema = tmpl.Schema()
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := anthropic.NewClient(cfg.Anthropic.Key)
		producer := anthropic.NewProducer(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		svc := extract.NewService(st, producer)

		rec, err := svc.Run(ctx, req)
		if err != nil {
			return err
		}

		zap.L().Info("extraction complete",
			zap.String("extraction_id", rec.ID.String()),
			zap.String("article_id", rec.ArticleID.String()),
			zap.Int("version", rec.Version),
		)
		fmt.Printf("extraction %s (article %s, version %d): %d/%d fields extracted, %d warnings\n",
			rec.ID, rec.ArticleID, rec.Version,
			rec.CompletenessSummary.Extracted, rec.CompletenessSummary.TotalFields,
			len(rec.ValidationWarnings))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractPDFPath, "pdf", "", "path to article PDF (required)")
	extractCmd.Flags().StringVar(&extractArticleID, "article", "", "article UUID (default: new)")
	extractCmd.Flags().StringVar(&extractUserID, "user", "", "extracting user UUID")
	extractCmd.Flags().StringVar(&extractTemplateName, "template", "", "extraction template YAML (name under template_dir or absolute path)")
	_ = extractCmd.MarkFlagRequired("pdf")
	rootCmd.AddCommand(extractCmd)
}
