package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evidia/srex/internal/extract"
)

var (
	importDir     string
	importUserID  string
	importWorkers int
)

// importFile is the on-disk envelope for one extraction payload.
type importFile struct {
	ArticleID uuid.UUID      `json:"article_id"`
	Model     string         `json:"model,omitempty"`
	Payload   map[string]any `json:"payload"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load extraction payload JSON files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		ctx := cmd.Context()

		var userID uuid.UUID
		if importUserID != "" {
			id, err := uuid.Parse(importUserID)
			if err != nil {
				return eris.Wrap(err, "parse user id")
			}
			userID = id
		}

		paths, err := filepath.Glob(filepath.Join(importDir, "*.json"))
		if err != nil {
			return eris.Wrap(err, "list import dir")
		}
		if len(paths) == 0 {
			return eris.Errorf("no .json files in %s", importDir)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := extract.NewIngestService(st)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importWorkers)

		for _, path := range paths {
			g.Go(func() error {
				raw, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}
				var f importFile
				if err := json.Unmarshal(raw, &f); err != nil {
					return eris.Wrapf(err, "decode %s", path)
				}

				rec, err := svc.Ingest(gctx, extract.IngestRequest{
					ArticleID: f.ArticleID,
					UserID:    userID,
					Payload:   f.Payload,
					Model:     f.Model,
				})
				if err != nil {
					return eris.Wrapf(err, "ingest %s", path)
				}

				zap.L().Info("imported extraction",
					zap.String("file", filepath.Base(path)),
					zap.String("extraction_id", rec.ID.String()),
					zap.Int("version", rec.Version),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("import complete", zap.Int("files", len(paths)))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory of payload JSON files (required)")
	importCmd.Flags().StringVar(&importUserID, "user", "", "importing user UUID")
	importCmd.Flags().IntVar(&importWorkers, "workers", 4, "concurrent imports")
	_ = importCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(importCmd)
}
