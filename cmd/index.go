package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thapargpt/thapargpt/internal/app"
	"github.com/thapargpt/thapargpt/internal/knowledge"
)

// indexConcurrency bounds parallel embedding calls during indexing.
const indexConcurrency = 4

var flagIndexDir string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the institute corpus into the knowledge base",
	Long: `Index reads every .txt file in the corpus directory, embeds its
content, and upserts it into the knowledge base. Re-running the command
refreshes documents in place.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndex(cmd.Context())
	},
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexDir, "dir", "", "corpus directory (defaults to the configured one)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := flagIndexDir
	if dir == "" {
		dir = cfg.CorpusDir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read corpus directory: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		indexed++

		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			doc := knowledge.Document{
				ID:      strings.TrimSuffix(name, filepath.Ext(name)),
				Content: string(content),
				Metadata: map[string]string{
					"filename": name,
					"source":   "corpus",
				},
			}
			if err := a.Knowledge.Add(gctx, doc); err != nil {
				return fmt.Errorf("index %s: %w", name, err)
			}
			logger.Info("indexed document", "file", name, "chars", len(content))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d files; knowledge base now holds %d documents.\n", indexed, count)
	return nil
}
