package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
	"github.com/fyrsmithlabs/factcheckd/internal/services"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [csv]",
	Short: "Populate the reference collection from a corpus CSV",
	Long: `Embed a corpus CSV (file_name,meta_data,content,last_updated) into the
configured vector store. The path defaults to retriever_config.data_path.
A collection that already holds more than retriever_config.min_points
points is left alone unless --force is given.

Examples:
  # Populate from the configured corpus
  fcctl ingest

  # Rebuild from another file
  fcctl ingest --force data/pubmed_sample.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "recreate the collection even if it is populated")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	path := cfg.RetrieverConfig.DataPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no corpus given and retriever_config.data_path is not set")
	}
	if ingestForce {
		cfg.RetrieverConfig.MinPoints = math.MaxInt
	}

	rows, err := retriever.LoadCSVFile(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reg, err := services.Build(ctx, cfg, logging.NewNop())
	if err != nil {
		return err
	}
	defer reg.Close()

	stats, err := reg.Ingester().Generate(ctx, rows)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stats.Skipped {
		fmt.Fprintf(out, "Collection %q is already populated; use --force to rebuild.\n", cfg.RetrieverConfig.CollectionName)
		return nil
	}
	fmt.Fprintf(out, "%s %d rows, %d chunks, %s upserted\n",
		labelStyle.Render("Ingested:"), stats.Rows, stats.Chunks, goodStyle.Render(fmt.Sprint(stats.Upserted)))
	if skipped := stats.Failed + stats.TooLarge + stats.EmptyRows; skipped > 0 {
		fmt.Fprintf(out, "%s %d empty, %d too large, %d failed\n",
			labelStyle.Render("Skipped: "), stats.EmptyRows, stats.TooLarge, stats.Failed)
	}
	return nil
}
