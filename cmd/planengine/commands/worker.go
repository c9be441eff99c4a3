package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clearbasin/planengine/internal/pdf"
	"github.com/clearbasin/planengine/internal/pipeline"
	"github.com/clearbasin/planengine/internal/queue"
	"github.com/clearbasin/planengine/internal/reconcile"
	"github.com/clearbasin/planengine/internal/storage"
	"github.com/clearbasin/planengine/internal/tables"
	"github.com/clearbasin/planengine/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the extraction worker loop",
	Long:  "Poll the job queue and process document extraction jobs until interrupted.",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	client := newModelClient(app)
	oracle := newOracle(client, app.logger)
	entities := storage.NewEntityRepository(app.db)

	processor := pipeline.NewProcessor(app.cfg.Extraction, app.cfg.Storage.Dir, pipeline.Deps{
		Uploads:   storage.NewUploadRepository(app.db),
		Pages:     storage.NewPageRepository(app.db),
		Artifacts: storage.NewArtifactRepository(app.db),
		Splitter:  pdf.NewSplitter(),
		Fragments: pdf.Fragments,
		Images:    pdf.NewImageExtractor(),
		Visual:    tables.NewVisualExtractor(app.cfg.Extraction.TableExtractorPath),
		Extractor: client,
		Reconcile: reconcile.NewEngine(entities, oracle, app.logger),
	}, app.logger)

	loop := worker.NewLoop(queue.NewFileStore(app.cfg.Storage.Dir), app.cfg.Queue.PollInterval, app.logger)
	loop.Register(queue.KindExtractPDF, processor)

	app.logger.Info().Msg("worker started")
	return loop.Run(ctx)
}
