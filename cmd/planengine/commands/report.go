package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clearbasin/planengine/internal/report"
	"github.com/clearbasin/planengine/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report <upload-id>",
	Short: "Print the consolidated plan report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	uploadID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("upload id: %w", err)
	}

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	svc := report.NewService(storage.NewEntityRepository(app.db), app.logger)
	rep, err := svc.Build(ctx, uploadID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
