package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clearbasin/planengine/internal/report"
	"github.com/clearbasin/planengine/internal/storage"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <upload-id>",
	Short: "Export the consolidated plan report as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "plan.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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
	if err := report.ExportXLSX(rep, exportOut); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", exportOut)
	return nil
}
