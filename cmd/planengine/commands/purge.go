package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clearbasin/planengine/internal/storage"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <upload-id>",
	Short: "Delete a document's reconciled entity records",
	Long:  "Remove all extracted entity records for a document, allowing a clean re-extraction.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
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

	entities := storage.NewEntityRepository(app.db)
	total := 0
	for _, category := range storage.Categories {
		records, err := entities.FindByParent(ctx, category, uploadID)
		if err != nil {
			return fmt.Errorf("load %s records: %w", category, err)
		}
		if len(records) == 0 {
			continue
		}
		ids := make([]uuid.UUID, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		if err := entities.DeleteMany(ctx, ids); err != nil {
			return fmt.Errorf("delete %s records: %w", category, err)
		}
		total += len(ids)
	}

	fmt.Printf("deleted %d entity records for upload %s\n", total, uploadID)
	return nil
}
