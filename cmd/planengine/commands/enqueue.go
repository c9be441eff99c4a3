package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clearbasin/planengine/internal/queue"
	"github.com/clearbasin/planengine/internal/storage"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <pdf-path>",
	Short: "Register a document and queue it for extraction",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve document path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("document not readable: %w", err)
	}

	name := filepath.Base(path)
	upload := &storage.Upload{
		Slug:         slugify(name),
		Path:         path,
		OriginalName: name,
	}
	if err := storage.NewUploadRepository(app.db).Register(ctx, upload); err != nil {
		return err
	}

	job, err := queue.NewFileStore(app.cfg.Storage.Dir).Enqueue(ctx, queue.KindExtractPDF,
		map[string]any{"uploadId": upload.ID.String()})
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	fmt.Printf("upload %s queued as job %s\n", upload.ID, job.ID)
	return nil
}

// slugify lowercases the file name and keeps alphanumerics, with runs of
// anything else collapsed to single dashes.
func slugify(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
