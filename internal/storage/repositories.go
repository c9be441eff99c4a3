package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PageStore is the page-record persistence the pipeline needs.
type PageStore interface {
	UpsertSplit(ctx context.Context, uploadID uuid.UUID, pageNumber int, pdfPath string) (*PageRecord, error)
	UpsertExtracted(ctx context.Context, uploadID uuid.UUID, pageNumber int, html, text string, status PageStatus) (*PageRecord, error)
	SetModelResult(ctx context.Context, id uuid.UUID, structured, raw *string) error
	MarkError(ctx context.Context, uploadID uuid.UUID, pageNumber int) error
	ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*PageRecord, error)
}

// ArtifactStore persists table and image artifacts owned by page records.
type ArtifactStore interface {
	SaveTable(ctx context.Context, a *TableArtifact) error
	SaveImage(ctx context.Context, a *ImageArtifact) error
	ListTablesByPage(ctx context.Context, pageRecordID uuid.UUID) ([]*TableArtifact, error)
	ListImagesByPage(ctx context.Context, pageRecordID uuid.UUID) ([]*ImageArtifact, error)
}

// EntityStore is the persisted-entity collaborator contract: the core only
// requires find-by-parent, save and bulk delete.
type EntityStore interface {
	FindByParent(ctx context.Context, category Category, uploadID uuid.UUID) ([]*EntityRecord, error)
	Save(ctx context.Context, rec *EntityRecord) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
}

// UploadStore resolves source documents by id.
type UploadStore interface {
	ResolveByID(ctx context.Context, id uuid.UUID) (*Upload, error)
}

// PageRepository is the SQL-backed PageStore.
type PageRepository struct {
	db DB
}

// NewPageRepository creates a page repository.
func NewPageRepository(db DB) *PageRepository {
	return &PageRepository{db: db}
}

// UpsertSplit records a freshly split page artifact; text and markup reset
// to null and status to pending.
func (r *PageRepository) UpsertSplit(ctx context.Context, uploadID uuid.UUID, pageNumber int, pdfPath string) (*PageRecord, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO page_records
			(id, upload_id, page_number, page_pdf_path, extracted_text, extracted_html,
			 structured_result, raw_model_output, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, NULL, NULL, NULL, $5, $6, $7)
		ON CONFLICT (upload_id, page_number) DO UPDATE SET
			page_pdf_path = EXCLUDED.page_pdf_path,
			extracted_text = NULL,
			extracted_html = NULL,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), uploadID.String(), pageNumber, pdfPath,
		string(PageStatusPending), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert split page: %w", err)
	}
	return r.getByPage(ctx, uploadID, pageNumber)
}

// UpsertExtracted records the markup and plain text for a page.
func (r *PageRepository) UpsertExtracted(ctx context.Context, uploadID uuid.UUID, pageNumber int, html, text string, status PageStatus) (*PageRecord, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO page_records
			(id, upload_id, page_number, extracted_html, extracted_text,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (upload_id, page_number) DO UPDATE SET
			extracted_html = EXCLUDED.extracted_html,
			extracted_text = EXCLUDED.extracted_text,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), uploadID.String(), pageNumber, html, text,
		string(status), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert extracted page: %w", err)
	}
	return r.getByPage(ctx, uploadID, pageNumber)
}

// SetModelResult stores the structured result and raw model output for a
// page. Either may be nil.
func (r *PageRepository) SetModelResult(ctx context.Context, id uuid.UUID, structured, raw *string) error {
	query := `
		UPDATE page_records
		SET structured_result = $1, raw_model_output = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, structured, raw, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("set model result: %w", err)
	}
	return nil
}

// MarkError flags a page whose parse failed; the pipeline continues with
// the remaining pages.
func (r *PageRepository) MarkError(ctx context.Context, uploadID uuid.UUID, pageNumber int) error {
	query := `
		UPDATE page_records SET status = $1, updated_at = $2
		WHERE upload_id = $3 AND page_number = $4
	`
	_, err := r.db.ExecContext(ctx, query,
		string(PageStatusError), time.Now().UTC(), uploadID.String(), pageNumber)
	if err != nil {
		return fmt.Errorf("mark page error: %w", err)
	}
	return nil
}

// ListByUpload returns all page records for an upload in page order.
func (r *PageRepository) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*PageRecord, error) {
	query := selectPage + ` WHERE upload_id = $1 ORDER BY page_number`
	rows, err := r.db.QueryContext(ctx, query, uploadID.String())
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []*PageRecord
	for rows.Next() {
		rec, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectPage = `
	SELECT id, upload_id, page_number, page_pdf_path, extracted_text,
	       extracted_html, structured_result, raw_model_output, status,
	       created_at, updated_at
	FROM page_records`

func (r *PageRepository) getByPage(ctx context.Context, uploadID uuid.UUID, pageNumber int) (*PageRecord, error) {
	row := r.db.QueryRowContext(ctx,
		selectPage+` WHERE upload_id = $1 AND page_number = $2`,
		uploadID.String(), pageNumber)
	rec, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*PageRecord, error) {
	var (
		rec    PageRecord
		id, up string
		status string
	)
	err := row.Scan(&id, &up, &rec.PageNumber, &rec.PagePDFPath, &rec.ExtractedText,
		&rec.ExtractedHTML, &rec.StructuredResult, &rec.RawModelOutput, &status,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse page id: %w", err)
	}
	if rec.UploadID, err = uuid.Parse(up); err != nil {
		return nil, fmt.Errorf("parse upload id: %w", err)
	}
	rec.Status = PageStatus(status)
	return &rec, nil
}

// ArtifactRepository is the SQL-backed ArtifactStore.
type ArtifactRepository struct {
	db DB
}

// NewArtifactRepository creates an artifact repository.
func NewArtifactRepository(db DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// SaveTable persists one table artifact.
func (r *ArtifactRepository) SaveTable(ctx context.Context, a *TableArtifact) error {
	return r.save(ctx, "table_artifacts", a.ensureID(), a.PageRecordID, a.Index, a.Path)
}

// SaveImage persists one image artifact.
func (r *ArtifactRepository) SaveImage(ctx context.Context, a *ImageArtifact) error {
	return r.save(ctx, "image_artifacts", a.ensureID(), a.PageRecordID, a.Index, a.Path)
}

func (a *TableArtifact) ensureID() uuid.UUID {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return a.ID
}

func (a *ImageArtifact) ensureID() uuid.UUID {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return a.ID
}

func (r *ArtifactRepository) save(ctx context.Context, table string, id, pageID uuid.UUID, idx int, path string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, page_record_id, idx, path, created_at) VALUES ($1, $2, $3, $4, $5)`,
		table)
	_, err := r.db.ExecContext(ctx, query, id.String(), pageID.String(), idx, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

// ListTablesByPage returns a page's table artifacts ordered by index.
func (r *ArtifactRepository) ListTablesByPage(ctx context.Context, pageRecordID uuid.UUID) ([]*TableArtifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, page_record_id, idx, path, created_at FROM table_artifacts
		 WHERE page_record_id = $1 ORDER BY idx`, pageRecordID.String())
	if err != nil {
		return nil, fmt.Errorf("list table artifacts: %w", err)
	}
	defer rows.Close()

	var out []*TableArtifact
	for rows.Next() {
		var (
			a          TableArtifact
			id, pageID string
		)
		if err := rows.Scan(&id, &pageID, &a.Index, &a.Path, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID, _ = uuid.Parse(id)
		a.PageRecordID, _ = uuid.Parse(pageID)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ListImagesByPage returns a page's image artifacts ordered by index.
func (r *ArtifactRepository) ListImagesByPage(ctx context.Context, pageRecordID uuid.UUID) ([]*ImageArtifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, page_record_id, idx, path, created_at FROM image_artifacts
		 WHERE page_record_id = $1 ORDER BY idx`, pageRecordID.String())
	if err != nil {
		return nil, fmt.Errorf("list image artifacts: %w", err)
	}
	defer rows.Close()

	var out []*ImageArtifact
	for rows.Next() {
		var (
			a          ImageArtifact
			id, pageID string
		)
		if err := rows.Scan(&id, &pageID, &a.Index, &a.Path, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID, _ = uuid.Parse(id)
		a.PageRecordID, _ = uuid.Parse(pageID)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// EntityRepository is the SQL-backed EntityStore.
type EntityRepository struct {
	db DB
}

// NewEntityRepository creates an entity repository.
func NewEntityRepository(db DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindByParent returns all records of a category for a parent document.
func (r *EntityRepository) FindByParent(ctx context.Context, category Category, uploadID uuid.UUID) ([]*EntityRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, upload_id, category, fields, created_at, updated_at
		 FROM entity_records WHERE upload_id = $1 AND category = $2
		 ORDER BY created_at`, uploadID.String(), string(category))
	if err != nil {
		return nil, fmt.Errorf("find entities by parent: %w", err)
	}
	defer rows.Close()

	var out []*EntityRecord
	for rows.Next() {
		var (
			rec    EntityRecord
			id, up string
			cat    string
		)
		if err := rows.Scan(&id, &up, &cat, &rec.Fields, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.ID, _ = uuid.Parse(id)
		rec.UploadID, _ = uuid.Parse(up)
		rec.Category = Category(cat)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Save inserts a new record or updates an existing one by id.
func (r *EntityRepository) Save(ctx context.Context, rec *EntityRecord) error {
	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	query := `
		INSERT INTO entity_records (id, upload_id, category, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.UploadID.String(), string(rec.Category),
		rec.Fields, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// DeleteMany removes records by id.
func (r *EntityRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM entity_records WHERE id = $1`, id.String()); err != nil {
			return fmt.Errorf("delete entity %s: %w", id, err)
		}
	}
	return nil
}

// UploadRepository is the SQL-backed UploadStore.
type UploadRepository struct {
	db DB
}

// NewUploadRepository creates an upload repository.
func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// ResolveByID returns the stored path and slug for an upload.
func (r *UploadRepository) ResolveByID(ctx context.Context, id uuid.UUID) (*Upload, error) {
	var (
		u   Upload
		uid string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slug, path, original_name, created_at FROM uploads WHERE id = $1`,
		id.String()).Scan(&uid, &u.Slug, &u.Path, &u.OriginalName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve upload: %w", err)
	}
	u.ID, _ = uuid.Parse(uid)
	return &u, nil
}

// Register records an upload row. The upload surface normally owns this;
// it exists for the enqueue CLI and tests.
func (r *UploadRepository) Register(ctx context.Context, u *Upload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO uploads (id, slug, path, original_name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID.String(), u.Slug, u.Path, u.OriginalName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("register upload: %w", err)
	}
	return nil
}
