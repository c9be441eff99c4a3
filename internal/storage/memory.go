package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEntityStore is an in-process EntityStore for tests and embedded use.
type MemoryEntityStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*EntityRecord
}

// NewMemoryEntityStore creates an empty in-memory entity store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{records: make(map[uuid.UUID]*EntityRecord)}
}

// FindByParent returns all records of a category for a parent document.
func (s *MemoryEntityStore) FindByParent(_ context.Context, category Category, uploadID uuid.UUID) ([]*EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*EntityRecord
	for _, rec := range s.records {
		if rec.Category == category && rec.UploadID == uploadID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Save inserts or replaces a record by id.
func (s *MemoryEntityStore) Save(_ context.Context, rec *EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// DeleteMany removes records by id.
func (s *MemoryEntityStore) DeleteMany(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func cloneRecord(rec *EntityRecord) *EntityRecord {
	cp := *rec
	cp.Fields = make(JSONMap, len(rec.Fields))
	for k, v := range rec.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// MemoryPageStore is an in-process PageStore for pipeline tests.
type MemoryPageStore struct {
	mu    sync.Mutex
	pages map[uuid.UUID]*PageRecord
}

// NewMemoryPageStore creates an empty in-memory page store.
func NewMemoryPageStore() *MemoryPageStore {
	return &MemoryPageStore{pages: make(map[uuid.UUID]*PageRecord)}
}

func (s *MemoryPageStore) find(uploadID uuid.UUID, pageNumber int) *PageRecord {
	for _, p := range s.pages {
		if p.UploadID == uploadID && p.PageNumber == pageNumber {
			return p
		}
	}
	return nil
}

// UpsertSplit records a freshly split page artifact.
func (s *MemoryPageStore) UpsertSplit(_ context.Context, uploadID uuid.UUID, pageNumber int, pdfPath string) (*PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rec := s.find(uploadID, pageNumber)
	if rec == nil {
		rec = &PageRecord{ID: uuid.New(), UploadID: uploadID, PageNumber: pageNumber, CreatedAt: now}
		s.pages[rec.ID] = rec
	}
	path := pdfPath
	rec.PagePDFPath = &path
	rec.ExtractedText = nil
	rec.ExtractedHTML = nil
	rec.Status = PageStatusPending
	rec.UpdatedAt = now
	cp := *rec
	return &cp, nil
}

// UpsertExtracted records markup and plain text for a page.
func (s *MemoryPageStore) UpsertExtracted(_ context.Context, uploadID uuid.UUID, pageNumber int, html, text string, status PageStatus) (*PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rec := s.find(uploadID, pageNumber)
	if rec == nil {
		rec = &PageRecord{ID: uuid.New(), UploadID: uploadID, PageNumber: pageNumber, CreatedAt: now}
		s.pages[rec.ID] = rec
	}
	h, t := html, text
	rec.ExtractedHTML = &h
	rec.ExtractedText = &t
	rec.Status = status
	rec.UpdatedAt = now
	cp := *rec
	return &cp, nil
}

// SetModelResult stores the model outputs for a page.
func (s *MemoryPageStore) SetModelResult(_ context.Context, id uuid.UUID, structured, raw *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pages[id]
	if !ok {
		return ErrNotFound
	}
	rec.StructuredResult = structured
	rec.RawModelOutput = raw
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkError flags a page whose parse failed.
func (s *MemoryPageStore) MarkError(_ context.Context, uploadID uuid.UUID, pageNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.find(uploadID, pageNumber); rec != nil {
		rec.Status = PageStatusError
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// ListByUpload returns all page records for an upload in page order.
func (s *MemoryPageStore) ListByUpload(_ context.Context, uploadID uuid.UUID) ([]*PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PageRecord
	for _, p := range s.pages {
		if p.UploadID == uploadID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

// MemoryArtifactStore is an in-process ArtifactStore for pipeline tests.
type MemoryArtifactStore struct {
	mu     sync.Mutex
	tables []*TableArtifact
	images []*ImageArtifact
}

// NewMemoryArtifactStore creates an empty in-memory artifact store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{}
}

// SaveTable persists one table artifact.
func (s *MemoryArtifactStore) SaveTable(_ context.Context, a *TableArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	s.tables = append(s.tables, &cp)
	return nil
}

// SaveImage persists one image artifact.
func (s *MemoryArtifactStore) SaveImage(_ context.Context, a *ImageArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	s.images = append(s.images, &cp)
	return nil
}

// ListTablesByPage returns a page's table artifacts ordered by index.
func (s *MemoryArtifactStore) ListTablesByPage(_ context.Context, pageRecordID uuid.UUID) ([]*TableArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TableArtifact
	for _, a := range s.tables {
		if a.PageRecordID == pageRecordID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// ListImagesByPage returns a page's image artifacts ordered by index.
func (s *MemoryArtifactStore) ListImagesByPage(_ context.Context, pageRecordID uuid.UUID) ([]*ImageArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ImageArtifact
	for _, a := range s.images {
		if a.PageRecordID == pageRecordID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
