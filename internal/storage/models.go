// Package storage provides database models and repositories for the
// extraction engine.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PageStatus represents the processing state of a page record.
type PageStatus string

const (
	PageStatusPending PageStatus = "pending"
	PageStatusDone    PageStatus = "done"
	PageStatusError   PageStatus = "error"
)

// Category identifies one of the six extracted-entity variants.
type Category string

const (
	CategoryGoal           Category = "goal"
	CategoryBMP            Category = "bmp"
	CategoryImplementation Category = "implementation"
	CategoryMonitoring     Category = "monitoring"
	CategoryOutreach       Category = "outreach"
	CategoryGeographicArea Category = "geographicArea"
)

// Categories lists all entity categories in a stable order.
var Categories = []Category{
	CategoryGoal,
	CategoryBMP,
	CategoryImplementation,
	CategoryMonitoring,
	CategoryOutreach,
	CategoryGeographicArea,
}

// JSONMap is a JSON-encoded field map column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported JSONMap source %T", src)
	}
}

// Upload is the resolved source document, owned by the external upload
// surface; the core only reads it.
type Upload struct {
	ID           uuid.UUID
	Slug         string
	Path         string
	OriginalName string
	CreatedAt    time.Time
}

// PageRecord is the per-page processing record. Unique on
// (UploadID, PageNumber).
type PageRecord struct {
	ID               uuid.UUID
	UploadID         uuid.UUID
	PageNumber       int
	PagePDFPath      *string
	ExtractedText    *string
	ExtractedHTML    *string
	StructuredResult *string // JSON of the model's six-array result
	RawModelOutput   *string // retained verbatim when the result is unparseable
	Status           PageStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableArtifact is a detected table written to artifact storage, ordered by
// Index within its page across both detectors.
type TableArtifact struct {
	ID           uuid.UUID
	PageRecordID uuid.UUID
	Index        int
	Path         string
	CreatedAt    time.Time
}

// ImageArtifact is an exported embedded image, ordered by Index within its
// page.
type ImageArtifact struct {
	ID           uuid.UUID
	PageRecordID uuid.UUID
	Index        int
	Path         string
	CreatedAt    time.Time
}

// EntityRecord is one persisted extracted entity. Identity across
// reconciliation runs is the normalized natural key inside Fields, not the
// row id.
type EntityRecord struct {
	ID        uuid.UUID
	UploadID  uuid.UUID
	Category  Category
	Fields    JSONMap
	CreatedAt time.Time
	UpdatedAt time.Time
}
