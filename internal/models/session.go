package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of an import session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusTimeout    SessionStatus = "TIMEOUT"
)

// Terminal reports whether the status allows no further processing. TIMEOUT is
// deliberately not terminal: resume transitions it back to PROCESSING.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// ImportCounts accumulates the entities committed by an import run.
type ImportCounts struct {
	ProductsCreated   int `json:"productsCreated"`
	VariantsCreated   int `json:"variantsCreated"`
	AttributesCreated int `json:"attributesCreated"`
	ImagesUploaded    int `json:"imagesUploaded"`
}

// Add merges batch counts into the running totals.
func (c *ImportCounts) Add(other ImportCounts) {
	c.ProductsCreated += other.ProductsCreated
	c.VariantsCreated += other.VariantsCreated
	c.AttributesCreated += other.AttributesCreated
	c.ImagesUploaded += other.ImagesUploaded
}

// ImportSession is the durable record of one ingestion run: the validation
// report, the validated rows payload, and the job state the orchestrator
// mutates after every committed batch. The whole progress snapshot lives in a
// single row so a status read can never observe a torn update.
type ImportSession struct {
	ID         uuid.UUID     `json:"sessionId" gorm:"type:uuid;primary_key"`
	TenantID   string        `json:"tenantId" gorm:"not null;index:idx_import_sessions_tenant"`
	CategoryID uuid.UUID     `json:"categoryId" gorm:"type:uuid;not null"`
	Filename   string        `json:"filename" gorm:"not null"`
	Status     SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index:idx_import_sessions_status"`

	// Validation report
	TotalRows   int       `json:"totalRows" gorm:"not null;default:0"`
	ValidRows   int       `json:"validRows" gorm:"not null;default:0"`
	ErrorRows   int       `json:"errorRows" gorm:"not null;default:0"`
	WarningRows int       `json:"warningRows" gorm:"not null;default:0"`
	Issues      JSONArray `json:"issues,omitempty" gorm:"type:jsonb"`

	// Validated rows payload, so processing and resume survive restarts.
	RowData JSONArray `json:"-" gorm:"column:row_data;type:jsonb"`

	// Job state, advanced only inside the transaction that commits a batch.
	ProgressPercent       int    `json:"progressPercent" gorm:"not null;default:0"`
	CurrentOperation      string `json:"currentOperation" gorm:"type:text"`
	CurrentBatch          int    `json:"currentBatch" gorm:"not null;default:0"`
	TotalBatches          int    `json:"totalBatches" gorm:"not null;default:0"`
	LastCommittedRowIndex int    `json:"lastCommittedRowIndex" gorm:"not null;default:0"`
	ProductsCreated       int    `json:"productsCreated" gorm:"not null;default:0"`
	VariantsCreated       int    `json:"variantsCreated" gorm:"not null;default:0"`
	AttributesCreated     int    `json:"attributesCreated" gorm:"not null;default:0"`
	ImagesUploaded        int    `json:"imagesUploaded" gorm:"not null;default:0"`
	ErrorMessage          string `json:"errorMessage,omitempty" gorm:"type:text"`
	ElapsedMs             int64  `json:"elapsedMs" gorm:"not null;default:0"`

	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the ImportSession model
func (ImportSession) TableName() string {
	return "import_sessions"
}

// Counts returns the accumulated entity counts for the session.
func (s *ImportSession) Counts() ImportCounts {
	return ImportCounts{
		ProductsCreated:   s.ProductsCreated,
		VariantsCreated:   s.VariantsCreated,
		AttributesCreated: s.AttributesCreated,
		ImagesUploaded:    s.ImagesUploaded,
	}
}

// SetRows stores the validated rows as the session's JSONB payload.
func (s *ImportSession) SetRows(rows []Row) {
	payload := make(JSONArray, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, row)
	}
	s.RowData = payload
}

// Rows decodes the validated rows payload back into typed rows. The payload is
// round-tripped through JSON because JSONB scanning yields untyped maps.
func (s *ImportSession) Rows() ([]Row, error) {
	if len(s.RowData) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(s.RowData)
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetIssues stores the validation issues on the session.
func (s *ImportSession) SetIssues(errors, warnings []ValidationIssue) {
	payload := make(JSONArray, 0, len(errors)+len(warnings))
	for _, issue := range errors {
		payload = append(payload, issue)
	}
	for _, issue := range warnings {
		payload = append(payload, issue)
	}
	s.Issues = payload
}
