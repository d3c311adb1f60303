package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcessStatus is a lifecycle state of a tracked process
type ProcessStatus string

const (
	ProcessStatusPending        ProcessStatus = "pending"
	ProcessStatusCollectingDocs ProcessStatus = "collecting_docs"
	ProcessStatusSent           ProcessStatus = "sent"
	ProcessStatusUnderReview    ProcessStatus = "under_review"
	ProcessStatusApproved       ProcessStatus = "approved"
	ProcessStatusRejected       ProcessStatus = "rejected"
	ProcessStatusArchived       ProcessStatus = "archived"
)

// ProcessStatuses lists the states in board order.
var ProcessStatuses = []ProcessStatus{
	ProcessStatusPending,
	ProcessStatusCollectingDocs,
	ProcessStatusSent,
	ProcessStatusUnderReview,
	ProcessStatusApproved,
	ProcessStatusRejected,
	ProcessStatusArchived,
}

// IsValid checks if the ProcessStatus is a valid enum value
func (s ProcessStatus) IsValid() bool {
	for _, st := range ProcessStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// ProcessPriority represents how urgently a process should be handled
type ProcessPriority string

const (
	ProcessPriorityLow    ProcessPriority = "low"
	ProcessPriorityMedium ProcessPriority = "medium"
	ProcessPriorityHigh   ProcessPriority = "high"
	ProcessPriorityUrgent ProcessPriority = "urgent"
)

// IsValid checks if the ProcessPriority is a valid enum value
func (p ProcessPriority) IsValid() bool {
	switch p {
	case ProcessPriorityLow, ProcessPriorityMedium, ProcessPriorityHigh, ProcessPriorityUrgent:
		return true
	}
	return false
}

// DocumentKind tells whether a document gates submission
type DocumentKind string

const (
	DocumentKindRequired DocumentKind = "required"
	DocumentKindOptional DocumentKind = "optional"
)

// DocumentStatus is the review state of a single document
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusLoaded   DocumentStatus = "loaded"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// IsValid checks if the DocumentStatus is a valid enum value
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusLoaded, DocumentStatusApproved, DocumentStatusRejected:
		return true
	}
	return false
}

// Process is a tracked instance of a procedure for one client
type Process struct {
	BaseModel
	Title       string          `gorm:"type:varchar(300);not null"`
	Description string          `gorm:"type:text"`
	ClientID    string          `gorm:"type:varchar(100);not null;index;column:client_id"`
	AuthorityID string          `gorm:"type:varchar(200);column:authority_id;index"`
	Status      ProcessStatus   `gorm:"type:varchar(30);not null;index"`
	DueAt       *time.Time      `gorm:"column:due_at"`
	Documents   []Document      `gorm:"foreignKey:ProcessID;constraint:OnDelete:CASCADE"`
	Progress    int             `gorm:"not null;default:0"`
	Priority    ProcessPriority `gorm:"type:varchar(20);not null"`
	Tags        []string        `gorm:"serializer:json;type:text"`
	Cost        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TemplateID  *string         `gorm:"type:varchar(100);column:template_id;index"`
	BudgetID    *uuid.UUID      `gorm:"type:uuid;column:budget_id;index"`
	Billed      bool            `gorm:"not null"`
}

// Document belongs to exactly one process; its id is only meaningful within
// that process.
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProcessID    uuid.UUID      `gorm:"type:uuid;not null;index;column:process_id"`
	Position     int            `gorm:"not null"`
	Name         string         `gorm:"type:varchar(300);not null"`
	Kind         DocumentKind   `gorm:"type:varchar(20);not null"`
	Status       DocumentStatus `gorm:"type:varchar(20);not null"`
	UploadedAt   *time.Time     `gorm:"column:uploaded_at"`
	Validated    bool           `gorm:"not null"`
	DocumentType string         `gorm:"type:varchar(100);column:document_type"`
	StoragePath  string         `gorm:"type:varchar(500);column:storage_path"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// Document returns the document with the given id, or nil.
func (p *Process) Document(id uuid.UUID) *Document {
	for i := range p.Documents {
		if p.Documents[i].ID == id {
			return &p.Documents[i]
		}
	}
	return nil
}

// RequiredDocumentCounts returns the number of required documents and how
// many of them are approved.
func (p *Process) RequiredDocumentCounts() (total, approved int) {
	for _, d := range p.Documents {
		if d.Kind != DocumentKindRequired {
			continue
		}
		total++
		if d.Status == DocumentStatusApproved {
			approved++
		}
	}
	return total, approved
}

// HasTag reports whether the tag set contains tag.
func (p *Process) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a mutation can be staged and discarded.
func (p *Process) Clone() *Process {
	c := *p
	c.Documents = append([]Document(nil), p.Documents...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.DueAt != nil {
		due := *p.DueAt
		c.DueAt = &due
	}
	if p.TemplateID != nil {
		tid := *p.TemplateID
		c.TemplateID = &tid
	}
	if p.BudgetID != nil {
		bid := *p.BudgetID
		c.BudgetID = &bid
	}
	for i := range c.Documents {
		if d := c.Documents[i].UploadedAt; d != nil {
			at := *d
			c.Documents[i].UploadedAt = &at
		}
	}
	return &c
}
