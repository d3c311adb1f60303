package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an id when the caller did not. SQLite has no
// gen_random_uuid so ids are always generated application side.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PriceEntry is a service price in the pricing catalog. It matches a template
// either through TemplateID or by case-insensitive name equality.
type PriceEntry struct {
	BaseModel
	ServiceName string          `gorm:"type:varchar(200);not null;index;column:service_name"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Category    string          `gorm:"type:varchar(100);not null;index"`
	Authority   string          `gorm:"type:varchar(200)"`
	TemplateID  *string         `gorm:"type:varchar(100);column:template_id;index"`
	Active      bool            `gorm:"not null"`
}

// BudgetStatus represents the status of a budget
type BudgetStatus string

const (
	BudgetStatusDraft    BudgetStatus = "draft"
	BudgetStatusSent     BudgetStatus = "sent"
	BudgetStatusApproved BudgetStatus = "approved"
	BudgetStatusRejected BudgetStatus = "rejected"
	BudgetStatusExpired  BudgetStatus = "expired"
)

// IsValid checks if the BudgetStatus is a valid enum value
func (s BudgetStatus) IsValid() bool {
	switch s {
	case BudgetStatusDraft, BudgetStatusSent, BudgetStatusApproved, BudgetStatusRejected, BudgetStatusExpired:
		return true
	}
	return false
}

// VATRate is the fixed tax rate applied to every budget subtotal.
var VATRate = decimal.RequireFromString("0.21")

// Budget is a priced quote over one or more templates. Approving it fans out
// into one process per referenced template.
type Budget struct {
	BaseModel
	Number      string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	ClientID    string          `gorm:"type:varchar(100);not null;index;column:client_id"`
	TemplateIDs []string        `gorm:"serializer:json;type:text;column:template_ids"`
	Items       []BudgetItem    `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Tax         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Total       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status      BudgetStatus    `gorm:"type:varchar(20);not null;index"`
	ProcessIDs  []uuid.UUID     `gorm:"serializer:json;type:text;column:process_ids"`
	Notes       string          `gorm:"type:text"`
	SentAt      *time.Time
	DecidedAt   *time.Time
}

// BudgetItem is one priced line of a budget.
type BudgetItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BudgetID     uuid.UUID       `gorm:"type:uuid;not null;index;column:budget_id"`
	TemplateID   string          `gorm:"type:varchar(100);column:template_id"`
	Description  string          `gorm:"type:varchar(500);not null"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(14,2);not null;column:unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(14,2);not null;column:line_total"`
	DisplayOrder int             `gorm:"not null;default:0;column:display_order"`
}

// Recalculate derives line totals, subtotal, tax and total from the items.
func (b *Budget) Recalculate() {
	subtotal := decimal.Zero
	for i := range b.Items {
		item := &b.Items[i]
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
	}
	b.Subtotal = subtotal
	b.Tax = subtotal.Mul(VATRate).Round(2)
	b.Total = b.Subtotal.Add(b.Tax)
}

// Clone returns a deep copy so callers can stage mutations.
func (b *Budget) Clone() *Budget {
	c := *b
	c.TemplateIDs = append([]string(nil), b.TemplateIDs...)
	c.Items = append([]BudgetItem(nil), b.Items...)
	c.ProcessIDs = append([]uuid.UUID(nil), b.ProcessIDs...)
	return &c
}

// NumberSequence tracks the last number handed out for a prefix and year
type NumberSequence struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Prefix       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_number_sequences_prefix_year"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequences_prefix_year"`
	LastSequence int       `gorm:"not null;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
