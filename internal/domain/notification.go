package domain

import (
	"strings"
	"time"
)

// NotificationKind is the closed set of notification variants in the feed
type NotificationKind string

const (
	NotificationKindMissingPrice NotificationKind = "missing_price"
	NotificationKindNewProcedure NotificationKind = "new_procedure"
	NotificationKindStaleUpdate  NotificationKind = "stale_update"
	NotificationKindSystem       NotificationKind = "system"
)

// IsValid checks if the NotificationKind is a valid enum value
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationKindMissingPrice, NotificationKindNewProcedure, NotificationKindStaleUpdate, NotificationKindSystem:
		return true
	}
	return false
}

// IsPricing reports whether the kind is produced by price reconciliation.
func (k NotificationKind) IsPricing() bool {
	switch k {
	case NotificationKindMissingPrice, NotificationKindNewProcedure, NotificationKindStaleUpdate:
		return true
	case NotificationKindSystem:
		return false
	}
	return false
}

// Notification is one entry of the notification feed. Pricing notifications
// carry ProcedureName and Authority; system notifications carry EntityType and
// EntityID. Only Read and ReadAt change after creation.
type Notification struct {
	BaseModel
	Kind          NotificationKind `gorm:"type:varchar(30);not null;index"`
	Title         string           `gorm:"type:varchar(200);not null"`
	Message       string           `gorm:"type:varchar(500);not null"`
	ProcedureName string           `gorm:"type:varchar(300);column:procedure_name;index"`
	Authority     string           `gorm:"type:varchar(200)"`
	EntityType    string           `gorm:"type:varchar(50);column:entity_type"`
	EntityID      string           `gorm:"type:varchar(100);column:entity_id"`
	Read          bool             `gorm:"column:read;not null;index"`
	ReadAt        *time.Time       `gorm:"column:read_at"`
}

// PricingKey identifies the procedure a pricing notification is about.
type PricingKey struct {
	Kind          NotificationKind
	ProcedureName string
	Authority     string
}

// NewPricingKey normalises name and authority so reruns compare equal.
func NewPricingKey(kind NotificationKind, procedureName, authority string) PricingKey {
	return PricingKey{
		Kind:          kind,
		ProcedureName: strings.ToLower(strings.TrimSpace(procedureName)),
		Authority:     strings.ToLower(strings.TrimSpace(authority)),
	}
}

// Key returns the pricing dedup key of the notification.
func (n *Notification) Key() PricingKey {
	return NewPricingKey(n.Kind, n.ProcedureName, n.Authority)
}
