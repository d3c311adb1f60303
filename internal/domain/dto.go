package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Timestamps are ISO 8601 strings and money amounts
// are decimal strings.

type TemplateDTO struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Authority         string           `json:"authority"`
	RequiredDocuments []string         `json:"requiredDocuments"`
	EstimatedDays     int              `json:"estimatedDays"`
	BaseCost          *decimal.Decimal `json:"baseCost,omitempty" swaggertype:"string"`
}

// TemplateQuoteDTO is a template with the price a budget would charge for it
type TemplateQuoteDTO struct {
	TemplateDTO
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	PriceSource string          `json:"priceSource"`
}

type PriceEntryDTO struct {
	ID          uuid.UUID       `json:"id"`
	ServiceName string          `json:"serviceName"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	Category    string          `json:"category"`
	Authority   string          `json:"authority,omitempty"`
	TemplateID  *string         `json:"templateId,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   string          `json:"createdAt"` // ISO 8601
	UpdatedAt   string          `json:"updatedAt"` // ISO 8601
}

type BudgetItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	TemplateID  string          `json:"templateId"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" swaggertype:"string"`
	LineTotal   decimal.Decimal `json:"lineTotal" swaggertype:"string"`
}

type BudgetDTO struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	ClientID    string          `json:"clientId"`
	TemplateIDs []string        `json:"templateIds"`
	Items       []BudgetItemDTO `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal" swaggertype:"string"`
	Tax         decimal.Decimal `json:"tax" swaggertype:"string"`
	Total       decimal.Decimal `json:"total" swaggertype:"string"`
	Status      BudgetStatus    `json:"status"`
	ProcessIDs  []uuid.UUID     `json:"processIds"`
	Notes       string          `json:"notes,omitempty"`
	SentAt      string          `json:"sentAt,omitempty"`
	DecidedAt   string          `json:"decidedAt,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// BudgetApprovalDTO is returned when approving a budget fans out processes
type BudgetApprovalDTO struct {
	Budget    BudgetDTO    `json:"budget"`
	Processes []ProcessDTO `json:"processes"`
}

type DocumentDTO struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Kind         DocumentKind   `json:"kind"`
	Status       DocumentStatus `json:"status"`
	DocumentType string         `json:"documentType,omitempty"`
	Validated    bool           `json:"validated"`
	HasFile      bool           `json:"hasFile"`
	UploadedAt   string         `json:"uploadedAt,omitempty"`
}

type ProcessDTO struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	ClientID    string          `json:"clientId"`
	AuthorityID string          `json:"authorityId,omitempty"`
	Status      ProcessStatus   `json:"status"`
	Priority    ProcessPriority `json:"priority"`
	Progress    int             `json:"progress"`
	Tags        []string        `json:"tags"`
	Cost        decimal.Decimal `json:"cost" swaggertype:"string"`
	TemplateID  *string         `json:"templateId,omitempty"`
	BudgetID    *uuid.UUID      `json:"budgetId,omitempty"`
	Billed      bool            `json:"billed"`
	DueAt       string          `json:"dueAt,omitempty"`
	Documents   []DocumentDTO   `json:"documents"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// ProcessTransitionsDTO lists the statuses a process may move to next
type ProcessTransitionsDTO struct {
	Status  ProcessStatus   `json:"status"`
	Allowed []ProcessStatus `json:"allowed"`
}

// StatusCountDTO is one column of the process board
type StatusCountDTO struct {
	Status ProcessStatus `json:"status"`
	Count  int           `json:"count"`
}

type ValidationTaskDTO struct {
	ID         uuid.UUID  `json:"id"`
	ProcessID  uuid.UUID  `json:"processId"`
	DocumentID uuid.UUID  `json:"documentId"`
	Status     string     `json:"status"`
	Confidence float64    `json:"confidence"`
	Passed     bool       `json:"passed"`
	Error      string     `json:"error,omitempty"`
	RetryOf    *uuid.UUID `json:"retryOf,omitempty"`
	CreatedAt  string     `json:"createdAt"`
	StartedAt  string     `json:"startedAt,omitempty"`
	FinishedAt string     `json:"finishedAt,omitempty"`
}

type NotificationDTO struct {
	ID            uuid.UUID        `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	ProcedureName string           `json:"procedureName,omitempty"`
	Authority     string           `json:"authority,omitempty"`
	EntityType    string           `json:"entityType,omitempty"`
	EntityID      string           `json:"entityId,omitempty"`
	Read          bool             `json:"read"`
	ReadAt        string           `json:"readAt,omitempty"`
	CreatedAt     string           `json:"createdAt"`
}

// UnreadCountDTO represents the count of unread notifications
type UnreadCountDTO struct {
	Count int `json:"count"`
}

// MarkAllReadDTO reports how many notifications were marked read
type MarkAllReadDTO struct {
	Updated int `json:"updated"`
}

type ReconcileReportDTO struct {
	TemplatesChecked int               `json:"templatesChecked"`
	MissingPrices    int               `json:"missingPrices"`
	StalePrices      int               `json:"stalePrices"`
	NewProcedures    int               `json:"newProcedures"`
	Notifications    []NotificationDTO `json:"notifications"`
	RanAt            string            `json:"ranAt"`
}

// HealthDTO is the body of the health endpoint
type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreatePriceEntryRequest struct {
	ServiceName string          `json:"serviceName" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	Category    string          `json:"category" validate:"required,max=100"`
	Authority   string          `json:"authority,omitempty" validate:"max=200"`
	TemplateID  *string         `json:"templateId,omitempty" validate:"omitempty,max=100"`
	Active      *bool           `json:"active,omitempty"`
}

type UpdatePriceEntryRequest struct {
	ServiceName *string          `json:"serviceName,omitempty" validate:"omitempty,max=200"`
	Price       *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Authority   *string          `json:"authority,omitempty" validate:"omitempty,max=200"`
	TemplateID  *string          `json:"templateId,omitempty" validate:"omitempty,max=100"`
	Active      *bool            `json:"active,omitempty"`
}

// PriceIncreaseRequest raises active prices by a percentage, optionally
// limited to one category
type PriceIncreaseRequest struct {
	Percent  decimal.Decimal `json:"percent" swaggertype:"string"`
	Category string          `json:"category,omitempty" validate:"max=100"`
}

type CreateBudgetRequest struct {
	ClientID    string   `json:"clientId" validate:"required,max=100"`
	TemplateIDs []string `json:"templateIds" validate:"required,min=1,dive,required,max=100"`
	Notes       string   `json:"notes,omitempty" validate:"max=2000"`
}

type GenerateProcessRequest struct {
	TemplateID string `json:"templateId" validate:"required,max=100"`
	ClientID   string `json:"clientId" validate:"required,max=100"`
	Authority  string `json:"authority,omitempty" validate:"max=200"`
}

type UpdateProcessRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=300"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Priority    *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Tags        []string   `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
}

type TransitionProcessRequest struct {
	Status string `json:"status" validate:"required,oneof=pending collecting_docs sent under_review approved rejected archived"`
}

type UpdateDocumentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending loaded approved rejected"`
}

// CreateSystemNotificationRequest posts an ad-hoc message to the feed
type CreateSystemNotificationRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Message    string `json:"message" validate:"max=500"`
	EntityType string `json:"entityType,omitempty" validate:"max=50"`
	EntityID   string `json:"entityId,omitempty" validate:"max=100"`
}
