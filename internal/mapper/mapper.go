package mapper

import (
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ToTemplateDTO converts Template to TemplateDTO
func ToTemplateDTO(t *domain.Template) domain.TemplateDTO {
	docs := t.RequiredDocuments
	if docs == nil {
		docs = []string{}
	}
	return domain.TemplateDTO{
		ID:                t.ID,
		Name:              t.Name,
		Authority:         t.Authority,
		RequiredDocuments: docs,
		EstimatedDays:     t.EstimatedDays,
		BaseCost:          t.BaseCost,
	}
}

// ToTemplateQuoteDTO converts a priced template
func ToTemplateQuoteDTO(q service.TemplateQuote) domain.TemplateQuoteDTO {
	return domain.TemplateQuoteDTO{
		TemplateDTO: ToTemplateDTO(&q.Template),
		Price:       q.Price,
		PriceSource: q.PriceSource,
	}
}

// ToPriceEntryDTO converts PriceEntry to PriceEntryDTO
func ToPriceEntryDTO(e *domain.PriceEntry) domain.PriceEntryDTO {
	return domain.PriceEntryDTO{
		ID:          e.ID,
		ServiceName: e.ServiceName,
		Price:       e.Price,
		Category:    e.Category,
		Authority:   e.Authority,
		TemplateID:  e.TemplateID,
		Active:      e.Active,
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
	}
}

// ToBudgetDTO converts Budget to BudgetDTO
func ToBudgetDTO(b *domain.Budget) domain.BudgetDTO {
	items := make([]domain.BudgetItemDTO, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, domain.BudgetItemDTO{
			ID:          item.ID,
			TemplateID:  item.TemplateID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	templateIDs := b.TemplateIDs
	if templateIDs == nil {
		templateIDs = []string{}
	}
	processIDs := b.ProcessIDs
	if processIDs == nil {
		processIDs = []uuid.UUID{}
	}
	return domain.BudgetDTO{
		ID:          b.ID,
		Number:      b.Number,
		ClientID:    b.ClientID,
		TemplateIDs: templateIDs,
		Items:       items,
		Subtotal:    b.Subtotal,
		Tax:         b.Tax,
		Total:       b.Total,
		Status:      b.Status,
		ProcessIDs:  processIDs,
		Notes:       b.Notes,
		SentAt:      formatTimePtr(b.SentAt),
		DecidedAt:   formatTimePtr(b.DecidedAt),
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

// ToDocumentDTO converts Document to DocumentDTO
func ToDocumentDTO(d *domain.Document) domain.DocumentDTO {
	return domain.DocumentDTO{
		ID:           d.ID,
		Name:         d.Name,
		Kind:         d.Kind,
		Status:       d.Status,
		DocumentType: d.DocumentType,
		Validated:    d.Validated,
		HasFile:      d.StoragePath != "",
		UploadedAt:   formatTimePtr(d.UploadedAt),
	}
}

// ToProcessDTO converts Process to ProcessDTO
func ToProcessDTO(p *domain.Process) domain.ProcessDTO {
	docs := make([]domain.DocumentDTO, 0, len(p.Documents))
	for i := range p.Documents {
		docs = append(docs, ToDocumentDTO(&p.Documents[i]))
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.ProcessDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		ClientID:    p.ClientID,
		AuthorityID: p.AuthorityID,
		Status:      p.Status,
		Priority:    p.Priority,
		Progress:    p.Progress,
		Tags:        tags,
		Cost:        p.Cost,
		TemplateID:  p.TemplateID,
		BudgetID:    p.BudgetID,
		Billed:      p.Billed,
		DueAt:       formatTimePtr(p.DueAt),
		Documents:   docs,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

// ToProcessDTOs converts a slice of processes
func ToProcessDTOs(processes []*domain.Process) []domain.ProcessDTO {
	out := make([]domain.ProcessDTO, 0, len(processes))
	for _, p := range processes {
		out = append(out, ToProcessDTO(p))
	}
	return out
}

// ToValidationTaskDTO converts a document validation task
func ToValidationTaskDTO(t service.ValidationTask) domain.ValidationTaskDTO {
	return domain.ValidationTaskDTO{
		ID:         t.ID,
		ProcessID:  t.ProcessID,
		DocumentID: t.DocumentID,
		Status:     string(t.Status),
		Confidence: t.Confidence,
		Passed:     t.Passed,
		Error:      t.Error,
		RetryOf:    t.RetryOf,
		CreatedAt:  formatTime(t.CreatedAt),
		StartedAt:  formatTimePtr(t.StartedAt),
		FinishedAt: formatTimePtr(t.FinishedAt),
	}
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(n *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:            n.ID,
		Kind:          n.Kind,
		Title:         n.Title,
		Message:       n.Message,
		ProcedureName: n.ProcedureName,
		Authority:     n.Authority,
		EntityType:    n.EntityType,
		EntityID:      n.EntityID,
		Read:          n.Read,
		ReadAt:        formatTimePtr(n.ReadAt),
		CreatedAt:     formatTime(n.CreatedAt),
	}
}

// ToNotificationDTOs converts a slice of notifications
func ToNotificationDTOs(notifications []domain.Notification) []domain.NotificationDTO {
	out := make([]domain.NotificationDTO, 0, len(notifications))
	for i := range notifications {
		out = append(out, ToNotificationDTO(&notifications[i]))
	}
	return out
}

// ToReconcileReportDTO converts a reconciliation report
func ToReconcileReportDTO(r service.ReconcileReport) domain.ReconcileReportDTO {
	return domain.ReconcileReportDTO{
		TemplatesChecked: r.TemplatesChecked,
		MissingPrices:    r.MissingPrices,
		StalePrices:      r.StalePrices,
		NewProcedures:    r.NewProcedures,
		Notifications:    ToNotificationDTOs(r.Notifications),
		RanAt:            formatTime(r.RanAt),
	}
}
