package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tramitia/process-tracker/internal/domain"
)

// TemplateSource resolves template ids
type TemplateSource interface {
	Find(id string) (domain.Template, error)
}

// PriceSource resolves the price of a template
type PriceSource interface {
	PriceFor(t domain.Template) decimal.Decimal
}

// ProcessGenerator turns templates and approved budgets into process records
// with their document checklist. It never mutates anything until every
// referenced template has been resolved.
type ProcessGenerator struct {
	templates TemplateSource
	prices    PriceSource
	now       func() time.Time
}

// NewProcessGenerator creates a new ProcessGenerator instance
func NewProcessGenerator(templates TemplateSource, prices PriceSource) *ProcessGenerator {
	return &ProcessGenerator{
		templates: templates,
		prices:    prices,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; used by tests.
func (g *ProcessGenerator) SetClock(now func() time.Time) {
	g.now = now
}

// FromTemplate builds one pending process for the client. authorityOverride,
// when non-empty, replaces the authority taken from the template.
func (g *ProcessGenerator) FromTemplate(templateID, clientID, authorityOverride string) (*domain.Process, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, domain.NewValidationError("clientId", "client id is required")
	}
	tpl, err := g.resolve(templateID)
	if err != nil {
		return nil, err
	}

	p := g.build(tpl, clientID, g.now())
	if authorityOverride = strings.TrimSpace(authorityOverride); authorityOverride != "" {
		p.AuthorityID = authorityOverride
	}
	p.Cost = g.prices.PriceFor(tpl)
	p.Description = fmt.Sprintf("%s ante %s", tpl.Name, tpl.Authority)
	return p, nil
}

// FromBudget fans an approved budget out into one process per referenced
// template, in template order. The budget total is split across the
// processes in proportion to each template's quoted line total. On success the new
// process ids are appended to budget.ProcessIDs; on failure the budget is
// left untouched and no process is returned.
func (g *ProcessGenerator) FromBudget(budget *domain.Budget) ([]*domain.Process, error) {
	if budget.Status != domain.BudgetStatusApproved {
		return nil, fmt.Errorf("%w: budget %s is %s", ErrBudgetNotApproved, budget.Number, budget.Status)
	}
	if len(budget.ProcessIDs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrBudgetAlreadyGenerated, budget.Number)
	}
	if len(budget.TemplateIDs) == 0 {
		return nil, domain.NewValidationError("templateIds", "budget references no templates")
	}
	if strings.TrimSpace(budget.ClientID) == "" {
		return nil, domain.NewValidationError("clientId", "budget has no client")
	}

	templates := make([]domain.Template, 0, len(budget.TemplateIDs))
	seen := make(map[string]bool, len(budget.TemplateIDs))
	for _, id := range budget.TemplateIDs {
		if seen[id] {
			return nil, domain.NewValidationError("templateIds", fmt.Sprintf("template %q referenced twice", id))
		}
		seen[id] = true
		tpl, err := g.resolve(id)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}

	costs := splitTotal(budget.Total, g.shareWeights(budget, templates))
	now := g.now()
	processes := make([]*domain.Process, 0, len(templates))
	for i, tpl := range templates {
		p := g.build(tpl, budget.ClientID, now)
		budgetID := budget.ID
		p.BudgetID = &budgetID
		p.Cost = costs[i]
		p.Description = fmt.Sprintf("%s ante %s (presupuesto %s)", tpl.Name, tpl.Authority, budget.Number)
		processes = append(processes, p)
	}

	for _, p := range processes {
		budget.ProcessIDs = append(budget.ProcessIDs, p.ID)
	}
	return processes, nil
}

func (g *ProcessGenerator) resolve(templateID string) (domain.Template, error) {
	if strings.TrimSpace(templateID) == "" {
		return domain.Template{}, domain.NewValidationError("templateId", "template id is required")
	}
	tpl, err := g.templates.Find(templateID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Template{}, &domain.ValidationError{
				Field:   "templateId",
				Message: fmt.Sprintf("unknown template %q", templateID),
				Cause:   err,
			}
		}
		return domain.Template{}, fmt.Errorf("failed to resolve template: %w", err)
	}
	return tpl, nil
}

func (g *ProcessGenerator) build(tpl domain.Template, clientID string, now time.Time) *domain.Process {
	processID := uuid.New()
	due := now.AddDate(0, 0, tpl.EstimatedDays)
	templateID := tpl.ID

	documents := make([]domain.Document, 0, len(tpl.RequiredDocuments))
	for i, name := range tpl.RequiredDocuments {
		documents = append(documents, domain.Document{
			ID:           uuid.New(),
			ProcessID:    processID,
			Position:     i,
			Name:         name,
			Kind:         domain.DocumentKindRequired,
			Status:       domain.DocumentStatusPending,
			Validated:    false,
			DocumentType: documentType(name),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	p := &domain.Process{
		BaseModel: domain.BaseModel{
			ID:        processID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Title:       tpl.Name,
		ClientID:    clientID,
		AuthorityID: tpl.Authority,
		Status:      domain.ProcessStatusPending,
		DueAt:       &due,
		Documents:   documents,
		Priority:    domain.ProcessPriorityMedium,
		Tags:        []string{tpl.AuthorityTag()},
		Cost:        decimal.Zero,
		TemplateID:  &templateID,
	}
	p.Progress = Progress(p)
	return p
}

// shareWeights returns each template's contribution to the budget: the line
// totals quoted on the budget, or the current prices when the budget has no
// item for every template.
func (g *ProcessGenerator) shareWeights(budget *domain.Budget, templates []domain.Template) []decimal.Decimal {
	quoted := make(map[string]decimal.Decimal, len(budget.Items))
	for _, item := range budget.Items {
		if item.TemplateID == "" {
			continue
		}
		quoted[item.TemplateID] = quoted[item.TemplateID].Add(item.LineTotal)
	}

	weights := make([]decimal.Decimal, len(templates))
	for i, tpl := range templates {
		line, ok := quoted[tpl.ID]
		if !ok {
			for j, t := range templates {
				weights[j] = g.prices.PriceFor(t)
			}
			return weights
		}
		weights[i] = line
	}
	return weights
}

// splitTotal divides total by weight, rounded to cents. The last share
// absorbs the rounding remainder so the shares always add up to total.
func splitTotal(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		sum = decimal.NewFromInt(int64(len(weights)))
	}

	shares := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i := range weights {
		if i == len(weights)-1 {
			shares[i] = total.Sub(allocated)
			break
		}
		shares[i] = total.Mul(weights[i]).Div(sum).Round(2)
		allocated = allocated.Add(shares[i])
	}
	return shares
}

// documentType derives a machine-friendly type from a document name.
func documentType(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, "_")
}
