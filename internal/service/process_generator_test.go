package service_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
)

func createProcessGenerator(t *testing.T, entries ...domain.PriceEntry) *service.ProcessGenerator {
	pricing := catalog.NewPricingCatalog(entries, nil)
	g := service.NewProcessGenerator(createTemplateCatalog(t), pricing)
	g.SetClock(fixedClock(testNow))
	return g
}

func approvedBudget(templateIDs ...string) *domain.Budget {
	return &domain.Budget{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		Number:      "PRES-2026-001",
		ClientID:    "client-1",
		TemplateIDs: templateIDs,
		Status:      domain.BudgetStatusApproved,
		Total:       decimal.RequireFromString("647350"),
	}
}

func TestProcessGenerator_FromTemplate(t *testing.T) {
	g := createProcessGenerator(t)

	t.Run("builds pending process with checklist and due date", func(t *testing.T) {
		p, err := g.FromTemplate("senasa-export", "client-1", "")
		require.NoError(t, err)

		assert.Equal(t, domain.ProcessStatusPending, p.Status)
		require.Len(t, p.Documents, 3)
		for i, d := range p.Documents {
			assert.Equal(t, domain.DocumentStatusPending, d.Status)
			assert.Equal(t, domain.DocumentKindRequired, d.Kind)
			assert.False(t, d.Validated)
			assert.Equal(t, p.ID, d.ProcessID)
			assert.Equal(t, i, d.Position)
		}
		assert.Equal(t, "factura_comercial", p.Documents[0].DocumentType)
		require.NotNil(t, p.DueAt)
		assert.Equal(t, testNow.AddDate(0, 0, 30), *p.DueAt)
		assert.Equal(t, []string{"senasa"}, p.Tags)
		assert.Equal(t, "SENASA", p.AuthorityID)
		assert.True(t, decimal.NewFromInt(85000).Equal(p.Cost))
		require.NotNil(t, p.TemplateID)
		assert.Equal(t, "senasa-export", *p.TemplateID)
		assert.Equal(t, 0, p.Progress)
	})

	t.Run("authority override wins", func(t *testing.T) {
		p, err := g.FromTemplate("senasa-export", "client-1", "SENASA Delegación Rosario")
		require.NoError(t, err)
		assert.Equal(t, "SENASA Delegación Rosario", p.AuthorityID)
	})

	t.Run("explicit price beats base cost", func(t *testing.T) {
		tid := "senasa-export"
		g := createProcessGenerator(t, domain.PriceEntry{
			BaseModel:   domain.BaseModel{ID: uuid.New(), UpdatedAt: testNow},
			ServiceName: "Otro nombre",
			Price:       decimal.NewFromInt(99000),
			Category:    "SENASA",
			TemplateID:  &tid,
			Active:      true,
		})
		p, err := g.FromTemplate("senasa-export", "client-1", "")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(99000).Equal(p.Cost))
	})

	t.Run("unknown template is a validation error", func(t *testing.T) {
		p, err := g.FromTemplate("missing", "client-1", "")
		assert.Nil(t, p)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("client is required", func(t *testing.T) {
		_, err := g.FromTemplate("senasa-export", " ", "")
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}

func TestProcessGenerator_FromBudget(t *testing.T) {
	t.Run("one process per template in order", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export", "anmat-registro")

		processes, err := g.FromBudget(budget)
		require.NoError(t, err)
		require.Len(t, processes, 2)
		require.Len(t, budget.ProcessIDs, 2)

		assert.Equal(t, "senasa-export", *processes[0].TemplateID)
		assert.Equal(t, "anmat-registro", *processes[1].TemplateID)
		for i, p := range processes {
			require.NotNil(t, p.BudgetID)
			assert.Equal(t, budget.ID, *p.BudgetID)
			assert.Equal(t, budget.ProcessIDs[i], p.ID)
			assert.Equal(t, "client-1", p.ClientID)
		}
	})

	t.Run("cost split follows template prices and sums to total", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export", "anmat-registro")

		processes, err := g.FromBudget(budget)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(102850).Equal(processes[0].Cost), processes[0].Cost.String())
		assert.True(t, decimal.NewFromInt(544500).Equal(processes[1].Cost), processes[1].Cost.String())
		assert.True(t, budget.Total.Equal(processes[0].Cost.Add(processes[1].Cost)))
	})

	t.Run("cost split follows quoted line totals", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export", "anmat-registro")
		budget.Items = []domain.BudgetItem{
			{TemplateID: "senasa-export", Quantity: 1, UnitPrice: decimal.NewFromInt(100000), LineTotal: decimal.NewFromInt(100000)},
			{TemplateID: "anmat-registro", Quantity: 1, UnitPrice: decimal.NewFromInt(300000), LineTotal: decimal.NewFromInt(300000)},
		}
		budget.Total = decimal.NewFromInt(484000)

		processes, err := g.FromBudget(budget)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(121000).Equal(processes[0].Cost), processes[0].Cost.String())
		assert.True(t, decimal.NewFromInt(363000).Equal(processes[1].Cost), processes[1].Cost.String())
	})

	t.Run("remainder goes to the last process", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export", "anmat-registro", "arca-importador")
		budget.Total = decimal.RequireFromString("100")

		processes, err := g.FromBudget(budget)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, p := range processes {
			sum = sum.Add(p.Cost)
		}
		assert.True(t, budget.Total.Equal(sum), sum.String())
	})

	t.Run("unresolved template rejects the whole fan-out", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export", "missing")

		processes, err := g.FromBudget(budget)
		assert.Nil(t, processes)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Empty(t, budget.ProcessIDs)
	})

	t.Run("empty template list", func(t *testing.T) {
		g := createProcessGenerator(t)
		_, err := g.FromBudget(approvedBudget())
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("duplicate template", func(t *testing.T) {
		g := createProcessGenerator(t)
		_, err := g.FromBudget(approvedBudget("senasa-export", "senasa-export"))
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("second fan-out is refused", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export")

		_, err := g.FromBudget(budget)
		require.NoError(t, err)
		_, err = g.FromBudget(budget)
		assert.ErrorIs(t, err, service.ErrBudgetAlreadyGenerated)
		assert.Len(t, budget.ProcessIDs, 1)
	})

	t.Run("budget must be approved", func(t *testing.T) {
		g := createProcessGenerator(t)
		budget := approvedBudget("senasa-export")
		budget.Status = domain.BudgetStatusSent

		_, err := g.FromBudget(budget)
		assert.ErrorIs(t, err, service.ErrBudgetNotApproved)
	})
}
