package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

func createReconciler(staleAfter time.Duration) *service.PricingReconciler {
	r := service.NewPricingReconciler(staleAfter, zap.NewNop())
	r.SetClock(fixedClock(testNow))
	return r
}

func priceFor(name string, updatedAt time.Time) domain.PriceEntry {
	return domain.PriceEntry{
		BaseModel:   domain.BaseModel{ID: uuid.New(), CreatedAt: updatedAt, UpdatedAt: updatedAt},
		ServiceName: name,
		Price:       decimal.NewFromInt(1000),
		Category:    "general",
		Active:      true,
	}
}

func kinds(notifications []domain.Notification) map[domain.NotificationKind]int {
	out := make(map[domain.NotificationKind]int)
	for _, n := range notifications {
		out[n.Kind]++
	}
	return out
}

func TestPricingReconciler_MissingPrices(t *testing.T) {
	templates := testTemplates()

	t.Run("base cost does not count as an explicit price", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog([]domain.PriceEntry{
			priceFor("certificado de exportación", testNow),
		}, nil)

		report := r.Run(templates, prices, nil)
		assert.Equal(t, 3, report.TemplatesChecked)
		assert.Equal(t, 2, report.MissingPrices)
		require.Len(t, report.Notifications, 2)
		for _, n := range report.Notifications {
			assert.Equal(t, domain.NotificationKindMissingPrice, n.Kind)
			assert.False(t, n.Read)
			assert.Equal(t, "template", n.EntityType)
		}
		assert.Equal(t, "Registro de producto", report.Notifications[0].ProcedureName)
		assert.Equal(t, "ANMAT", report.Notifications[0].Authority)
	})

	t.Run("second run without changes raises nothing", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog(nil, nil)

		first := r.Run(templates, prices, nil)
		require.Len(t, first.Notifications, 3)

		second := r.Run(templates, prices, first.Notifications)
		assert.Empty(t, second.Notifications)
	})

	t.Run("read notification is not resurrected while the gap stays open", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog(nil, nil)

		feed := r.Run(templates, prices, nil).Notifications
		for i := range feed {
			feed[i].Read = true
		}
		assert.Empty(t, r.Run(templates, prices, feed).Notifications)
	})

	t.Run("unread notification in the feed suppresses a duplicate", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog(nil, nil)
		feed := []domain.Notification{{
			Kind:          domain.NotificationKindMissingPrice,
			ProcedureName: "  REGISTRO DE PRODUCTO ",
			Authority:     "anmat",
		}}

		report := r.Run(templates, prices, feed)
		assert.Equal(t, 2, report.MissingPrices)
	})

	t.Run("seeded gaps are not flagged again", func(t *testing.T) {
		prices := catalog.NewPricingCatalog(nil, nil)
		stored := createReconciler(0).Run(templates, prices, nil).Notifications
		for i := range stored {
			stored[i].Read = true
		}

		r := createReconciler(0)
		r.Seed(stored)
		assert.Empty(t, r.Run(templates, prices, stored).Notifications)
	})

	t.Run("closed gap that reopens is flagged again", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog(nil, nil)
		feed := r.Run(templates, prices, nil).Notifications
		for i := range feed {
			feed[i].Read = true
		}

		entry, err := prices.Add(priceFor("Inscripción como importador", testNow))
		require.NoError(t, err)
		assert.Empty(t, r.Run(templates, prices, feed).Notifications)

		_, err = prices.Remove(entry.ID)
		require.NoError(t, err)
		report := r.Run(templates, prices, feed)
		require.Len(t, report.Notifications, 1)
		assert.Equal(t, "Inscripción como importador", report.Notifications[0].ProcedureName)
	})

	t.Run("inactive entry leaves the gap open", func(t *testing.T) {
		r := createReconciler(0)
		inactive := priceFor("Registro de producto", testNow)
		inactive.Active = false
		prices := catalog.NewPricingCatalog([]domain.PriceEntry{inactive}, nil)

		report := r.Run(templates, prices, nil)
		assert.Equal(t, 3, report.MissingPrices)
	})
}

func TestPricingReconciler_StalePrices(t *testing.T) {
	templates := testTemplates()[:1]
	staleAfter := 180 * 24 * time.Hour

	t.Run("old price raises stale update once", func(t *testing.T) {
		r := createReconciler(staleAfter)
		prices := catalog.NewPricingCatalog([]domain.PriceEntry{
			priceFor("Certificado de exportación", testNow.AddDate(0, -7, 0)),
		}, nil)

		report := r.Run(templates, prices, nil)
		assert.Equal(t, map[domain.NotificationKind]int{domain.NotificationKindStaleUpdate: 1}, kinds(report.Notifications))
		assert.Contains(t, report.Notifications[0].Message, "días")

		assert.Empty(t, r.Run(templates, prices, report.Notifications).Notifications)
	})

	t.Run("recent price is fine", func(t *testing.T) {
		r := createReconciler(staleAfter)
		prices := catalog.NewPricingCatalog([]domain.PriceEntry{
			priceFor("Certificado de exportación", testNow.AddDate(0, -1, 0)),
		}, nil)
		assert.Empty(t, r.Run(templates, prices, nil).Notifications)
	})

	t.Run("zero threshold disables the check", func(t *testing.T) {
		r := createReconciler(0)
		prices := catalog.NewPricingCatalog([]domain.PriceEntry{
			priceFor("Certificado de exportación", testNow.AddDate(-3, 0, 0)),
		}, nil)
		assert.Empty(t, r.Run(templates, prices, nil).Notifications)
	})
}

func TestPricingReconciler_NewProcedures(t *testing.T) {
	r := createReconciler(0)
	all := testTemplates()
	prices := catalog.NewPricingCatalog([]domain.PriceEntry{
		priceFor("Certificado de exportación", testNow),
		priceFor("Registro de producto", testNow),
		priceFor("Inscripción como importador", testNow),
	}, nil)

	first := r.Run(all[:2], prices, nil)
	assert.Empty(t, first.Notifications, "baseline run never flags new procedures")

	second := r.Run(all, prices, nil)
	require.Len(t, second.Notifications, 1)
	assert.Equal(t, domain.NotificationKindNewProcedure, second.Notifications[0].Kind)
	assert.Equal(t, "arca-importador", second.Notifications[0].EntityID)
	assert.Equal(t, 1, second.NewProcedures)

	assert.Empty(t, r.Run(all, prices, nil).Notifications)
}
