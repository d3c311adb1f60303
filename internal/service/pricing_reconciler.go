package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// ExplicitPricer finds the explicit price entry of a template, ignoring base
// cost and fallback tiers
type ExplicitPricer interface {
	ExplicitPriceFor(t domain.Template) (domain.PriceEntry, bool)
}

// ReconcileReport summarises one reconciliation run
type ReconcileReport struct {
	TemplatesChecked int
	MissingPrices    int
	StalePrices      int
	NewProcedures    int
	Notifications    []domain.Notification
	RanAt            time.Time
}

// PricingReconciler compares the template catalog against the pricing catalog
// and raises notifications for gaps. A gap is flagged once while it stays
// open; once it closes it is forgotten, so a later reappearance is flagged
// again. It keeps its own memory of open gaps and known templates and is not
// safe for concurrent use.
type PricingReconciler struct {
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time

	open     map[domain.PricingKey]bool
	known    map[string]bool
	baseline bool
}

// NewPricingReconciler creates a reconciler. A zero staleAfter disables
// stale price detection.
func NewPricingReconciler(staleAfter time.Duration, logger *zap.Logger) *PricingReconciler {
	return &PricingReconciler{
		staleAfter: staleAfter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		open:       make(map[domain.PricingKey]bool),
		known:      make(map[string]bool),
	}
}

// SetClock replaces the time source; used by tests.
func (r *PricingReconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Seed marks the gaps behind previously stored pricing notifications, read or
// not, as already flagged. Call it once with the persisted feed at startup.
func (r *PricingReconciler) Seed(existing []domain.Notification) {
	for i := range existing {
		n := &existing[i]
		switch n.Kind {
		case domain.NotificationKindMissingPrice, domain.NotificationKindStaleUpdate:
			r.open[n.Key()] = true
		case domain.NotificationKindNewProcedure, domain.NotificationKindSystem:
		}
	}
}

// Run reconciles the templates against the prices. feed is the current
// notification feed; an unread notification for the same gap suppresses a new
// one even when the gap was not seeded.
func (r *PricingReconciler) Run(templates []domain.Template, prices ExplicitPricer, feed []domain.Notification) ReconcileReport {
	now := r.now()
	report := ReconcileReport{
		TemplatesChecked: len(templates),
		Notifications:    make([]domain.Notification, 0),
		RanAt:            now,
	}

	unread := make(map[domain.PricingKey]bool)
	for i := range feed {
		if !feed[i].Read && feed[i].Kind.IsPricing() {
			unread[feed[i].Key()] = true
		}
	}

	stillOpen := make(map[domain.PricingKey]bool)
	present := make(map[string]bool, len(templates))

	for _, tpl := range templates {
		present[tpl.ID] = true
		if r.baseline && !r.known[tpl.ID] {
			report.Notifications = append(report.Notifications, r.notification(
				domain.NotificationKindNewProcedure, tpl, now,
				"Nuevo trámite en el catálogo",
				fmt.Sprintf("El trámite %q de %s fue agregado al catálogo.", tpl.Name, tpl.Authority),
			))
			report.NewProcedures++
		}
		r.known[tpl.ID] = true

		entry, priced := prices.ExplicitPriceFor(tpl)
		switch {
		case !priced:
			key := domain.NewPricingKey(domain.NotificationKindMissingPrice, tpl.Name, tpl.Authority)
			stillOpen[key] = true
			if r.open[key] || unread[key] {
				continue
			}
			report.Notifications = append(report.Notifications, r.notification(
				domain.NotificationKindMissingPrice, tpl, now,
				"Trámite sin precio",
				fmt.Sprintf("El trámite %q de %s no tiene un precio cargado.", tpl.Name, tpl.Authority),
			))
			report.MissingPrices++
		case r.staleAfter > 0 && now.Sub(entry.UpdatedAt) > r.staleAfter:
			key := domain.NewPricingKey(domain.NotificationKindStaleUpdate, tpl.Name, tpl.Authority)
			stillOpen[key] = true
			if r.open[key] || unread[key] {
				continue
			}
			days := int(now.Sub(entry.UpdatedAt).Hours() / 24)
			report.Notifications = append(report.Notifications, r.notification(
				domain.NotificationKindStaleUpdate, tpl, now,
				"Precio desactualizado",
				fmt.Sprintf("El precio de %q no se actualiza hace %d días.", tpl.Name, days),
			))
			report.StalePrices++
		}
	}

	for id := range r.known {
		if !present[id] {
			delete(r.known, id)
		}
	}
	r.open = stillOpen
	r.baseline = true

	if r.logger != nil && len(report.Notifications) > 0 {
		r.logger.Info("pricing reconciliation raised notifications",
			zap.Int("templatesChecked", report.TemplatesChecked),
			zap.Int("missingPrices", report.MissingPrices),
			zap.Int("stalePrices", report.StalePrices),
			zap.Int("newProcedures", report.NewProcedures),
		)
	}
	return report
}

func (r *PricingReconciler) notification(kind domain.NotificationKind, tpl domain.Template, now time.Time, title, message string) domain.Notification {
	return domain.Notification{
		BaseModel: domain.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Kind:          kind,
		Title:         title,
		Message:       message,
		ProcedureName: tpl.Name,
		Authority:     tpl.Authority,
		EntityType:    "template",
		EntityID:      tpl.ID,
	}
}

// reconcilerState is a copy of the reconciler memory used to undo a run whose
// notifications could not be stored.
type reconcilerState struct {
	open     map[domain.PricingKey]bool
	known    map[string]bool
	baseline bool
}

func (r *PricingReconciler) checkpoint() reconcilerState {
	s := reconcilerState{
		open:     make(map[domain.PricingKey]bool, len(r.open)),
		known:    make(map[string]bool, len(r.known)),
		baseline: r.baseline,
	}
	for k, v := range r.open {
		s.open[k] = v
	}
	for k, v := range r.known {
		s.known[k] = v
	}
	return s
}

func (r *PricingReconciler) rollback(s reconcilerState) {
	r.open = s.open
	r.known = s.known
	r.baseline = s.baseline
}
