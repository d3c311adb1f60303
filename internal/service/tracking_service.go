package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/storage"
	"go.uber.org/zap"
)

// TrackingOptions configures the tracking service
type TrackingOptions struct {
	FallbackPrice       *decimal.Decimal
	StaleAfter          time.Duration
	Checker             DocumentChecker
	ValidationThreshold float64
}

// TrackingService owns the in-memory entity set and runs every mutation of
// it. Mutations are serialised by one mutex and handed to the store before
// they become visible; when the store refuses a change the in-memory state is
// left as it was.
type TrackingService struct {
	mu sync.Mutex

	templates  *catalog.TemplateCatalog
	pricing    *catalog.PricingCatalog
	reconciler *PricingReconciler
	generator  *ProcessGenerator
	machine    *ProcessStateMachine
	feed       *NotificationAggregator

	numbers     *NumberSequenceService
	validations *ValidationRunner
	store       Store
	storage     storage.Storage
	opts        TrackingOptions
	logger      *zap.Logger
	now         func() time.Time

	processes map[uuid.UUID]*domain.Process
	budgets   map[uuid.UUID]*domain.Budget
}

// NewTrackingService creates the service over an empty entity set. Call Load
// to pull the persisted state.
func NewTrackingService(templates *catalog.TemplateCatalog, store Store, opts TrackingOptions, logger *zap.Logger) *TrackingService {
	if opts.Checker == nil {
		opts.Checker = DelayChecker{Delay: 2 * time.Second, Confidence: 0.9}
	}
	s := &TrackingService{
		templates:  templates,
		pricing:    catalog.NewPricingCatalog(nil, opts.FallbackPrice),
		reconciler: NewPricingReconciler(opts.StaleAfter, logger),
		machine:    NewProcessStateMachine(),
		feed:       NewNotificationAggregator(nil),
		numbers:    NewNumberSequenceService(store, logger),
		store:      store,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		processes:  make(map[uuid.UUID]*domain.Process),
		budgets:    make(map[uuid.UUID]*domain.Budget),
	}
	s.generator = NewProcessGenerator(s.templates, s.pricing)
	s.validations = NewValidationRunner(opts.Checker, opts.ValidationThreshold, s.recordValidation, logger)
	return s
}

// SetStorage enables document uploads.
func (s *TrackingService) SetStorage(st storage.Storage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = st
}

// SetClock replaces the time source of the service and its components; used
// by tests.
func (s *TrackingService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.pricing.SetClock(now)
	s.reconciler.SetClock(now)
	s.generator.SetClock(now)
	s.machine.SetClock(now)
	s.feed.SetClock(now)
	s.numbers.SetClock(now)
	s.validations.SetClock(now)
}

// Load replaces the in-memory state with the persisted snapshot and runs a
// first reconciliation. Stored pricing notifications are not raised again.
func (s *TrackingService) Load(ctx context.Context) error {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pricing = catalog.NewPricingCatalog(snap.PriceEntries, s.opts.FallbackPrice)
	s.pricing.SetClock(s.now)
	s.feed = NewNotificationAggregator(snap.Notifications)
	s.feed.SetClock(s.now)
	s.reconciler = NewPricingReconciler(s.opts.StaleAfter, s.logger)
	s.reconciler.SetClock(s.now)
	s.reconciler.Seed(snap.Notifications)
	s.rebuildGenerator()

	s.processes = make(map[uuid.UUID]*domain.Process, len(snap.Processes))
	for i := range snap.Processes {
		p := snap.Processes[i].Clone()
		s.processes[p.ID] = p
	}
	s.budgets = make(map[uuid.UUID]*domain.Budget, len(snap.Budgets))
	for i := range snap.Budgets {
		b := snap.Budgets[i].Clone()
		s.budgets[b.ID] = b
	}

	s.logger.Info("tracking state loaded",
		zap.Int("prices", len(snap.PriceEntries)),
		zap.Int("budgets", len(snap.Budgets)),
		zap.Int("processes", len(snap.Processes)),
		zap.Int("notifications", len(snap.Notifications)))

	if _, err := s.reconcileLocked(ctx); err != nil {
		return err
	}
	return nil
}

// Close stops running document validations.
func (s *TrackingService) Close(ctx context.Context) error {
	return s.validations.Shutdown(ctx)
}

func (s *TrackingService) rebuildGenerator() {
	s.generator = NewProcessGenerator(s.templates, s.pricing)
	s.generator.SetClock(s.now)
}

// ============================================================================
// Templates
// ============================================================================

// TemplateQuote is a template with its effective price
type TemplateQuote struct {
	Template    domain.Template
	Price       decimal.Decimal
	PriceSource string
}

// Price sources reported by QuoteTemplate
const (
	PriceSourceList     = "price_list"
	PriceSourceBaseCost = "base_cost"
	PriceSourceFallback = "fallback"
)

// ListTemplates returns the catalog, optionally narrowed to one authority.
func (s *TrackingService) ListTemplates(authority string) []domain.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	if authority != "" {
		return s.templates.ByAuthority(authority)
	}
	return s.templates.List()
}

// QuoteTemplate returns a template together with the price a new process
// would be charged.
func (s *TrackingService) QuoteTemplate(id string) (TemplateQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, err := s.templates.Find(id)
	if err != nil {
		return TemplateQuote{}, err
	}
	quote := TemplateQuote{Template: tpl, Price: s.pricing.PriceFor(tpl)}
	switch _, ok := s.pricing.ExplicitPriceFor(tpl); {
	case ok:
		quote.PriceSource = PriceSourceList
	case tpl.BaseCost != nil:
		quote.PriceSource = PriceSourceBaseCost
	default:
		quote.PriceSource = PriceSourceFallback
	}
	return quote, nil
}

// ReloadTemplates swaps in a new template catalog and reconciles it against
// the prices. Templates absent from the previous catalog raise new procedure
// notifications.
func (s *TrackingService) ReloadTemplates(ctx context.Context, templates *catalog.TemplateCatalog) (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.templates
	s.templates = templates
	s.rebuildGenerator()

	report, err := s.reconcileLocked(ctx)
	if err != nil {
		s.templates = previous
		s.rebuildGenerator()
		return ReconcileReport{}, err
	}
	s.logger.Info("template catalog reloaded",
		zap.Int("templates", templates.Len()),
		zap.Int("newProcedures", report.NewProcedures))
	return report, nil
}

// ============================================================================
// Reconciliation and notifications
// ============================================================================

// Reconcile runs the pricing reconciliation and stores the notifications it
// raises.
func (s *TrackingService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(ctx)
}

func (s *TrackingService) reconcileLocked(ctx context.Context) (ReconcileReport, error) {
	state := s.reconciler.checkpoint()
	report := s.reconciler.Run(s.templates.List(), s.pricing, s.feed.List(NotificationFilter{}))
	if len(report.Notifications) == 0 {
		return report, nil
	}
	if err := s.store.SaveNotifications(ctx, report.Notifications); err != nil {
		s.reconciler.rollback(state)
		return ReconcileReport{}, fmt.Errorf("failed to save reconciliation notifications: %w", err)
	}
	for _, n := range report.Notifications {
		if _, err := s.feed.Add(n); err != nil {
			s.logger.Warn("failed to add notification to feed",
				zap.String("notificationId", n.ID.String()),
				zap.Error(err))
		}
	}
	return report, nil
}

// reconcileAfterChange reconciles after a committed pricing or budget change.
// The change stays committed when reconciliation fails.
func (s *TrackingService) reconcileAfterChange(ctx context.Context, reason string) {
	if _, err := s.reconcileLocked(ctx); err != nil {
		s.logger.Warn("reconciliation after change failed",
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// notifySystem stores and publishes a system notification. Failures are
// logged and do not undo the change being reported.
func (s *TrackingService) notifySystem(ctx context.Context, title, message, entityType, entityID string) {
	if _, err := s.addSystemLocked(ctx, title, message, entityType, entityID); err != nil {
		s.logger.Warn("failed to publish system notification",
			zap.String("entityType", entityType),
			zap.String("entityId", entityID),
			zap.Error(err))
	}
}

// AddSystemNotification publishes an ad-hoc system notification.
func (s *TrackingService) AddSystemNotification(ctx context.Context, title, message, entityType, entityID string) (domain.Notification, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Notification{}, domain.NewValidationError("title", "title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSystemLocked(ctx, title, message, entityType, entityID)
}

func (s *TrackingService) addSystemLocked(ctx context.Context, title, message, entityType, entityID string) (domain.Notification, error) {
	now := s.now()
	n := domain.Notification{
		BaseModel:  domain.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Kind:       domain.NotificationKindSystem,
		Title:      title,
		Message:    message,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if err := s.store.SaveNotifications(ctx, []domain.Notification{n}); err != nil {
		return domain.Notification{}, fmt.Errorf("failed to save notification: %w", err)
	}
	added, err := s.feed.Add(n)
	if err != nil {
		return domain.Notification{}, err
	}
	return added, nil
}

// ListNotifications returns the feed newest first.
func (s *TrackingService) ListNotifications(filter NotificationFilter) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.List(filter)
}

// UnreadNotificationCount returns the number of unread notifications.
func (s *TrackingService) UnreadNotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.UnreadCount()
}

// MarkNotificationRead flags one notification as read.
func (s *TrackingService) MarkNotificationRead(ctx context.Context, id uuid.UUID) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.feed.Snapshot()
	n, err := s.feed.MarkRead(id)
	if err != nil {
		return domain.Notification{}, err
	}
	if err := s.store.SaveNotifications(ctx, []domain.Notification{n}); err != nil {
		s.feed.Restore(snapshot)
		return domain.Notification{}, fmt.Errorf("failed to save notification: %w", err)
	}
	return n, nil
}

// MarkAllNotificationsRead flags every unread notification and returns how
// many changed.
func (s *TrackingService) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.feed.Snapshot()
	changed := s.feed.MarkAllRead()
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.store.SaveNotifications(ctx, changed); err != nil {
		s.feed.Restore(snapshot)
		return 0, fmt.Errorf("failed to save notifications: %w", err)
	}
	return len(changed), nil
}

// DeleteNotification removes a notification from the feed.
func (s *TrackingService) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.feed.Snapshot()
	if _, err := s.feed.Remove(id); err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, id); err != nil {
		s.feed.Restore(snapshot)
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func sortProcesses(list []*domain.Process) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}
