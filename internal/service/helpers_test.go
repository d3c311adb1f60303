package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unavailable")

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func testTemplates() []domain.Template {
	return []domain.Template{
		{
			ID:                "senasa-export",
			Name:              "Certificado de exportación",
			Authority:         "SENASA",
			RequiredDocuments: []string{"Factura comercial", "Packing list", "Certificado de origen"},
			EstimatedDays:     30,
			BaseCost:          decimalPtr(85000),
		},
		{
			ID:                "anmat-registro",
			Name:              "Registro de producto",
			Authority:         "ANMAT",
			RequiredDocuments: []string{"Formulario", "Rótulo", "Análisis", "Poder"},
			EstimatedDays:     90,
			BaseCost:          decimalPtr(450000),
		},
		{
			ID:                "arca-importador",
			Name:              "Inscripción como importador",
			Authority:         "ARCA",
			RequiredDocuments: []string{"Constancia de CUIT"},
			EstimatedDays:     10,
		},
	}
}

func createTemplateCatalog(t *testing.T) *catalog.TemplateCatalog {
	t.Helper()
	c, err := catalog.NewTemplateCatalog(testTemplates())
	require.NoError(t, err)
	return c
}

// memStore is an in-memory Store with failure injection
type memStore struct {
	mu            sync.Mutex
	err           error
	processes     map[uuid.UUID]domain.Process
	budgets       map[uuid.UUID]domain.Budget
	prices        map[uuid.UUID]domain.PriceEntry
	notifications map[uuid.UUID]domain.Notification
	sequences     map[string]int
	saves         int
}

func newMemStore() *memStore {
	return &memStore{
		processes:     make(map[uuid.UUID]domain.Process),
		budgets:       make(map[uuid.UUID]domain.Budget),
		prices:        make(map[uuid.UUID]domain.PriceEntry),
		notifications: make(map[uuid.UUID]domain.Notification),
		sequences:     make(map[string]int),
	}
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memStore) LoadSnapshot(ctx context.Context) (*service.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	snap := &service.Snapshot{}
	for _, e := range m.prices {
		snap.PriceEntries = append(snap.PriceEntries, e)
	}
	for _, b := range m.budgets {
		snap.Budgets = append(snap.Budgets, *b.Clone())
	}
	for _, p := range m.processes {
		snap.Processes = append(snap.Processes, *p.Clone())
	}
	for _, n := range m.notifications {
		snap.Notifications = append(snap.Notifications, n)
	}
	return snap, nil
}

func (m *memStore) SaveProcess(ctx context.Context, process *domain.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.processes[process.ID] = *process.Clone()
	return nil
}

func (m *memStore) SaveBudget(ctx context.Context, budget *domain.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.budgets[budget.ID] = *budget.Clone()
	return nil
}

func (m *memStore) SaveFanOut(ctx context.Context, budget *domain.Budget, processes []*domain.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.budgets[budget.ID] = *budget.Clone()
	for _, p := range processes {
		m.processes[p.ID] = *p.Clone()
	}
	return nil
}

func (m *memStore) SavePriceEntries(ctx context.Context, entries []domain.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	for _, e := range entries {
		m.prices[e.ID] = e
	}
	return nil
}

func (m *memStore) DeletePriceEntry(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.prices, id)
	return nil
}

func (m *memStore) SaveNotifications(ctx context.Context, notifications []domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, n := range notifications {
		m.notifications[n.ID] = n
	}
	return nil
}

func (m *memStore) DeleteNotification(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.notifications, id)
	return nil
}

func (m *memStore) NextSequence(ctx context.Context, prefix string, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	key := prefix + "-" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	m.sequences[key]++
	return m.sequences[key], nil
}

func (m *memStore) processCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processes)
}

func (m *memStore) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// instantChecker passes every document immediately with a fixed confidence
type instantChecker struct {
	confidence float64
	err        error
}

func (c instantChecker) Check(ctx context.Context, doc domain.Document) (float64, error) {
	return c.confidence, c.err
}

func createTrackingService(t *testing.T, store *memStore, opts service.TrackingOptions) *service.TrackingService {
	t.Helper()
	if opts.Checker == nil {
		opts.Checker = instantChecker{confidence: 0.95}
	}
	if opts.ValidationThreshold == 0 {
		opts.ValidationThreshold = 0.8
	}
	svc := service.NewTrackingService(createTemplateCatalog(t), store, opts, zap.NewNop())
	svc.SetClock(fixedClock(testNow))
	require.NoError(t, svc.Load(context.Background()))
	t.Cleanup(func() {
		_ = svc.Close(context.Background())
	})
	return svc
}

// gatedChecker blocks every check until release is closed
type gatedChecker struct {
	release chan struct{}
}

func (c gatedChecker) Check(ctx context.Context, doc domain.Document) (float64, error) {
	select {
	case <-c.release:
		return 0.99, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
