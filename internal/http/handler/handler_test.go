package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/catalog"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/database"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/http/handler"
	"github.com/tramitia/process-tracker/internal/http/middleware"
	"github.com/tramitia/process-tracker/internal/http/router"
	"github.com/tramitia/process-tracker/internal/repository"
	"github.com/tramitia/process-tracker/internal/service"
	"github.com/tramitia/process-tracker/internal/storage"
	"github.com/tramitia/process-tracker/internal/testutil"
	"go.uber.org/zap"
)

const (
	exportTemplate   = "senasa-export-certificate"
	importerTemplate = "arca-importer-registration"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zap.NewNop()

	db := testutil.SetupTestDB(t)

	templates, err := catalog.LoadDefaultTemplates()
	require.NoError(t, err)

	fallback := decimal.NewFromInt(1000)
	svc := service.NewTrackingService(templates, repository.NewStore(db, log), service.TrackingOptions{
		FallbackPrice:       &fallback,
		StaleAfter:          180 * 24 * time.Hour,
		Checker:             service.DelayChecker{Delay: 10 * time.Millisecond, Confidence: 0.9},
		ValidationThreshold: 0.8,
	}, log)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc.SetStorage(files)
	require.NoError(t, svc.Load(context.Background()))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	cfg := &config.Config{App: config.AppConfig{Environment: "test"}}
	rt := router.NewRouter(cfg, log, middleware.NewRateLimiter(&cfg.RateLimit, log), router.Handlers{
		Health:       handler.NewHealthHandler(func(ctx context.Context) error { return database.HealthCheck(ctx, db) }, log),
		Template:     handler.NewTemplateHandler(svc, catalog.LoadDefaultTemplates, log),
		Price:        handler.NewPriceHandler(svc, log),
		Budget:       handler.NewBudgetHandler(svc, log),
		Process:      handler.NewProcessHandler(svc, 1, log),
		Notification: handler.NewNotificationHandler(svc, log),
	})
	return &testAPI{t: t, handler: rt.Setup()}
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) upload(path, filename string, content []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (a *testAPI) createProcess(templateID string) domain.ProcessDTO {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/processes", domain.GenerateProcessRequest{TemplateID: templateID, ClientID: "client-1"})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[domain.ProcessDTO](a.t, rr)
}

func TestHealth(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decodeBody[domain.HealthDTO](t, rr).Database)
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestTemplateHandler(t *testing.T) {
	api := setupTestAPI(t)

	t.Run("list by authority", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/templates?authority=senasa", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		list := decodeBody[[]domain.TemplateDTO](t, rr)
		require.NotEmpty(t, list)
		for _, tpl := range list {
			assert.Equal(t, "SENASA", tpl.Authority)
		}
	})

	t.Run("quote uses base cost then fallback", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/templates/"+exportTemplate, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		quote := decodeBody[domain.TemplateQuoteDTO](t, rr)
		assert.True(t, quote.Price.Equal(decimal.NewFromInt(85000)))
		assert.Equal(t, service.PriceSourceBaseCost, quote.PriceSource)

		rr = api.do(http.MethodGet, "/templates/"+importerTemplate, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		quote = decodeBody[domain.TemplateQuoteDTO](t, rr)
		assert.True(t, quote.Price.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, service.PriceSourceFallback, quote.PriceSource)
	})

	t.Run("unknown template", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/templates/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, domain.ErrorTypeNotFound, decodeBody[domain.APIError](t, rr).Type)
	})

	t.Run("reconcile does not repeat open gaps", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/reconcile", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		report := decodeBody[domain.ReconcileReportDTO](t, rr)
		assert.Positive(t, report.TemplatesChecked)
		assert.Empty(t, report.Notifications)
	})
}

func TestPriceHandler(t *testing.T) {
	api := setupTestAPI(t)

	rr := api.do(http.MethodPost, "/prices", map[string]interface{}{
		"serviceName": "Inscripción en Registro de Importadores y Exportadores",
		"price":       "50000",
		"category":    "Comercio exterior",
		"authority":   "ARCA",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[domain.PriceEntryDTO](t, rr)
	assert.True(t, created.Active)

	t.Run("price list wins over fallback", func(t *testing.T) {
		quote := decodeBody[domain.TemplateQuoteDTO](t, api.do(http.MethodGet, "/templates/"+importerTemplate, nil))
		assert.True(t, quote.Price.Equal(decimal.NewFromInt(50000)))
		assert.Equal(t, service.PriceSourceList, quote.PriceSource)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/prices", map[string]interface{}{"price": "10"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		apiErr := decodeBody[domain.APIError](t, rr)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "serviceName")
		assert.Contains(t, apiErr.Errors, "category")
	})

	t.Run("patch changes only given fields", func(t *testing.T) {
		rr := api.do(http.MethodPatch, "/prices/"+created.ID.String(), map[string]interface{}{"price": "55000"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		updated := decodeBody[domain.PriceEntryDTO](t, rr)
		assert.True(t, updated.Price.Equal(decimal.NewFromInt(55000)))
		assert.Equal(t, "Comercio exterior", updated.Category)
	})

	t.Run("increase rounds to whole units", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/prices/increase", map[string]interface{}{"percent": "10", "category": "Comercio exterior"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		changed := decodeBody[[]domain.PriceEntryDTO](t, rr)
		require.Len(t, changed, 1)
		assert.True(t, changed[0].Price.Equal(decimal.NewFromInt(60500)))
	})

	t.Run("categories", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/prices/categories", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"Comercio exterior"}, decodeBody[[]string](t, rr))
	})

	t.Run("delete then not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/prices/"+created.ID.String(), nil).Code)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/prices/"+created.ID.String(), nil).Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/prices/not-a-uuid", nil).Code)
	})
}

func TestBudgetHandler_ApproveFlow(t *testing.T) {
	api := setupTestAPI(t)

	rr := api.do(http.MethodPost, "/budgets", domain.CreateBudgetRequest{
		ClientID:    "client-7",
		TemplateIDs: []string{exportTemplate, importerTemplate},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	budget := decodeBody[domain.BudgetDTO](t, rr)

	assert.Regexp(t, `^PRES-\d{4}-001$`, budget.Number)
	assert.Equal(t, domain.BudgetStatusDraft, budget.Status)
	assert.True(t, budget.Subtotal.Equal(decimal.NewFromInt(86000)))
	assert.True(t, budget.Tax.Equal(decimal.NewFromInt(18060)))
	assert.True(t, budget.Total.Equal(decimal.NewFromInt(104060)))

	rr = api.do(http.MethodPost, "/budgets/"+budget.ID.String()+"/send", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, decodeBody[domain.BudgetDTO](t, rr).SentAt)

	rr = api.do(http.MethodPost, "/budgets/"+budget.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	approval := decodeBody[domain.BudgetApprovalDTO](t, rr)
	assert.Equal(t, domain.BudgetStatusApproved, approval.Budget.Status)
	require.Len(t, approval.Processes, 2)
	assert.Len(t, approval.Budget.ProcessIDs, 2)
	for _, p := range approval.Processes {
		require.NotNil(t, p.BudgetID)
		assert.Equal(t, budget.ID, *p.BudgetID)
		assert.Equal(t, "client-7", p.ClientID)
	}

	t.Run("processes are listed by budget", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/processes?budgetId="+budget.ID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.EqualValues(t, 2, decodeBody[domain.PaginatedResponse](t, rr).Total)
	})

	t.Run("generating twice conflicts", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/budgets/"+budget.ID.String()+"/processes", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("approved budget cannot be rejected", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/budgets/"+budget.ID.String()+"/reject", nil)
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, domain.ErrorTypeInvalidTransition, decodeBody[domain.APIError](t, rr).Type)
	})

	t.Run("unknown template is a validation error", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/budgets", domain.CreateBudgetRequest{ClientID: "c", TemplateIDs: []string{"nope"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/budgets?status=lost", nil).Code)
	})
}

func TestProcessHandler_Lifecycle(t *testing.T) {
	api := setupTestAPI(t)
	p := api.createProcess(exportTemplate)
	base := "/processes/" + p.ID.String()

	assert.Equal(t, domain.ProcessStatusPending, p.Status)
	require.NotEmpty(t, p.Documents)

	rr := api.do(http.MethodGet, base+"/transitions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []domain.ProcessStatus{domain.ProcessStatusCollectingDocs}, decodeBody[domain.ProcessTransitionsDTO](t, rr).Allowed)

	rr = api.do(http.MethodPost, base+"/transitions", domain.TransitionProcessRequest{Status: string(domain.ProcessStatusCollectingDocs)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	t.Run("sending without documents conflicts", func(t *testing.T) {
		rr := api.do(http.MethodPost, base+"/transitions", domain.TransitionProcessRequest{Status: string(domain.ProcessStatusSent)})
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, domain.ErrorTypeInvalidTransition, decodeBody[domain.APIError](t, rr).Type)
	})

	t.Run("skipping states conflicts", func(t *testing.T) {
		rr := api.do(http.MethodPost, base+"/transitions", domain.TransitionProcessRequest{Status: string(domain.ProcessStatusApproved)})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	for _, d := range p.Documents {
		rr := api.upload(base+"/documents/"+d.ID.String()+"/file", "scan.pdf", []byte("%PDF-1.4"))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = api.do(http.MethodPost, base+"/transitions", domain.TransitionProcessRequest{Status: string(domain.ProcessStatusSent)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sent := decodeBody[domain.ProcessDTO](t, rr)
	assert.Equal(t, domain.ProcessStatusSent, sent.Status)
	assert.Zero(t, sent.Progress, "progress counts approved documents only")

	t.Run("status counts", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/processes/status-counts", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		for _, c := range decodeBody[[]domain.StatusCountDTO](t, rr) {
			if c.Status == domain.ProcessStatusSent {
				assert.Equal(t, 1, c.Count)
			}
		}
	})

	t.Run("update details", func(t *testing.T) {
		rr := api.do(http.MethodPatch, base, map[string]interface{}{"priority": "urgent", "tags": []string{"exportación"}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		updated := decodeBody[domain.ProcessDTO](t, rr)
		assert.Equal(t, domain.ProcessPriority("urgent"), updated.Priority)
		assert.Equal(t, []string{"exportación"}, updated.Tags)
	})

	t.Run("invalid priority", func(t *testing.T) {
		rr := api.do(http.MethodPatch, base, map[string]interface{}{"priority": "whenever"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown process", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/processes/"+uuid.NewString(), nil).Code)
	})
}

func TestProcessHandler_Documents(t *testing.T) {
	api := setupTestAPI(t)
	p := api.createProcess(exportTemplate)
	doc := p.Documents[0]
	docPath := "/processes/" + p.ID.String() + "/documents/" + doc.ID.String()

	t.Run("download before upload", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, docPath+"/file", nil).Code)
	})

	t.Run("rejects unsupported file types", func(t *testing.T) {
		rr := api.upload(docPath+"/file", "payload.exe", []byte("MZ"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		rr := api.upload(docPath+"/file", "big.pdf", bytes.Repeat([]byte("a"), 2*1024*1024))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	rr := api.upload(docPath+"/file", "factura.pdf", []byte("%PDF-1.4 factura"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	uploaded := decodeBody[domain.ProcessDTO](t, rr)
	assert.Equal(t, domain.DocumentStatusLoaded, uploaded.Documents[0].Status)
	assert.True(t, uploaded.Documents[0].HasFile)

	t.Run("download streams the file", func(t *testing.T) {
		rr := api.do(http.MethodGet, docPath+"/file", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "%PDF-1.4 factura", rr.Body.String())
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	})

	t.Run("review status", func(t *testing.T) {
		rr := api.do(http.MethodPut, docPath+"/status", domain.UpdateDocumentStatusRequest{Status: "approved"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, domain.DocumentStatusApproved, decodeBody[domain.ProcessDTO](t, rr).Documents[0].Status)

		rr = api.do(http.MethodPut, docPath+"/status", domain.UpdateDocumentStatusRequest{Status: "unknown"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("validation runs in the background", func(t *testing.T) {
		rr := api.do(http.MethodPut, docPath+"/status", domain.UpdateDocumentStatusRequest{Status: "loaded"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = api.do(http.MethodPost, docPath+"/validations", nil)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		task := decodeBody[domain.ValidationTaskDTO](t, rr)

		require.Eventually(t, func() bool {
			rr := api.do(http.MethodGet, "/validations/"+task.ID.String(), nil)
			return rr.Code == http.StatusOK && decodeBody[domain.ValidationTaskDTO](t, rr).Status == string(service.ValidationTaskCompleted)
		}, 2*time.Second, 10*time.Millisecond)

		rr = api.do(http.MethodGet, docPath+"/validations", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		tasks := decodeBody[[]domain.ValidationTaskDTO](t, rr)
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].Passed)
	})

	t.Run("unknown validation task", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/validations/"+uuid.NewString(), nil).Code)
	})
}

func TestNotificationHandler(t *testing.T) {
	api := setupTestAPI(t)

	rr := api.do(http.MethodGet, "/notifications/count", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	unread := decodeBody[domain.UnreadCountDTO](t, rr).Count
	require.Positive(t, unread, "templates without a price list entry raise missing price notifications")

	rr = api.do(http.MethodGet, "/notifications?kind=missing_price&pageSize=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody[struct {
		Data  []domain.NotificationDTO `json:"data"`
		Total int64                    `json:"total"`
	}](t, rr)
	require.Len(t, page.Data, 1)
	first := page.Data[0]
	assert.Equal(t, domain.NotificationKindMissingPrice, first.Kind)

	t.Run("mark one read", func(t *testing.T) {
		rr := api.do(http.MethodPut, "/notifications/"+first.ID.String()+"/read", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, decodeBody[domain.NotificationDTO](t, rr).Read)

		count := decodeBody[domain.UnreadCountDTO](t, api.do(http.MethodGet, "/notifications/count", nil)).Count
		assert.Equal(t, unread-1, count)
	})

	t.Run("mark all read", func(t *testing.T) {
		rr := api.do(http.MethodPut, "/notifications/read-all", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, unread-1, decodeBody[domain.MarkAllReadDTO](t, rr).Updated)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/notifications/"+first.ID.String(), nil).Code)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/notifications/"+first.ID.String(), nil).Code)
	})

	t.Run("invalid kind", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/notifications?kind=email", nil).Code)
	})

	t.Run("post system notification", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/notifications/system", map[string]string{
			"title":      "Maintenance window",
			"message":    "Document uploads paused at 22:00",
			"entityType": "system",
		})
		require.Equal(t, http.StatusCreated, rr.Code)
		created := decodeBody[domain.NotificationDTO](t, rr)
		assert.Equal(t, domain.NotificationKindSystem, created.Kind)
		assert.False(t, created.Read)

		rr = api.do(http.MethodGet, "/notifications?kind=system&unreadOnly=true", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		listed := decodeBody[struct {
			Data []domain.NotificationDTO `json:"data"`
		}](t, rr)
		require.NotEmpty(t, listed.Data)
		assert.Equal(t, created.ID, listed.Data[0].ID)

		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/notifications/system", map[string]string{"message": "no title"}).Code)
	})
}
