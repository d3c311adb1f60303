package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/http/handler"
	"github.com/tramitia/process-tracker/internal/http/middleware"
	"go.uber.org/zap"

	_ "github.com/tramitia/process-tracker/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health       *handler.HealthHandler
	Template     *handler.TemplateHandler
	Price        *handler.PriceHandler
	Budget       *handler.BudgetHandler
	Process      *handler.ProcessHandler
	Notification *handler.NotificationHandler
}

type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	rateLimiter *middleware.RateLimiter
	handlers    Handlers
}

func NewRouter(cfg *config.Config, logger *zap.Logger, rateLimiter *middleware.RateLimiter, handlers Handlers) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		rateLimiter: rateLimiter,
		handlers:    handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)

	h := rt.handlers

	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Procedure templates
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.Template.List)
			r.Post("/reload", h.Template.Reload)
			r.Get("/{id}", h.Template.Get)
		})
		r.Post("/reconcile", h.Template.Reconcile)

		// Pricing catalog
		r.Route("/prices", func(r chi.Router) {
			r.Get("/", h.Price.List)
			r.Post("/", h.Price.Create)
			r.Get("/categories", h.Price.Categories)
			r.Post("/increase", h.Price.Increase)
			r.Get("/{id}", h.Price.Get)
			r.Patch("/{id}", h.Price.Update)
			r.Delete("/{id}", h.Price.Delete)
		})

		// Budgets
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.Budget.List)
			r.Post("/", h.Budget.Create)
			r.Get("/{id}", h.Budget.Get)
			r.Post("/{id}/send", h.Budget.Send)
			r.Post("/{id}/approve", h.Budget.Approve)
			r.Post("/{id}/reject", h.Budget.Reject)
			r.Post("/{id}/expire", h.Budget.Expire)
			r.Post("/{id}/processes", h.Budget.GenerateProcesses)
		})

		// Processes and their documents
		r.Route("/processes", func(r chi.Router) {
			r.Get("/", h.Process.List)
			r.Post("/", h.Process.Create)
			r.Get("/status-counts", h.Process.StatusCounts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Process.Get)
				r.Patch("/", h.Process.Update)
				r.Get("/transitions", h.Process.Transitions)
				r.Post("/transitions", h.Process.Transition)
				r.Post("/billed", h.Process.MarkBilled)
				r.Route("/documents/{documentId}", func(r chi.Router) {
					r.Put("/status", h.Process.SetDocumentStatus)
					r.Post("/file", h.Process.Upload)
					r.Get("/file", h.Process.Download)
					r.Post("/validations", h.Process.StartValidation)
					r.Get("/validations", h.Process.ListValidations)
				})
			})
		})

		// Document validation tasks
		r.Route("/validations/{validationId}", func(r chi.Router) {
			r.Get("/", h.Process.GetValidation)
			r.Post("/cancel", h.Process.CancelValidation)
			r.Post("/retry", h.Process.RetryValidation)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notification.List)
			r.Get("/count", h.Notification.GetUnreadCount)
			r.Post("/system", h.Notification.CreateSystem)
			r.Put("/read-all", h.Notification.MarkAllAsRead)
			r.Put("/{id}/read", h.Notification.MarkAsRead)
			r.Delete("/{id}", h.Notification.Delete)
		})
	})

	return r
}
