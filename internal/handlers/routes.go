package handlers

import (
	"context"
	"net/http"

	"github.com/alextreichler/coursehub/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Catalog *service.CatalogService
	Orders  *service.OrderService
	Summary *service.SummaryService
	Store   Pinger
}

type RouterOptions struct {
	AllowedOrigins []string
	OrderLimiter   RateLimiter
}

// NewRouter wires the JSON API. Chain: Logger -> Security Headers -> CORS -> Mux
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	courseHandler := &CourseHandler{Catalog: svc.Catalog}
	orderHandler := &OrderHandler{Orders: svc.Orders}
	adminHandler := &AdminHandler{Summary: svc.Summary, Orders: svc.Orders}
	healthHandler := &HealthHandler{Store: svc.Store}

	submitOrder := orderHandler.SubmitOrder
	if opts.OrderLimiter != nil {
		submitOrder = RateLimit(opts.OrderLimiter, "order", submitOrder)
	}

	mux := http.NewServeMux()

	// Catalog
	mux.HandleFunc("GET /api/courses", courseHandler.ListCourses)
	mux.HandleFunc("POST /api/courses", courseHandler.CreateCourse)
	mux.HandleFunc("GET /api/courses/{id}", courseHandler.GetCourse)
	mux.HandleFunc("PATCH /api/courses/{id}", courseHandler.UpdateCourse)
	mux.HandleFunc("DELETE /api/courses/{id}", courseHandler.DeleteCourse)
	mux.HandleFunc("GET /api/courses/{id}/lessons", courseHandler.ListLessons)
	mux.HandleFunc("POST /api/courses/{id}/lessons", courseHandler.AddLesson)

	// Orders
	mux.HandleFunc("POST /api/orders", submitOrder)
	mux.HandleFunc("GET /api/orders/{id}", orderHandler.ViewOrder)

	// Admin
	mux.HandleFunc("GET /api/admin/summary", adminHandler.Dashboard)
	mux.HandleFunc("GET /api/admin/orders", adminHandler.ListOrders)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)

	return LoggingMiddleware(
		SecurityHeadersMiddleware(
			CORSMiddleware(opts.AllowedOrigins)(mux),
		),
	)
}
