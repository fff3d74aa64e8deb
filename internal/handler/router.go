package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/messhall-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса столовой.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.GetStudents)
			r.Get("/{rollNumber}", h.GetStudent)
			r.Delete("/{rollNumber}", h.DeactivateStudent)
		})

		r.Get("/items", h.GetItems)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.GetOrders)
			r.Get("/stats", h.GetOrderStats)
			r.Get("/student/{rollNumber}", h.GetOrdersByStudent)
			r.Get("/{batchID}", h.GetOrder)
			r.Put("/{batchID}/status", h.UpdateOrderStatus)
			r.Delete("/{batchID}", h.CancelOrder)
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Post("/", h.CreateComplaint)
			r.Get("/", h.GetComplaints)
			r.Get("/stats", h.GetComplaintStats)
			r.Get("/{complaintID}", h.GetComplaint)
			r.Put("/{complaintID}/status", h.AdjudicateComplaint)
			r.Post("/{complaintID}/escalate", h.EscalateComplaint)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
