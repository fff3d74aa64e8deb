package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/service"
)

type studentResponse struct {
	RollNumber  string  `json:"rollNumber"`
	Name        string  `json:"name"`
	RoomNumber  string  `json:"roomNumber"`
	PhoneNumber string  `json:"phoneNumber"`
	Hall        string  `json:"hall"`
	Year        int     `json:"year"`
	Balance     float64 `json:"balance"`
	TotalOrders int     `json:"totalOrders"`
	TotalSpent  float64 `json:"totalSpent"`
	IsActive    bool    `json:"isActive"`
}

func toStudentResponse(s *model.Student) studentResponse {
	return studentResponse{
		RollNumber:  s.RollNumber,
		Name:        s.Name,
		RoomNumber:  s.RoomNumber,
		PhoneNumber: s.PhoneNumber,
		Hall:        s.Hall,
		Year:        s.Year,
		Balance:     service.ToRupees(s.BalanceCents),
		TotalOrders: s.TotalOrders,
		TotalSpent:  service.ToRupees(s.TotalSpentCents),
		IsActive:    s.IsActive,
	}
}

// GetStudents возвращает активных студентов холла с необязательным поиском по q.
func (h *Handler) GetStudents(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	students, err := h.service.ListStudents(r.Context(), caller.Hall, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err, "get students error")
		return
	}

	if len(students) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]studentResponse, 0, len(students))
	for i := range students {
		resp = append(resp, toStudentResponse(&students[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetStudent возвращает студента холла по номеру зачётной книжки.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(r.Context(), caller.Hall, chi.URLParam(r, "rollNumber"))
	if err != nil {
		h.writeError(w, err, "get student error")
		return
	}

	h.writeJSON(w, http.StatusOK, toStudentResponse(student))
}

// DeactivateStudent помечает студента неактивным, сохраняя историю его заказов.
// Доступно только менеджеру холла.
func (h *Handler) DeactivateStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.requireManager(w, caller) {
		return
	}

	if err := h.service.DeactivateStudent(r.Context(), caller.Hall, chi.URLParam(r, "rollNumber")); err != nil {
		h.writeError(w, err, "deactivate student error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type itemResponse struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	Category            string  `json:"category"`
	Price               float64 `json:"price"`
	IsAvailable         bool    `json:"isAvailable"`
	MaxQuantityPerOrder int     `json:"maxQuantityPerOrder"`
	TotalOrdered        int64   `json:"totalOrdered"`
}

// GetItems возвращает доступные позиции каталога холла.
func (h *Handler) GetItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListAvailableItems(r.Context(), caller.Hall)
	if err != nil {
		h.writeError(w, err, "get items error")
		return
	}

	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, itemResponse{
			ID:                  it.ID,
			Name:                it.Name,
			Category:            it.Category,
			Price:               service.ToRupees(it.PriceCents),
			IsAvailable:         it.IsAvailable,
			MaxQuantityPerOrder: it.MaxQuantityPerOrder,
			TotalOrdered:        it.TotalOrdered,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
