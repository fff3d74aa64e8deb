package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/service"
)

type orderLineRequest struct {
	ItemID   int64 `json:"itemId" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	StudentRollNumber string             `json:"studentRollNumber" validate:"required"`
	Items             []orderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemResponse struct {
	ItemID     int64   `json:"itemId"`
	ItemName   string  `json:"itemName"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

type orderResponse struct {
	BatchID           string              `json:"batchId"`
	StudentRollNumber string              `json:"studentRollNumber"`
	StudentName       string              `json:"studentName"`
	Hall              string              `json:"hall"`
	Items             []orderItemResponse `json:"items"`
	TotalAmount       float64             `json:"totalAmount"`
	BalanceAfterOrder float64             `json:"balanceAfterOrder"`
	Status            string              `json:"status"`
	Notes             string              `json:"notes,omitempty"`
	OrderDay          string              `json:"orderDay"`
	OrderTime         string              `json:"orderTime"`
	IsDisputed        bool                `json:"isDisputed"`
	DisputeReason     string              `json:"disputeReason,omitempty"`
	DisputedAt        string              `json:"disputedAt,omitempty"`
	ResolvedBy        string              `json:"resolvedBy,omitempty"`
	ResolvedAt        string              `json:"resolvedAt,omitempty"`
	CompletedAt       string              `json:"completedAt,omitempty"`
	CreatedAt         string              `json:"createdAt"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ItemID:     it.ItemID,
			ItemName:   it.ItemName,
			Quantity:   it.Quantity,
			UnitPrice:  service.ToRupees(it.UnitPriceCents),
			TotalPrice: service.ToRupees(it.TotalPriceCents),
		})
	}

	return orderResponse{
		BatchID:           o.BatchID,
		StudentRollNumber: o.StudentRollNumber,
		StudentName:       o.StudentName,
		Hall:              o.Hall,
		Items:             items,
		TotalAmount:       service.ToRupees(o.TotalAmountCents),
		BalanceAfterOrder: service.ToRupees(o.BalanceAfterCents),
		Status:            string(o.Status),
		Notes:             o.Notes,
		OrderDay:          o.OrderDay,
		OrderTime:         o.OrderTime,
		IsDisputed:        o.IsDisputed,
		DisputeReason:     o.DisputeReason,
		DisputedAt:        formatTime(o.DisputedAt),
		ResolvedBy:        o.ResolvedBy,
		ResolvedAt:        formatTime(o.ResolvedAt),
		CompletedAt:       formatTime(o.CompletedAt),
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder создаёт заказ по корзине и списывает его сумму со счёта студента.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.OrderLine{ItemID: it.ItemID, Quantity: it.Quantity})
	}

	order, err := h.service.CreateOrder(r.Context(), caller.Hall, req.StudentRollNumber, lines)
	if err != nil {
		h.writeError(w, err, "create order error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders возвращает заказы холла вызывающего менеджера.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset := paginate(r, 50)
	orders, err := h.service.ListOrders(r.Context(), caller.Hall, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, err, "get orders error")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ по партийному идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), caller.Hall, chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeError(w, err, "get order error")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrdersByStudent возвращает заказы одного студента холла.
func (h *Handler) GetOrdersByStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset := paginate(r, 20)
	orders, err := h.service.ListOrdersByStudent(r.Context(), caller.Hall, chi.URLParam(r, "rollNumber"), limit, offset)
	if err != nil {
		h.writeError(w, err, "get orders by student error")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

// UpdateOrderStatus продвигает заказ по этапам выполнения.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), caller.Hall, chi.URLParam(r, "batchID"), req.Status, req.Notes)
	if err != nil {
		h.writeError(w, err, "update order status error")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type cancelOrderResponse struct {
	RefundAmount float64       `json:"refundAmount"`
	Order        orderResponse `json:"order"`
}

// CancelOrder отменяет заказ и возвращает его сумму на счёт студента.
// Доступно только менеджеру холла: отмена перемещает деньги.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.requireManager(w, caller) {
		return
	}

	var req cancelOrderRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
	}

	order, err := h.service.CancelOrder(r.Context(), caller.Hall, chi.URLParam(r, "batchID"), req.Reason)
	if err != nil {
		h.writeError(w, err, "cancel order error")
		return
	}

	h.writeJSON(w, http.StatusOK, cancelOrderResponse{
		RefundAmount: service.ToRupees(order.TotalAmountCents),
		Order:        toOrderResponse(order),
	})
}

type orderStatResponse struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// GetOrderStats возвращает сводку заказов холла по статусам.
func (h *Handler) GetOrderStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetOrderStats(r.Context(), caller.Hall)
	if err != nil {
		h.writeError(w, err, "get order stats error")
		return
	}

	resp := make([]orderStatResponse, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, orderStatResponse{
			Status:      string(st.Status),
			Count:       st.Count,
			TotalAmount: service.ToRupees(st.TotalAmountCents),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
