// Package handler содержит HTTP-обработчики API сервиса столовой.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/messhall-system/internal/middleware"
	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/repository"
	"github.com/mmeshcher/messhall-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetStudent(ctx context.Context, hall, rollNumber string) (*model.Student, error)
	ListStudents(ctx context.Context, hall, query string) ([]model.Student, error)
	DeactivateStudent(ctx context.Context, hall, rollNumber string) error
	ListAvailableItems(ctx context.Context, hall string) ([]model.Item, error)

	CreateOrder(ctx context.Context, hall, studentRoll string, lines []service.OrderLine) (*model.Order, error)
	GetOrder(ctx context.Context, hall, batchID string) (*model.Order, error)
	ListOrders(ctx context.Context, hall, status string, limit, offset int) ([]model.Order, error)
	ListOrdersByStudent(ctx context.Context, hall, studentRoll string, limit, offset int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, hall, batchID, status, notes string) (*model.Order, error)
	CancelOrder(ctx context.Context, hall, batchID, reason string) (*model.Order, error)
	GetOrderStats(ctx context.Context, hall string) ([]repository.OrderStatusStat, error)

	CreateComplaint(ctx context.Context, hall, callerToken string, in service.CreateComplaintInput) (*model.Complaint, error)
	GetComplaint(ctx context.Context, hall, complaintID string) (*model.Complaint, error)
	ListComplaints(ctx context.Context, hall, status, priority string, limit, offset int) ([]model.Complaint, error)
	ApproveComplaint(ctx context.Context, hall, reviewer, complaintID string, refundAmount *float64, notes string) (*model.Complaint, error)
	RejectComplaint(ctx context.Context, hall, reviewer, complaintID, notes string) (*model.Complaint, error)
	EscalateComplaint(ctx context.Context, hall, complaintID, escalatedTo string) (*model.Complaint, error)
	GetComplaintStats(ctx context.Context, hall string) (*repository.ComplaintStats, error)
}

// Handler реализует HTTP-обработчики API сервиса столовой.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(),
	}
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (middleware.Caller, bool) {
	caller, ok := middleware.GetCallerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return caller, ok
}

const roleManager = "manager"

// requireManager пропускает только возможности с ролью manager. Работники
// столовой оформляют заказы и подают жалобы, но возврат денег, вердикты по
// жалобам и управление справочником остаются за менеджером холла.
func (h *Handler) requireManager(w http.ResponseWriter, caller middleware.Caller) bool {
	if caller.Role != roleManager {
		http.Error(w, "manager role required", http.StatusForbidden)
		return false
	}
	return true
}

// decodeAndValidate разбирает JSON-тело запроса и проверяет его по тегам validate.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError переводит ошибки доменного слоя в HTTP-статусы: ошибки валидации
// и полномочий — ошибки вызывающего без повтора, конфликт состояния — 409,
// и только сбой целостности хранилища отвечает 500 и допускает повтор.
func (h *Handler) writeError(w http.ResponseWriter, err error, logContext string) {
	var capErr *repository.QuantityCapError

	switch {
	case errors.Is(err, repository.ErrStudentNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrComplaintNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, repository.ErrForeignHall),
		errors.Is(err, service.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, repository.ErrComplaintExists),
		errors.Is(err, repository.ErrComplaintProcessed),
		errors.Is(err, repository.ErrOrderTerminal),
		errors.Is(err, repository.ErrOrderDisputed):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.As(err, &capErr),
		errors.Is(err, repository.ErrItemUnavailable),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidComplaintType),
		errors.Is(err, service.ErrNegativeAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)

	default:
		h.logger.Error(logContext, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func paginate(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}

	return limit, (page - 1) * limit
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
