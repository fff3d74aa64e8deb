// Package service реализует бизнес-логику сервиса столовой.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/repository"
	"github.com/mmeshcher/messhall-system/internal/roster"
)

// ErrInvalidToken возвращается при несовпадении токена жалобы с токеном менеджера.
var (
	ErrInvalidToken = errors.New("invalid complaint token")
	// ErrEmptyCart возвращается при попытке создать заказ без единой строки.
	ErrEmptyCart = errors.New("order must contain at least one item")
	// ErrInvalidQuantity возвращается для строки заказа с количеством меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidStatus возвращается для неизвестного или недопустимого статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidComplaintType возвращается для неизвестной категории жалобы.
	ErrInvalidComplaintType = errors.New("invalid complaint type")
	// ErrNegativeAmount возвращается для отрицательной денежной суммы.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetStudentByRoll(ctx context.Context, rollNumber string) (*model.Student, error)
	ListStudents(ctx context.Context, hall, query string) ([]model.Student, error)
	DeactivateStudent(ctx context.Context, rollNumber, hall string) error
	UpsertRosterStudent(ctx context.Context, s model.Student) (bool, error)

	GetItemByID(ctx context.Context, id int64) (*model.Item, error)
	ListAvailableItems(ctx context.Context, hall string) ([]model.Item, error)

	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByBatchID(ctx context.Context, batchID string) (*model.Order, error)
	ListOrders(ctx context.Context, hall string, status model.OrderStatus, limit, offset int) ([]model.Order, error)
	ListOrdersByStudent(ctx context.Context, studentID int64, limit, offset int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, batchID, hall string, status model.OrderStatus, notes string) (*model.Order, error)
	CancelOrder(ctx context.Context, batchID, hall, reason string) (*model.Order, error)
	GetOrderStats(ctx context.Context, hall string) ([]repository.OrderStatusStat, error)

	CreateComplaint(ctx context.Context, c *model.Complaint) error
	GetComplaintByID(ctx context.Context, complaintID string) (*model.Complaint, error)
	ListComplaints(ctx context.Context, hall string, status model.ComplaintStatus, priority model.ComplaintPriority, limit, offset int) ([]model.Complaint, error)
	ApproveComplaint(ctx context.Context, complaintID, hall, reviewer string, refundCents *int64, notes string) (*model.Complaint, error)
	RejectComplaint(ctx context.Context, complaintID, hall, reviewer, notes string) (*model.Complaint, error)
	EscalateComplaint(ctx context.Context, complaintID, hall, escalatedTo string) (*model.Complaint, error)
	GetComplaintStats(ctx context.Context, hall string) (*repository.ComplaintStats, error)
}

// RosterClient описывает контракт клиента реестра студентов института.
type RosterClient interface {
	FetchRoster(ctx context.Context) ([]roster.Record, int, error)
}

// Service содержит бизнес-логику сервиса столовой.
type Service struct {
	repo         Repository
	rosterClient RosterClient
	logger       *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом реестра.
func NewService(repo Repository, rosterClient RosterClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		rosterClient: rosterClient,
		logger:       logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ToCents переводит сумму в рупиях в целые пайсы с округлением до двух знаков.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ToRupees переводит сумму из пайсов в рупии для внешнего представления.
func ToRupees(cents int64) float64 {
	return float64(cents) / 100
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// generateBatchID формирует партийный идентификатор заказа: метка времени в
// base36 плюс случайный суффикс. Глобальная уникальность закреплена
// ограничением в БД, вероятность коллизии пренебрежимо мала.
func generateBatchID(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper(fmt.Sprintf("BATCH_%s_%s", ts, randomSuffix(5)))
}

func generateComplaintID(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper(fmt.Sprintf("COMP_%s_%s", ts, randomSuffix(4)))
}

// orderDayTime возвращает человекочитаемые снимки дня недели и времени заказа.
func orderDayTime(now time.Time) (string, string) {
	return now.Weekday().String(), now.Format("03:04 PM")
}
