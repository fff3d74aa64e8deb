package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/repository"
)

// OrderLine описывает одну строку корзины: ссылку на позицию и количество.
type OrderLine struct {
	ItemID   int64
	Quantity int
}

// CreateOrder превращает корзину в заказ со снимками цен и списывает его сумму
// с лицевого счёта студента. Все проверки выполняются до каких-либо изменений:
// отклонённый заказ не оставляет частичных эффектов. Недостаток средств заказ
// не блокирует — баланс может уходить в минус, это выдача кредита.
func (s *Service) CreateOrder(ctx context.Context, hall, studentRoll string, lines []OrderLine) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	student, err := s.repo.GetStudentByRoll(ctx, studentRoll)
	if err != nil {
		return nil, err
	}
	if student.Hall != hall {
		return nil, repository.ErrForeignHall
	}

	var totalCents int64
	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}

		item, err := s.repo.GetItemByID(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item.Hall != hall {
			return nil, fmt.Errorf("%w: %s", repository.ErrForeignHall, item.Name)
		}
		if !item.IsAvailable {
			return nil, fmt.Errorf("%w: %s", repository.ErrItemUnavailable, item.Name)
		}
		if line.Quantity > item.MaxQuantityPerOrder {
			return nil, &repository.QuantityCapError{ItemName: item.Name, Max: item.MaxQuantityPerOrder}
		}

		lineTotal := item.PriceCents * int64(line.Quantity)
		totalCents += lineTotal

		items = append(items, model.OrderItem{
			ItemID:          item.ID,
			ItemName:        item.Name,
			Quantity:        line.Quantity,
			UnitPriceCents:  item.PriceCents,
			TotalPriceCents: lineTotal,
		})
	}

	now := time.Now()
	day, clock := orderDayTime(now)

	order := &model.Order{
		BatchID:           generateBatchID(now),
		StudentID:         student.ID,
		StudentRollNumber: student.RollNumber,
		StudentName:       student.Name,
		Hall:              hall,
		Items:             items,
		TotalAmountCents:  totalCents,
		Status:            model.OrderStatusConfirmed,
		OrderDay:          day,
		OrderTime:         clock,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder возвращает заказ холла по партийному идентификатору.
func (s *Service) GetOrder(ctx context.Context, hall, batchID string) (*model.Order, error) {
	order, err := s.repo.GetOrderByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if order.Hall != hall {
		return nil, repository.ErrForeignHall
	}
	return order, nil
}

// ListOrders возвращает страницу заказов холла с необязательным фильтром по статусу.
func (s *Service) ListOrders(ctx context.Context, hall, status string, limit, offset int) ([]model.Order, error) {
	orderStatus := model.OrderStatus(status)
	if status != "" && !orderStatus.IsValid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, hall, orderStatus, limit, offset)
}

// ListOrdersByStudent возвращает заказы студента из холла вызывающего менеджера.
func (s *Service) ListOrdersByStudent(ctx context.Context, hall, studentRoll string, limit, offset int) ([]model.Order, error) {
	student, err := s.repo.GetStudentByRoll(ctx, studentRoll)
	if err != nil {
		return nil, err
	}
	if student.Hall != hall {
		return nil, repository.ErrForeignHall
	}
	return s.repo.ListOrdersByStudent(ctx, student.ID, limit, offset)
}

// fulfillmentStatuses перечисляет статусы, устанавливаемые вручную менеджером.
// Статусы cancelled и disputed сюда не входят: они меняются только операциями,
// которые перемещают деньги или фиксируют спор.
var fulfillmentStatuses = map[model.OrderStatus]bool{
	model.OrderStatusPending:   true,
	model.OrderStatusConfirmed: true,
	model.OrderStatusPreparing: true,
	model.OrderStatusReady:     true,
	model.OrderStatusCompleted: true,
}

// UpdateOrderStatus продвигает заказ по этапам выполнения без денежных эффектов.
func (s *Service) UpdateOrderStatus(ctx context.Context, hall, batchID, status, notes string) (*model.Order, error) {
	orderStatus := model.OrderStatus(status)
	if !fulfillmentStatuses[orderStatus] {
		return nil, ErrInvalidStatus
	}
	return s.repo.UpdateOrderStatus(ctx, batchID, hall, orderStatus, notes)
}

// CancelOrder отменяет заказ с полным возвратом средств студенту.
func (s *Service) CancelOrder(ctx context.Context, hall, batchID, reason string) (*model.Order, error) {
	return s.repo.CancelOrder(ctx, batchID, hall, reason)
}

// GetOrderStats возвращает сводку заказов холла по статусам.
func (s *Service) GetOrderStats(ctx context.Context, hall string) ([]repository.OrderStatusStat, error) {
	return s.repo.GetOrderStats(ctx, hall)
}
