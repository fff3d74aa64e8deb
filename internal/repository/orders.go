package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/messhall-system/internal/model"
)

const orderColumns = `id, batch_id, student_id, student_roll_number, student_name, hall_name,
	 total_amount_cents, balance_after_cents, status, notes, order_day, order_time,
	 is_disputed, dispute_reason, disputed_at, dispute_resolved_by, dispute_resolved_at,
	 completed_at, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.BatchID, &o.StudentID, &o.StudentRollNumber, &o.StudentName,
		&o.Hall, &o.TotalAmountCents, &o.BalanceAfterCents, &o.Status, &o.Notes,
		&o.OrderDay, &o.OrderTime, &o.IsDisputed, &o.DisputeReason, &o.DisputedAt,
		&o.ResolvedBy, &o.ResolvedAt, &o.CompletedAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) loadOrderItems(ctx context.Context, orders []model.Order) error {
	for i := range orders {
		rows, err := r.pool.Query(ctx,
			`SELECT item_id, item_name, quantity, unit_price_cents, total_price_cents
			 FROM order_items WHERE order_id = $1 ORDER BY id`,
			orders[i].ID,
		)
		if err != nil {
			return fmt.Errorf("select order items: %w", err)
		}

		var items []model.OrderItem
		for rows.Next() {
			var it model.OrderItem
			if err := rows.Scan(&it.ItemID, &it.ItemName, &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			items = append(items, it)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		orders[i].Items = items
	}
	return nil
}

// CreateOrder сохраняет заказ и списывает его сумму с лицевого счёта студента
// в одной транзакции. Строка студента блокируется на время операции, поэтому
// balance_after_cents вычисляется из баланса непосредственно перед дебетом и
// параллельные заказы одного студента не теряют обновлений.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.withRetry(ctx, func() error {
		return r.createOrder(ctx, order)
	})
}

func (r *PostgresRepository) createOrder(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balanceBefore int64
	err = tx.QueryRow(ctx,
		`SELECT balance_cents FROM students WHERE id = $1 FOR UPDATE`,
		order.StudentID,
	).Scan(&balanceBefore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("lock student for update: %w", err)
	}

	order.BalanceAfterCents = balanceBefore - order.TotalAmountCents

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (batch_id, student_id, student_roll_number, student_name, hall_name,
		                     total_amount_cents, balance_after_cents, status, notes, order_day, order_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		order.BatchID, order.StudentID, order.StudentRollNumber, order.StudentName, order.Hall,
		order.TotalAmountCents, order.BalanceAfterCents, string(order.Status), order.Notes,
		order.OrderDay, order.OrderTime,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, item_id, item_name, quantity, unit_price_cents, total_price_cents)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, it.ItemID, it.ItemName, it.Quantity, it.UnitPriceCents, it.TotalPriceCents,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE items SET total_ordered = total_ordered + $2 WHERE id = $1`,
			it.ItemID, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update item counter: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE students
		 SET balance_cents = balance_cents - $2,
		     total_spent_cents = total_spent_cents + $2,
		     total_orders = total_orders + 1
		 WHERE id = $1`,
		order.StudentID, order.TotalAmountCents,
	)
	if err != nil {
		return fmt.Errorf("debit student balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetOrderByBatchID возвращает заказ по его партийному идентификатору вместе со строками.
func (r *PostgresRepository) GetOrderByBatchID(ctx context.Context, batchID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE batch_id = $1`,
		batchID,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	orders := []model.Order{*o}
	if err := r.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// ListOrders возвращает заказы холла, отсортированные от новых к старым.
func (r *PostgresRepository) ListOrders(ctx context.Context, hall string, status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE hall_name = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		hall, string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.loadOrderItems(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// ListOrdersByStudent возвращает заказы одного студента.
func (r *PostgresRepository) ListOrdersByStudent(ctx context.Context, studentID int64, limit, offset int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE student_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		studentID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders by student: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.loadOrderItems(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// UpdateOrderStatus переводит заказ по этапам выполнения. Денежных эффектов не имеет:
// отмена и оспаривание идут отдельными операциями.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, batchID, hall string, status model.OrderStatus, notes string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE batch_id = $1 FOR UPDATE`,
		batchID,
	)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if o.Hall != hall {
		return nil, ErrForeignHall
	}
	if o.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}
	if o.IsDisputed {
		return nil, ErrOrderDisputed
	}

	var completedAt *time.Time
	if status == model.OrderStatusCompleted {
		now := time.Now()
		completedAt = &now
	}

	if notes == "" {
		notes = o.Notes
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, notes = $3, completed_at = COALESCE($4, completed_at)
		 WHERE id = $1`,
		o.ID, string(status), notes, completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = status
	o.Notes = notes
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	return o, nil
}

// CancelOrder отменяет заказ и возвращает всю его сумму на лицевой счёт студента
// в одной транзакции. Повторная отмена и отмена оспоренного или завершённого
// заказа отклоняются до каких-либо изменений.
func (r *PostgresRepository) CancelOrder(ctx context.Context, batchID, hall, reason string) (*model.Order, error) {
	var cancelled *model.Order
	err := r.withRetry(ctx, func() error {
		var err error
		cancelled, err = r.cancelOrder(ctx, batchID, hall, reason)
		return err
	})
	return cancelled, err
}

func (r *PostgresRepository) cancelOrder(ctx context.Context, batchID, hall, reason string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE batch_id = $1 FOR UPDATE`,
		batchID,
	)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if o.Hall != hall {
		return nil, ErrForeignHall
	}
	if o.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}
	if o.IsDisputed {
		return nil, ErrOrderDisputed
	}

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM students WHERE id = $1 FOR UPDATE`, o.StudentID).Scan(&dummy)
	if err != nil {
		return nil, fmt.Errorf("lock student for update: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE students
		 SET balance_cents = balance_cents + $2,
		     total_orders = GREATEST(total_orders - 1, 0)
		 WHERE id = $1`,
		o.StudentID, o.TotalAmountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("credit student balance: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE items
		 SET total_ordered = total_ordered - oi.quantity
		 FROM order_items oi
		 WHERE oi.order_id = $1 AND items.id = oi.item_id`,
		o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("revert item counters: %w", err)
	}

	if reason == "" {
		reason = "Cancelled by manager"
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, notes = $3 WHERE id = $1`,
		o.ID, string(model.OrderStatusCancelled), reason,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = model.OrderStatusCancelled
	o.Notes = reason
	return o, nil
}

// OrderStatusStat описывает агрегат заказов холла по одному статусу.
type OrderStatusStat struct {
	Status           model.OrderStatus
	Count            int64
	TotalAmountCents int64
}

// GetOrderStats возвращает количество и оборот заказов холла в разрезе статусов.
func (r *PostgresRepository) GetOrderStats(ctx context.Context, hall string) ([]OrderStatusStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total_amount_cents), 0)
		 FROM orders
		 WHERE hall_name = $1
		 GROUP BY status
		 ORDER BY status`,
		hall,
	)
	if err != nil {
		return nil, fmt.Errorf("select order stats: %w", err)
	}
	defer rows.Close()

	var res []OrderStatusStat
	for rows.Next() {
		var st OrderStatusStat
		var status string
		if err := rows.Scan(&status, &st.Count, &st.TotalAmountCents); err != nil {
			return nil, fmt.Errorf("scan order stat: %w", err)
		}
		st.Status = model.OrderStatus(status)
		res = append(res, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
