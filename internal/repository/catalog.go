package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/messhall-system/internal/model"
)

const itemColumns = `id, name, category, price_cents, hall_name, is_available, max_quantity_per_order, total_ordered`

func scanItem(row pgx.Row) (*model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.PriceCents, &it.Hall,
		&it.IsAvailable, &it.MaxQuantityPerOrder, &it.TotalOrdered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &it, nil
}

// GetItemByID возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetItemByID(ctx context.Context, id int64) (*model.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	)
	return scanItem(row)
}

// ListAvailableItems возвращает доступные для заказа позиции каталога холла.
func (r *PostgresRepository) ListAvailableItems(ctx context.Context, hall string) ([]model.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM items
		 WHERE hall_name = $1 AND is_available
		 ORDER BY category, name`,
		hall,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var res []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
