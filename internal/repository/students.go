package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/messhall-system/internal/model"
)

const studentColumns = `id, roll_number, name, room_number, phone_number, hall_name, year,
	 balance_cents, total_orders, total_spent_cents, is_active, created_at`

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.RollNumber, &s.Name, &s.RoomNumber, &s.PhoneNumber, &s.Hall,
		&s.Year, &s.BalanceCents, &s.TotalOrders, &s.TotalSpentCents, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &s, nil
}

// GetStudentByRoll возвращает студента по номеру зачётной книжки.
func (r *PostgresRepository) GetStudentByRoll(ctx context.Context, rollNumber string) (*model.Student, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE roll_number = $1`,
		rollNumber,
	)
	return scanStudent(row)
}

// ListStudents возвращает активных студентов холла с необязательным поиском по подстроке.
func (r *PostgresRepository) ListStudents(ctx context.Context, hall, query string) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+studentColumns+`
		 FROM students
		 WHERE hall_name = $1 AND is_active
		   AND ($2 = '' OR roll_number ILIKE '%' || $2 || '%'
		        OR name ILIKE '%' || $2 || '%' OR room_number ILIKE '%' || $2 || '%')
		 ORDER BY roll_number`,
		hall, query,
	)
	if err != nil {
		return nil, fmt.Errorf("select students: %w", err)
	}
	defer rows.Close()

	var res []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DeactivateStudent помечает студента неактивным, не удаляя его записи и заказы.
func (r *PostgresRepository) DeactivateStudent(ctx context.Context, rollNumber, hall string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE students SET is_active = FALSE WHERE roll_number = $1 AND hall_name = $2`,
		rollNumber, hall,
	)
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// UpsertRosterStudent создаёт студента из реестра или обновляет его анкетные поля.
// Баланс существующего студента не перезаписывается: после создания записи его
// изменяет только операция дебета/кредита лицевого счёта.
func (r *PostgresRepository) UpsertRosterStudent(ctx context.Context, s model.Student) (bool, error) {
	var created bool
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (roll_number, name, room_number, phone_number, hall_name, year, balance_cents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (roll_number) DO UPDATE
		 SET name = EXCLUDED.name,
		     room_number = EXCLUDED.room_number,
		     phone_number = EXCLUDED.phone_number,
		     hall_name = EXCLUDED.hall_name,
		     year = EXCLUDED.year,
		     is_active = TRUE
		 RETURNING (xmax = 0)`,
		s.RollNumber, s.Name, s.RoomNumber, s.PhoneNumber, s.Hall, s.Year, s.BalanceCents,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert roster student: %w", err)
	}
	return created, nil
}
