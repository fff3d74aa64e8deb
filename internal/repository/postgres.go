// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrStudentNotFound возвращается, если студент не найден.
var (
	ErrStudentNotFound = errors.New("student not found")
	// ErrItemNotFound возвращается, если позиция каталога не найдена.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemUnavailable возвращается при заказе недоступной позиции.
	ErrItemUnavailable = errors.New("item not available")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrComplaintNotFound возвращается, если жалоба не найдена.
	ErrComplaintNotFound = errors.New("complaint not found")
	// ErrForeignHall возвращается при обращении к сущности чужого холла.
	ErrForeignHall = errors.New("entity belongs to another hall")
	// ErrOrderTerminal возвращается при попытке изменить завершённый или отменённый заказ.
	ErrOrderTerminal = errors.New("order already completed or cancelled")
	// ErrOrderDisputed возвращается при попытке изменить оспоренный заказ вне процедуры жалобы.
	ErrOrderDisputed = errors.New("order is under dispute")
	// ErrComplaintExists возвращается при попытке создать вторую жалобу на заказ.
	ErrComplaintExists = errors.New("complaint already exists for this order")
	// ErrComplaintProcessed возвращается при повторном рассмотрении жалобы в конечном статусе.
	ErrComplaintProcessed = errors.New("complaint has already been processed")
)

// QuantityCapError возвращается, когда количество в строке заказа превышает лимит позиции.
type QuantityCapError struct {
	ItemName string
	Max      int
}

// Error возвращает текст ошибки с названием позиции и её лимитом.
func (e *QuantityCapError) Error() string {
	return fmt.Sprintf("quantity exceeds maximum allowed for %s: max %d", e.ItemName, e.Max)
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках БД: сбоях сериализации и дедлоках.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
