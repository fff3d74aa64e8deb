package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/messhall-system/internal/model"
)

const complaintColumns = `id, complaint_id, order_id, student_id, student_roll_number, hall_name,
	 complaint_type, description, order_batch_id, order_amount_cents, requested_refund_cents,
	 status, priority, submitted_by, complaint_token, attachments, reviewed_by, reviewed_at,
	 review_notes, refund_approved_cents, is_refund_processed, refund_processed_at,
	 escalated, escalated_at, escalated_to, created_at`

func scanComplaint(row pgx.Row) (*model.Complaint, error) {
	var c model.Complaint
	var attachments []byte
	err := row.Scan(&c.ID, &c.ComplaintID, &c.OrderID, &c.StudentID, &c.StudentRollNumber,
		&c.Hall, &c.Type, &c.Description, &c.OrderBatchID, &c.OrderAmountCents,
		&c.RequestedRefundCents, &c.Status, &c.Priority, &c.SubmittedBy, &c.ComplaintToken,
		&attachments, &c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes, &c.RefundApprovedCents,
		&c.IsRefundProcessed, &c.RefundProcessedAt, &c.Escalated, &c.EscalatedAt,
		&c.EscalatedTo, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComplaintNotFound
		}
		return nil, fmt.Errorf("scan complaint: %w", err)
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}

	return &c, nil
}

// CreateComplaint сохраняет жалобу и помечает заказ оспоренным в одной транзакции.
// Жалоба не может существовать без оспоренного заказа и наоборот; уникальность
// order_id гарантирует не более одной жалобы на заказ.
func (r *PostgresRepository) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	return r.withRetry(ctx, func() error {
		return r.createComplaint(ctx, c)
	})
}

func (r *PostgresRepository) createComplaint(ctx context.Context, c *model.Complaint) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`,
		c.OrderID,
	)
	o, err := scanOrder(row)
	if err != nil {
		return err
	}

	if o.IsDisputed {
		return ErrComplaintExists
	}
	if o.Status.IsTerminal() {
		return ErrOrderTerminal
	}

	attachments, err := json.Marshal(c.Attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	if c.Attachments == nil {
		attachments = []byte(`[]`)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO complaints (complaint_id, order_id, student_id, student_roll_number, hall_name,
		                         complaint_type, description, order_batch_id, order_amount_cents,
		                         requested_refund_cents, status, priority, submitted_by, complaint_token,
		                         attachments)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		c.ComplaintID, c.OrderID, c.StudentID, c.StudentRollNumber, c.Hall,
		string(c.Type), c.Description, c.OrderBatchID, c.OrderAmountCents,
		c.RequestedRefundCents, string(c.Status), string(c.Priority), c.SubmittedBy,
		c.ComplaintToken, attachments,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrComplaintExists
		}
		return fmt.Errorf("insert complaint: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders
		 SET is_disputed = TRUE, status = $2, dispute_reason = $3, disputed_at = now()
		 WHERE id = $1`,
		c.OrderID, string(model.OrderStatusDisputed), c.Description,
	)
	if err != nil {
		return fmt.Errorf("dispute order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetComplaintByID возвращает жалобу по её публичному идентификатору.
func (r *PostgresRepository) GetComplaintByID(ctx context.Context, complaintID string) (*model.Complaint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = $1`,
		complaintID,
	)
	return scanComplaint(row)
}

// ListComplaints возвращает жалобы холла с фильтрами по статусу и приоритету.
func (r *PostgresRepository) ListComplaints(ctx context.Context, hall string, status model.ComplaintStatus, priority model.ComplaintPriority, limit, offset int) ([]model.Complaint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+complaintColumns+`
		 FROM complaints
		 WHERE hall_name = $1
		   AND ($2 = '' OR status = $2)
		   AND ($3 = '' OR priority = $3)
		 ORDER BY created_at DESC
		 LIMIT $4 OFFSET $5`,
		hall, string(status), string(priority), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select complaints: %w", err)
	}
	defer rows.Close()

	var res []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func (r *PostgresRepository) lockOpenComplaint(ctx context.Context, tx pgx.Tx, complaintID, hall string) (*model.Complaint, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = $1 FOR UPDATE`,
		complaintID,
	)
	c, err := scanComplaint(row)
	if err != nil {
		return nil, err
	}

	if c.Hall != hall {
		return nil, ErrForeignHall
	}
	if !c.Status.IsOpen() {
		return nil, ErrComplaintProcessed
	}

	return c, nil
}

// ApproveComplaint одобряет жалобу, зачисляет утверждённый возврат на лицевой
// счёт студента и аннулирует оспоренный заказ — всё в одной транзакции.
// Если refundCents равен nil, утверждается запрошенная в жалобе сумма.
func (r *PostgresRepository) ApproveComplaint(ctx context.Context, complaintID, hall, reviewer string, refundCents *int64, notes string) (*model.Complaint, error) {
	var approved *model.Complaint
	err := r.withRetry(ctx, func() error {
		var err error
		approved, err = r.approveComplaint(ctx, complaintID, hall, reviewer, refundCents, notes)
		return err
	})
	return approved, err
}

func (r *PostgresRepository) approveComplaint(ctx context.Context, complaintID, hall, reviewer string, refundCents *int64, notes string) (*model.Complaint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := r.lockOpenComplaint(ctx, tx, complaintID, hall)
	if err != nil {
		return nil, err
	}

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, c.OrderID).Scan(&dummy)
	if err != nil {
		return nil, fmt.Errorf("lock order for update: %w", err)
	}

	// Политика источника сохранена: утверждённая сумма не ограничена запрошенной.
	refund := c.RequestedRefundCents
	if refundCents != nil {
		refund = *refundCents
	}

	now := time.Now()
	c.Status = model.ComplaintStatusApproved
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	c.ReviewNotes = notes
	c.RefundApprovedCents = refund

	if refund > 0 {
		err = tx.QueryRow(ctx, `SELECT 1 FROM students WHERE id = $1 FOR UPDATE`, c.StudentID).Scan(&dummy)
		if err != nil {
			return nil, fmt.Errorf("lock student for update: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE students SET balance_cents = balance_cents + $2 WHERE id = $1`,
			c.StudentID, refund,
		)
		if err != nil {
			return nil, fmt.Errorf("credit student balance: %w", err)
		}

		c.Status = model.ComplaintStatusResolved
		c.IsRefundProcessed = true
		c.RefundProcessedAt = &now
	}

	_, err = tx.Exec(ctx,
		`UPDATE complaints
		 SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5,
		     refund_approved_cents = $6, is_refund_processed = $7, refund_processed_at = $8
		 WHERE id = $1`,
		c.ID, string(c.Status), c.ReviewedBy, c.ReviewedAt, c.ReviewNotes,
		c.RefundApprovedCents, c.IsRefundProcessed, c.RefundProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update complaint: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders
		 SET status = $2, dispute_resolved_by = $3, dispute_resolved_at = $4
		 WHERE id = $1`,
		c.OrderID, string(model.OrderStatusCancelled), reviewer, now,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve disputed order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return c, nil
}

// RejectComplaint отклоняет жалобу и возвращает заказ в статус completed,
// снимая с него признак спора. Деньги при отклонении не перемещаются.
func (r *PostgresRepository) RejectComplaint(ctx context.Context, complaintID, hall, reviewer, notes string) (*model.Complaint, error) {
	var rejected *model.Complaint
	err := r.withRetry(ctx, func() error {
		var err error
		rejected, err = r.rejectComplaint(ctx, complaintID, hall, reviewer, notes)
		return err
	})
	return rejected, err
}

func (r *PostgresRepository) rejectComplaint(ctx context.Context, complaintID, hall, reviewer, notes string) (*model.Complaint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := r.lockOpenComplaint(ctx, tx, complaintID, hall)
	if err != nil {
		return nil, err
	}

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, c.OrderID).Scan(&dummy)
	if err != nil {
		return nil, fmt.Errorf("lock order for update: %w", err)
	}

	now := time.Now()
	c.Status = model.ComplaintStatusRejected
	c.ReviewedBy = reviewer
	c.ReviewedAt = &now
	c.ReviewNotes = notes
	c.RefundApprovedCents = 0

	_, err = tx.Exec(ctx,
		`UPDATE complaints
		 SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, refund_approved_cents = 0
		 WHERE id = $1`,
		c.ID, string(c.Status), c.ReviewedBy, c.ReviewedAt, c.ReviewNotes,
	)
	if err != nil {
		return nil, fmt.Errorf("update complaint: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders
		 SET status = $2, is_disputed = FALSE, dispute_resolved_by = $3, dispute_resolved_at = $4
		 WHERE id = $1`,
		c.OrderID, string(model.OrderStatusCompleted), reviewer, now,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve disputed order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return c, nil
}

// EscalateComplaint поднимает приоритет открытой жалобы до urgent.
// Это единственный путь к приоритету urgent: при создании он недостижим.
func (r *PostgresRepository) EscalateComplaint(ctx context.Context, complaintID, hall, escalatedTo string) (*model.Complaint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := r.lockOpenComplaint(ctx, tx, complaintID, hall)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c.Priority = model.ComplaintPriorityUrgent
	c.Escalated = true
	c.EscalatedAt = &now
	c.EscalatedTo = escalatedTo

	_, err = tx.Exec(ctx,
		`UPDATE complaints
		 SET priority = $2, escalated = TRUE, escalated_at = $3, escalated_to = $4
		 WHERE id = $1`,
		c.ID, string(c.Priority), c.EscalatedAt, c.EscalatedTo,
	)
	if err != nil {
		return nil, fmt.Errorf("escalate complaint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return c, nil
}

// ComplaintStats описывает агрегаты по жалобам холла.
type ComplaintStats struct {
	Total               int64
	Pending             int64
	UnderReview         int64
	Approved            int64
	Rejected            int64
	Resolved            int64
	RequestedTotalCents int64
	ApprovedTotalCents  int64
}

// GetComplaintStats возвращает сводку по жалобам холла.
func (r *PostgresRepository) GetComplaintStats(ctx context.Context, hall string) (*ComplaintStats, error) {
	var st ComplaintStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'under_review'),
		        COUNT(*) FILTER (WHERE status = 'approved'),
		        COUNT(*) FILTER (WHERE status = 'rejected'),
		        COUNT(*) FILTER (WHERE status = 'resolved'),
		        COALESCE(SUM(requested_refund_cents), 0),
		        COALESCE(SUM(refund_approved_cents), 0)
		 FROM complaints
		 WHERE hall_name = $1`,
		hall,
	).Scan(&st.Total, &st.Pending, &st.UnderReview, &st.Approved, &st.Rejected, &st.Resolved,
		&st.RequestedTotalCents, &st.ApprovedTotalCents)
	if err != nil {
		return nil, fmt.Errorf("select complaint stats: %w", err)
	}

	return &st, nil
}
