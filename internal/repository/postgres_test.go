package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/mmeshcher/messhall-system/internal/model"
)

// Тесты репозитория гоняются против настоящего PostgreSQL: транзакционные
// инварианты лицевого счёта нельзя проверить на заглушках. Без TEST_DATABASE_URI
// пакет пропускается.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	_, err = repo.pool.Exec(context.Background(),
		`TRUNCATE complaints, order_items, orders, items, students RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return repo
}

func seedTestStudent(t *testing.T, repo *PostgresRepository, balanceCents int64) *model.Student {
	t.Helper()

	ctx := context.Background()
	_, err := repo.UpsertRosterStudent(ctx, model.Student{
		RollNumber:   "21CS10045",
		Name:         "Arjun Mehta",
		RoomNumber:   "A-101",
		PhoneNumber:  "9876543210",
		Hall:         "north",
		Year:         3,
		BalanceCents: balanceCents,
	})
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}

	s, err := repo.GetStudentByRoll(ctx, "21CS10045")
	if err != nil {
		t.Fatalf("load seeded student: %v", err)
	}
	return s
}

func seedTestItem(t *testing.T, repo *PostgresRepository, priceCents int64) *model.Item {
	t.Helper()

	var id int64
	err := repo.pool.QueryRow(context.Background(),
		`INSERT INTO items (name, category, price_cents, hall_name)
		 VALUES ('Masala Dosa', 'breakfast', $1, 'north')
		 RETURNING id`,
		priceCents,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	it, err := repo.GetItemByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load seeded item: %v", err)
	}
	return it
}

var testBatchSeq int

func placeTestOrder(t *testing.T, repo *PostgresRepository, s *model.Student, it *model.Item, quantity int) *model.Order {
	t.Helper()

	testBatchSeq++
	order := &model.Order{
		BatchID:           fmt.Sprintf("BATCH_TEST_%05d", testBatchSeq),
		StudentID:         s.ID,
		StudentRollNumber: s.RollNumber,
		StudentName:       s.Name,
		Hall:              s.Hall,
		Items: []model.OrderItem{{
			ItemID:          it.ID,
			ItemName:        it.Name,
			Quantity:        quantity,
			UnitPriceCents:  it.PriceCents,
			TotalPriceCents: it.PriceCents * int64(quantity),
		}},
		TotalAmountCents: it.PriceCents * int64(quantity),
		Status:           model.OrderStatusConfirmed,
		OrderDay:         "Monday",
		OrderTime:        "01:00 PM",
	}

	if err := repo.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func fileTestComplaint(t *testing.T, repo *PostgresRepository, o *model.Order, requestedCents int64) *model.Complaint {
	t.Helper()

	testBatchSeq++
	c := &model.Complaint{
		ComplaintID:          fmt.Sprintf("COMP_TEST_%04d", testBatchSeq),
		OrderID:              o.ID,
		StudentID:            o.StudentID,
		StudentRollNumber:    o.StudentRollNumber,
		Hall:                 o.Hall,
		Type:                 model.ComplaintTypeQualityIssue,
		Description:          "stale food",
		OrderBatchID:         o.BatchID,
		OrderAmountCents:     o.TotalAmountCents,
		RequestedRefundCents: requestedCents,
		Status:               model.ComplaintStatusPending,
		Priority:             model.PriorityForRefund(requestedCents),
		SubmittedBy:          "mess_worker",
		ComplaintToken:       "token-abc",
	}

	if err := repo.CreateComplaint(context.Background(), c); err != nil {
		t.Fatalf("create complaint: %v", err)
	}
	return c
}

func studentBalance(t *testing.T, repo *PostgresRepository, roll string) int64 {
	t.Helper()

	s, err := repo.GetStudentByRoll(context.Background(), roll)
	if err != nil {
		t.Fatalf("load student: %v", err)
	}
	return s.BalanceCents
}

func TestCreateOrderDebitsBalance(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)

	order := placeTestOrder(t, repo, student, item, 2)

	if order.BalanceAfterCents != 1700_00 {
		t.Errorf("balance_after = %d, want %d", order.BalanceAfterCents, 1700_00)
	}

	s, err := repo.GetStudentByRoll(ctx, student.RollNumber)
	if err != nil {
		t.Fatalf("load student: %v", err)
	}
	if s.BalanceCents != 1700_00 {
		t.Errorf("balance = %d, want %d", s.BalanceCents, 1700_00)
	}
	if s.TotalSpentCents != 300_00 || s.TotalOrders != 1 {
		t.Errorf("total_spent = %d, total_orders = %d, want 30000 and 1", s.TotalSpentCents, s.TotalOrders)
	}

	it, err := repo.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	if it.TotalOrdered != 2 {
		t.Errorf("total_ordered = %d, want 2", it.TotalOrdered)
	}
}

func TestCancelOrderRestoresBalanceOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 2)

	cancelled, err := repo.CancelOrder(ctx, order.BatchID, "north", "")
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, model.OrderStatusCancelled)
	}
	if cancelled.Notes != "Cancelled by manager" {
		t.Errorf("notes = %q, want default cancel reason", cancelled.Notes)
	}

	if got := studentBalance(t, repo, student.RollNumber); got != 2000_00 {
		t.Errorf("balance after cancel = %d, want %d", got, 2000_00)
	}

	s, err := repo.GetStudentByRoll(ctx, student.RollNumber)
	if err != nil {
		t.Fatalf("load student: %v", err)
	}
	if s.TotalOrders != 0 {
		t.Errorf("total_orders = %d, want 0", s.TotalOrders)
	}

	it, err := repo.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	if it.TotalOrdered != 0 {
		t.Errorf("total_ordered = %d, want 0", it.TotalOrdered)
	}

	// Повторная отмена отклоняется и не зачисляет деньги второй раз.
	if _, err := repo.CancelOrder(ctx, order.BatchID, "north", ""); !errors.Is(err, ErrOrderTerminal) {
		t.Errorf("second cancel error = %v, want %v", err, ErrOrderTerminal)
	}
	if got := studentBalance(t, repo, student.RollNumber); got != 2000_00 {
		t.Errorf("balance after double cancel = %d, want %d", got, 2000_00)
	}
}

func TestCancelDisputedOrderRejected(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 1)
	fileTestComplaint(t, repo, order, 150_00)

	if _, err := repo.CancelOrder(ctx, order.BatchID, "north", ""); !errors.Is(err, ErrOrderDisputed) {
		t.Errorf("cancel error = %v, want %v", err, ErrOrderDisputed)
	}
	if got := studentBalance(t, repo, student.RollNumber); got != 1850_00 {
		t.Errorf("balance = %d, want %d (no refund outside adjudication)", got, 1850_00)
	}
}

func TestCreateComplaintMarksOrderDisputed(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 1)

	fileTestComplaint(t, repo, order, 150_00)

	o, err := repo.GetOrderByBatchID(ctx, order.BatchID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if !o.IsDisputed || o.Status != model.OrderStatusDisputed {
		t.Errorf("order disputed = %v, status = %s; want true and %s", o.IsDisputed, o.Status, model.OrderStatusDisputed)
	}
	if o.DisputeReason != "stale food" {
		t.Errorf("dispute_reason = %q, want %q", o.DisputeReason, "stale food")
	}

	// Вторая жалоба на тот же заказ отклоняется.
	second := &model.Complaint{
		ComplaintID:          "COMP_TEST_DUP",
		OrderID:              order.ID,
		StudentID:            order.StudentID,
		StudentRollNumber:    order.StudentRollNumber,
		Hall:                 order.Hall,
		Type:                 model.ComplaintTypeOther,
		Description:          "again",
		OrderBatchID:         order.BatchID,
		OrderAmountCents:     order.TotalAmountCents,
		RequestedRefundCents: 10_00,
		Status:               model.ComplaintStatusPending,
		Priority:             model.ComplaintPriorityLow,
		SubmittedBy:          "mess_worker",
		ComplaintToken:       "token-abc",
	}
	if err := repo.CreateComplaint(ctx, second); !errors.Is(err, ErrComplaintExists) {
		t.Errorf("second complaint error = %v, want %v", err, ErrComplaintExists)
	}
}

func TestCreateComplaintOnTerminalOrderRejected(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 1)

	if _, err := repo.CancelOrder(ctx, order.BatchID, "north", ""); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	c := &model.Complaint{
		ComplaintID:          "COMP_TEST_TERM",
		OrderID:              order.ID,
		StudentID:            order.StudentID,
		StudentRollNumber:    order.StudentRollNumber,
		Hall:                 order.Hall,
		Type:                 model.ComplaintTypeOther,
		Description:          "late",
		OrderBatchID:         order.BatchID,
		OrderAmountCents:     order.TotalAmountCents,
		RequestedRefundCents: 10_00,
		Status:               model.ComplaintStatusPending,
		Priority:             model.ComplaintPriorityLow,
		SubmittedBy:          "mess_worker",
		ComplaintToken:       "token-abc",
	}
	if err := repo.CreateComplaint(ctx, c); !errors.Is(err, ErrOrderTerminal) {
		t.Errorf("complaint on cancelled order error = %v, want %v", err, ErrOrderTerminal)
	}
}

func TestApproveComplaintCreditsRefundOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 2)
	complaint := fileTestComplaint(t, repo, order, 300_00)

	refund := int64(120_00)
	approved, err := repo.ApproveComplaint(ctx, complaint.ComplaintID, "north", "mgr-1", &refund, "partial")
	if err != nil {
		t.Fatalf("approve complaint: %v", err)
	}

	if approved.Status != model.ComplaintStatusResolved || !approved.IsRefundProcessed {
		t.Errorf("status = %s, processed = %v; want resolved and true", approved.Status, approved.IsRefundProcessed)
	}
	if approved.RefundApprovedCents != 120_00 {
		t.Errorf("refund_approved = %d, want %d", approved.RefundApprovedCents, 120_00)
	}
	if approved.ReviewedBy != "mgr-1" || approved.ReviewedAt == nil {
		t.Errorf("reviewer fields not set: %+v", approved)
	}

	// 2000 - 300 (заказ) + 120 (возврат); зачисляется ровно утверждённая сумма.
	if got := studentBalance(t, repo, student.RollNumber); got != 1820_00 {
		t.Errorf("balance = %d, want %d", got, 1820_00)
	}

	o, err := repo.GetOrderByBatchID(ctx, order.BatchID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if o.Status != model.OrderStatusCancelled || o.ResolvedBy != "mgr-1" || o.ResolvedAt == nil {
		t.Errorf("order after approve: status = %s, resolved_by = %q", o.Status, o.ResolvedBy)
	}

	// Повторное рассмотрение отклоняется и денег не перемещает.
	if _, err := repo.ApproveComplaint(ctx, complaint.ComplaintID, "north", "mgr-1", &refund, ""); !errors.Is(err, ErrComplaintProcessed) {
		t.Errorf("second approve error = %v, want %v", err, ErrComplaintProcessed)
	}
	if got := studentBalance(t, repo, student.RollNumber); got != 1820_00 {
		t.Errorf("balance after double approve = %d, want %d", got, 1820_00)
	}
}

func TestApproveComplaintDefaultsToRequested(t *testing.T) {
	repo := newTestRepository(t)

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 2)
	complaint := fileTestComplaint(t, repo, order, 300_00)

	approved, err := repo.ApproveComplaint(context.Background(), complaint.ComplaintID, "north", "mgr-1", nil, "")
	if err != nil {
		t.Fatalf("approve complaint: %v", err)
	}
	if approved.RefundApprovedCents != 300_00 {
		t.Errorf("refund_approved = %d, want requested %d", approved.RefundApprovedCents, 300_00)
	}
	if got := studentBalance(t, repo, student.RollNumber); got != 2000_00 {
		t.Errorf("balance = %d, want fully restored %d", got, 2000_00)
	}
}

func TestRejectComplaintMovesNoMoney(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 2)
	complaint := fileTestComplaint(t, repo, order, 300_00)

	rejected, err := repo.RejectComplaint(ctx, complaint.ComplaintID, "north", "mgr-1", "no grounds")
	if err != nil {
		t.Fatalf("reject complaint: %v", err)
	}
	if rejected.Status != model.ComplaintStatusRejected || rejected.RefundApprovedCents != 0 {
		t.Errorf("status = %s, refund = %d; want rejected and 0", rejected.Status, rejected.RefundApprovedCents)
	}

	if got := studentBalance(t, repo, student.RollNumber); got != 1700_00 {
		t.Errorf("balance = %d, want debited %d", got, 1700_00)
	}

	o, err := repo.GetOrderByBatchID(ctx, order.BatchID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if o.Status != model.OrderStatusCompleted || o.IsDisputed {
		t.Errorf("order after reject: status = %s, disputed = %v; want completed and false", o.Status, o.IsDisputed)
	}

	// Вердикт по жалобе завершает заказ, и обычная отмена после него невозможна.
	if _, err := repo.CancelOrder(ctx, o.BatchID, "north", ""); !errors.Is(err, ErrOrderTerminal) {
		t.Errorf("cancel after reject error = %v, want %v", err, ErrOrderTerminal)
	}
}

func TestEscalateComplaintRequiresOpenStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 1)
	complaint := fileTestComplaint(t, repo, order, 150_00)

	escalated, err := repo.EscalateComplaint(ctx, complaint.ComplaintID, "north", "warden")
	if err != nil {
		t.Fatalf("escalate complaint: %v", err)
	}
	if escalated.Priority != model.ComplaintPriorityUrgent || !escalated.Escalated || escalated.EscalatedTo != "warden" {
		t.Errorf("unexpected escalation result: %+v", escalated)
	}

	if _, err := repo.RejectComplaint(ctx, complaint.ComplaintID, "north", "mgr-1", ""); err != nil {
		t.Fatalf("reject complaint: %v", err)
	}

	if _, err := repo.EscalateComplaint(ctx, complaint.ComplaintID, "north", "dean"); !errors.Is(err, ErrComplaintProcessed) {
		t.Errorf("escalate after reject error = %v, want %v", err, ErrComplaintProcessed)
	}
}

func TestComplaintForeignHallRejected(t *testing.T) {
	repo := newTestRepository(t)

	student := seedTestStudent(t, repo, 2000_00)
	item := seedTestItem(t, repo, 150_00)
	order := placeTestOrder(t, repo, student, item, 1)
	complaint := fileTestComplaint(t, repo, order, 150_00)

	if _, err := repo.ApproveComplaint(context.Background(), complaint.ComplaintID, "south", "mgr-2", nil, ""); !errors.Is(err, ErrForeignHall) {
		t.Errorf("approve from foreign hall error = %v, want %v", err, ErrForeignHall)
	}
	if got := studentBalance(t, repo, student.RollNumber); got != 1850_00 {
		t.Errorf("balance = %d, want untouched %d", got, 1850_00)
	}
}
