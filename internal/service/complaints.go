package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/repository"
)

// AttachmentInput описывает метаданные приложенного к жалобе файла.
type AttachmentInput struct {
	OriginalName string
	MimeType     string
	Size         int64
}

// CreateComplaintInput содержит данные для подачи жалобы на заказ.
type CreateComplaintInput struct {
	OrderBatchID    string
	Type            string
	Description     string
	RequestedRefund *float64
	SubmittedBy     string
	Token           string
	Attachments     []AttachmentInput
}

// CreateComplaint подаёт жалобу на заказ холла вызывающего менеджера.
// Предъявленный токен сверяется с токеном жалоб менеджера: сервис не проверяет
// подлинность полномочий, а лишь сравнивает предъявленную возможность.
// Жалоба и пометка заказа как оспоренного применяются одной транзакцией.
func (s *Service) CreateComplaint(ctx context.Context, hall, callerToken string, in CreateComplaintInput) (*model.Complaint, error) {
	if in.Token == "" || in.Token != callerToken {
		return nil, ErrInvalidToken
	}

	complaintType := model.ComplaintType(in.Type)
	if !complaintType.IsValid() {
		return nil, ErrInvalidComplaintType
	}

	order, err := s.repo.GetOrderByBatchID(ctx, in.OrderBatchID)
	if err != nil {
		return nil, err
	}
	if order.Hall != hall {
		return nil, repository.ErrForeignHall
	}

	requestedCents := order.TotalAmountCents
	if in.RequestedRefund != nil {
		if *in.RequestedRefund < 0 {
			return nil, ErrNegativeAmount
		}
		requestedCents = ToCents(*in.RequestedRefund)
	}

	submittedBy := in.SubmittedBy
	if submittedBy == "" {
		submittedBy = "mess_worker"
	}

	now := time.Now()

	var attachments []model.Attachment
	for _, a := range in.Attachments {
		attachments = append(attachments, model.Attachment{
			Filename:     uuid.NewString() + filepath.Ext(a.OriginalName),
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
			UploadedAt:   now,
		})
	}

	complaint := &model.Complaint{
		ComplaintID:          generateComplaintID(now),
		OrderID:              order.ID,
		StudentID:            order.StudentID,
		StudentRollNumber:    order.StudentRollNumber,
		Hall:                 hall,
		Type:                 complaintType,
		Description:          in.Description,
		OrderBatchID:         order.BatchID,
		OrderAmountCents:     order.TotalAmountCents,
		RequestedRefundCents: requestedCents,
		Status:               model.ComplaintStatusPending,
		Priority:             model.PriorityForRefund(requestedCents),
		SubmittedBy:          submittedBy,
		ComplaintToken:       in.Token,
		Attachments:          attachments,
	}

	if err := s.repo.CreateComplaint(ctx, complaint); err != nil {
		return nil, err
	}

	return complaint, nil
}

// GetComplaint возвращает жалобу холла по публичному идентификатору.
func (s *Service) GetComplaint(ctx context.Context, hall, complaintID string) (*model.Complaint, error) {
	c, err := s.repo.GetComplaintByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if c.Hall != hall {
		return nil, repository.ErrForeignHall
	}
	return c, nil
}

// ListComplaints возвращает страницу жалоб холла с фильтрами по статусу и приоритету.
func (s *Service) ListComplaints(ctx context.Context, hall, status, priority string, limit, offset int) ([]model.Complaint, error) {
	return s.repo.ListComplaints(ctx, hall,
		model.ComplaintStatus(status), model.ComplaintPriority(priority), limit, offset)
}

// ApproveComplaint одобряет жалобу и зачисляет утверждённый возврат студенту.
// Если сумма не указана, утверждается запрошенная в жалобе.
func (s *Service) ApproveComplaint(ctx context.Context, hall, reviewer, complaintID string, refundAmount *float64, notes string) (*model.Complaint, error) {
	var refundCents *int64
	if refundAmount != nil {
		if *refundAmount < 0 {
			return nil, ErrNegativeAmount
		}
		cents := ToCents(*refundAmount)
		refundCents = &cents
	}
	return s.repo.ApproveComplaint(ctx, complaintID, hall, reviewer, refundCents, notes)
}

// RejectComplaint отклоняет жалобу без перемещения денег.
func (s *Service) RejectComplaint(ctx context.Context, hall, reviewer, complaintID, notes string) (*model.Complaint, error) {
	return s.repo.RejectComplaint(ctx, complaintID, hall, reviewer, notes)
}

// EscalateComplaint поднимает приоритет открытой жалобы до urgent.
func (s *Service) EscalateComplaint(ctx context.Context, hall, complaintID, escalatedTo string) (*model.Complaint, error) {
	return s.repo.EscalateComplaint(ctx, complaintID, hall, escalatedTo)
}

// GetComplaintStats возвращает сводку по жалобам холла.
func (s *Service) GetComplaintStats(ctx context.Context, hall string) (*repository.ComplaintStats, error) {
	return s.repo.GetComplaintStats(ctx, hall)
}
