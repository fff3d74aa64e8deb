package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/service"
)

type attachmentRequest struct {
	OriginalName string `json:"originalName" validate:"required"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size" validate:"gte=0"`
}

type createComplaintRequest struct {
	OrderBatchID    string              `json:"orderBatchId" validate:"required"`
	ComplaintType   string              `json:"complaintType" validate:"required,oneof=wrong_order incorrect_billing quality_issue missing_item other"`
	Description     string              `json:"description" validate:"required,max=1000"`
	RequestedRefund *float64            `json:"requestedRefund" validate:"omitempty,gte=0"`
	ComplaintToken  string              `json:"complaintToken" validate:"required"`
	SubmittedBy     string              `json:"submittedBy"`
	Attachments     []attachmentRequest `json:"attachments" validate:"omitempty,dive"`
}

type attachmentResponse struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
}

type complaintResponse struct {
	ComplaintID       string               `json:"complaintId"`
	OrderBatchID      string               `json:"orderBatchId"`
	StudentRollNumber string               `json:"studentRollNumber"`
	Hall              string               `json:"hall"`
	ComplaintType     string               `json:"complaintType"`
	Description       string               `json:"description"`
	OrderAmount       float64              `json:"orderAmount"`
	RequestedRefund   float64              `json:"requestedRefund"`
	Status            string               `json:"status"`
	Priority          string               `json:"priority"`
	SubmittedBy       string               `json:"submittedBy"`
	Attachments       []attachmentResponse `json:"attachments,omitempty"`
	ReviewedBy        string               `json:"reviewedBy,omitempty"`
	ReviewedAt        string               `json:"reviewedAt,omitempty"`
	ReviewNotes       string               `json:"reviewNotes,omitempty"`
	RefundApproved    float64              `json:"refundApproved"`
	IsRefundProcessed bool                 `json:"isRefundProcessed"`
	RefundProcessedAt string               `json:"refundProcessedAt,omitempty"`
	Escalated         bool                 `json:"escalated"`
	EscalatedAt       string               `json:"escalatedAt,omitempty"`
	EscalatedTo       string               `json:"escalatedTo,omitempty"`
	CreatedAt         string               `json:"createdAt"`
}

func toComplaintResponse(c *model.Complaint) complaintResponse {
	var attachments []attachmentResponse
	for _, a := range c.Attachments {
		attachments = append(attachments, attachmentResponse{
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
			UploadedAt:   a.UploadedAt.Format(time.RFC3339),
		})
	}

	return complaintResponse{
		ComplaintID:       c.ComplaintID,
		OrderBatchID:      c.OrderBatchID,
		StudentRollNumber: c.StudentRollNumber,
		Hall:              c.Hall,
		ComplaintType:     string(c.Type),
		Description:       c.Description,
		OrderAmount:       service.ToRupees(c.OrderAmountCents),
		RequestedRefund:   service.ToRupees(c.RequestedRefundCents),
		Status:            string(c.Status),
		Priority:          string(c.Priority),
		SubmittedBy:       c.SubmittedBy,
		Attachments:       attachments,
		ReviewedBy:        c.ReviewedBy,
		ReviewedAt:        formatTime(c.ReviewedAt),
		ReviewNotes:       c.ReviewNotes,
		RefundApproved:    service.ToRupees(c.RefundApprovedCents),
		IsRefundProcessed: c.IsRefundProcessed,
		RefundProcessedAt: formatTime(c.RefundProcessedAt),
		Escalated:         c.Escalated,
		EscalatedAt:       formatTime(c.EscalatedAt),
		EscalatedTo:       c.EscalatedTo,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}
}

// CreateComplaint подаёт жалобу на заказ и помечает заказ оспоренным.
func (h *Handler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := service.CreateComplaintInput{
		OrderBatchID:    req.OrderBatchID,
		Type:            req.ComplaintType,
		Description:     req.Description,
		RequestedRefund: req.RequestedRefund,
		SubmittedBy:     req.SubmittedBy,
		Token:           req.ComplaintToken,
	}
	for _, a := range req.Attachments {
		in.Attachments = append(in.Attachments, service.AttachmentInput{
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
		})
	}

	complaint, err := h.service.CreateComplaint(r.Context(), caller.Hall, caller.ComplaintToken, in)
	if err != nil {
		h.writeError(w, err, "create complaint error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toComplaintResponse(complaint))
}

// GetComplaints возвращает жалобы холла с фильтрами по статусу и приоритету.
func (h *Handler) GetComplaints(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset := paginate(r, 20)
	complaints, err := h.service.ListComplaints(r.Context(), caller.Hall,
		r.URL.Query().Get("status"), r.URL.Query().Get("priority"), limit, offset)
	if err != nil {
		h.writeError(w, err, "get complaints error")
		return
	}

	if len(complaints) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]complaintResponse, 0, len(complaints))
	for i := range complaints {
		resp = append(resp, toComplaintResponse(&complaints[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetComplaint возвращает одну жалобу по публичному идентификатору.
func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	complaint, err := h.service.GetComplaint(r.Context(), caller.Hall, chi.URLParam(r, "complaintID"))
	if err != nil {
		h.writeError(w, err, "get complaint error")
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponse(complaint))
}

type adjudicateComplaintRequest struct {
	Action       string   `json:"action" validate:"required,oneof=approve reject"`
	RefundAmount *float64 `json:"refundAmount" validate:"omitempty,gte=0"`
	ReviewNotes  string   `json:"reviewNotes" validate:"max=500"`
}

// AdjudicateComplaint одобряет или отклоняет жалобу. Одобрение зачисляет
// утверждённый возврат студенту и аннулирует заказ, отклонение возвращает
// заказ в статус completed без перемещения денег. Вердикт выносит только
// менеджер холла.
func (h *Handler) AdjudicateComplaint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.requireManager(w, caller) {
		return
	}

	var req adjudicateComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	complaintID := chi.URLParam(r, "complaintID")

	var complaint *model.Complaint
	var err error
	if req.Action == "approve" {
		complaint, err = h.service.ApproveComplaint(r.Context(), caller.Hall, caller.ManagerID, complaintID, req.RefundAmount, req.ReviewNotes)
	} else {
		complaint, err = h.service.RejectComplaint(r.Context(), caller.Hall, caller.ManagerID, complaintID, req.ReviewNotes)
	}
	if err != nil {
		h.writeError(w, err, "adjudicate complaint error")
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponse(complaint))
}

type escalateComplaintRequest struct {
	EscalatedTo string `json:"escalatedTo" validate:"required"`
}

// EscalateComplaint поднимает приоритет открытой жалобы до urgent.
// Доступно только менеджеру холла.
func (h *Handler) EscalateComplaint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.requireManager(w, caller) {
		return
	}

	var req escalateComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	complaint, err := h.service.EscalateComplaint(r.Context(), caller.Hall, chi.URLParam(r, "complaintID"), req.EscalatedTo)
	if err != nil {
		h.writeError(w, err, "escalate complaint error")
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponse(complaint))
}

type complaintStatsResponse struct {
	Total           int64   `json:"total"`
	Pending         int64   `json:"pending"`
	UnderReview     int64   `json:"underReview"`
	Approved        int64   `json:"approved"`
	Rejected        int64   `json:"rejected"`
	Resolved        int64   `json:"resolved"`
	RequestedRefund float64 `json:"totalRefundRequested"`
	ApprovedRefund  float64 `json:"totalRefundApproved"`
}

// GetComplaintStats возвращает сводку по жалобам холла.
func (h *Handler) GetComplaintStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetComplaintStats(r.Context(), caller.Hall)
	if err != nil {
		h.writeError(w, err, "get complaint stats error")
		return
	}

	h.writeJSON(w, http.StatusOK, complaintStatsResponse{
		Total:           stats.Total,
		Pending:         stats.Pending,
		UnderReview:     stats.UnderReview,
		Approved:        stats.Approved,
		Rejected:        stats.Rejected,
		Resolved:        stats.Resolved,
		RequestedRefund: service.ToRupees(stats.RequestedTotalCents),
		ApprovedRefund:  service.ToRupees(stats.ApprovedTotalCents),
	})
}
