// Package model содержит доменные сущности сервиса столовой.
package model

import "time"

// Student представляет студента с лицевым счётом в столовой общежития.
type Student struct {
	ID              int64
	RollNumber      string
	Name            string
	RoomNumber      string
	PhoneNumber     string
	Hall            string
	Year            int
	BalanceCents    int64
	TotalOrders     int
	TotalSpentCents int64
	IsActive        bool
	CreatedAt       time.Time
}

// Item описывает позицию каталога столовой, доступную для заказа.
type Item struct {
	ID                  int64
	Name                string
	Category            string
	PriceCents          int64
	Hall                string
	IsAvailable         bool
	MaxQuantityPerOrder int
	TotalOrdered        int64
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusDisputed  OrderStatus = "disputed"
)

// IsValid сообщает, является ли значение допустимым статусом заказа.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed:
		return true
	}
	return false
}

// IsTerminal сообщает, является ли статус заказа конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderItem описывает строку заказа со снимком названия и цены позиции.
type OrderItem struct {
	ItemID          int64
	ItemName        string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
}

// Order описывает заказ студента и связанные с ним денежные снимки.
type Order struct {
	ID                int64
	BatchID           string
	StudentID         int64
	StudentRollNumber string
	StudentName       string
	Hall              string
	Items             []OrderItem
	TotalAmountCents  int64
	BalanceAfterCents int64
	Status            OrderStatus
	Notes             string
	OrderDay          string
	OrderTime         string
	IsDisputed        bool
	DisputeReason     string
	DisputedAt        *time.Time
	ResolvedBy        string
	ResolvedAt        *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
}

// ComplaintStatus описывает статус рассмотрения жалобы.
type ComplaintStatus string

const (
	ComplaintStatusPending     ComplaintStatus = "pending"
	ComplaintStatusUnderReview ComplaintStatus = "under_review"
	ComplaintStatusApproved    ComplaintStatus = "approved"
	ComplaintStatusRejected    ComplaintStatus = "rejected"
	ComplaintStatusResolved    ComplaintStatus = "resolved"
)

// IsOpen сообщает, может ли жалоба ещё быть рассмотрена.
func (s ComplaintStatus) IsOpen() bool {
	return s == ComplaintStatusPending || s == ComplaintStatusUnderReview
}

// ComplaintType описывает категорию жалобы на заказ.
type ComplaintType string

const (
	ComplaintTypeWrongOrder       ComplaintType = "wrong_order"
	ComplaintTypeIncorrectBilling ComplaintType = "incorrect_billing"
	ComplaintTypeQualityIssue     ComplaintType = "quality_issue"
	ComplaintTypeMissingItem      ComplaintType = "missing_item"
	ComplaintTypeOther            ComplaintType = "other"
)

// IsValid сообщает, является ли значение допустимой категорией жалобы.
func (t ComplaintType) IsValid() bool {
	switch t {
	case ComplaintTypeWrongOrder, ComplaintTypeIncorrectBilling,
		ComplaintTypeQualityIssue, ComplaintTypeMissingItem, ComplaintTypeOther:
		return true
	}
	return false
}

// ComplaintPriority описывает приоритет рассмотрения жалобы.
type ComplaintPriority string

const (
	ComplaintPriorityLow    ComplaintPriority = "low"
	ComplaintPriorityMedium ComplaintPriority = "medium"
	ComplaintPriorityHigh   ComplaintPriority = "high"
	ComplaintPriorityUrgent ComplaintPriority = "urgent"
)

// Пороги запрошенного возврата для вычисления приоритета жалобы.
const (
	priorityHighCents   = 500_00
	priorityMediumCents = 200_00
)

// PriorityForRefund вычисляет приоритет жалобы по сумме запрошенного возврата.
// Приоритет urgent при создании недостижим и назначается только эскалацией.
func PriorityForRefund(requestedCents int64) ComplaintPriority {
	switch {
	case requestedCents >= priorityHighCents:
		return ComplaintPriorityHigh
	case requestedCents >= priorityMediumCents:
		return ComplaintPriorityMedium
	default:
		return ComplaintPriorityLow
	}
}

// Attachment описывает метаданные файла, приложенного к жалобе.
type Attachment struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Complaint описывает жалобу на заказ с запросом возврата средств.
type Complaint struct {
	ID                   int64
	ComplaintID          string
	OrderID              int64
	StudentID            int64
	StudentRollNumber    string
	Hall                 string
	Type                 ComplaintType
	Description          string
	OrderBatchID         string
	OrderAmountCents     int64
	RequestedRefundCents int64
	Status               ComplaintStatus
	Priority             ComplaintPriority
	SubmittedBy          string
	ComplaintToken       string
	Attachments          []Attachment
	ReviewedBy           string
	ReviewedAt           *time.Time
	ReviewNotes          string
	RefundApprovedCents  int64
	IsRefundProcessed    bool
	RefundProcessedAt    *time.Time
	Escalated            bool
	EscalatedAt          *time.Time
	EscalatedTo          string
	CreatedAt            time.Time
}
