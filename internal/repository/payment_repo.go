package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type paymentModel struct {
	ID                int64      `gorm:"column:id;primaryKey"`
	BookingID         int64      `gorm:"column:booking_id;uniqueIndex;not null"`
	UserID            int64      `gorm:"column:user_id;index;not null"`
	Amount            float64    `gorm:"column:amount;not null"`
	Method            string     `gorm:"column:method;size:20;not null"`
	PhoneNumber       string     `gorm:"column:phone_number;size:20"`
	MerchantRequestID string     `gorm:"column:merchant_request_id;size:100"`
	CheckoutRequestID string     `gorm:"column:checkout_request_id;size:100;uniqueIndex;not null"`
	Status            string     `gorm:"column:status;size:20;index;not null"`
	ReceiptNumber     *string    `gorm:"column:receipt_number;size:40"`
	PaidAmount        *float64   `gorm:"column:paid_amount"`
	PayerPhone        *string    `gorm:"column:payer_phone;size:20"`
	ResultCode        *int       `gorm:"column:result_code"`
	ResultDesc        *string    `gorm:"column:result_desc"`
	PaidAt            *time.Time `gorm:"column:paid_at"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string { return "payments" }

func toDomainPayment(m paymentModel) *domain.Payment {
	return &domain.Payment{
		ID:                m.ID,
		BookingID:         m.BookingID,
		UserID:            m.UserID,
		Amount:            m.Amount,
		Method:            m.Method,
		PhoneNumber:       m.PhoneNumber,
		MerchantRequestID: m.MerchantRequestID,
		CheckoutRequestID: m.CheckoutRequestID,
		Status:            domain.PaymentStatus(m.Status),
		ReceiptNumber:     deref(m.ReceiptNumber),
		PaidAmount:        m.PaidAmount,
		PayerPhone:        deref(m.PayerPhone),
		ResultCode:        m.ResultCode,
		ResultDesc:        deref(m.ResultDesc),
		PaidAt:            m.PaidAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toPaymentModel(p *domain.Payment) paymentModel {
	method := p.Method
	if method == "" {
		method = domain.PaymentMethodMpesa
	}
	return paymentModel{
		ID:                p.ID,
		BookingID:         p.BookingID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Method:            method,
		PhoneNumber:       p.PhoneNumber,
		MerchantRequestID: p.MerchantRequestID,
		CheckoutRequestID: p.CheckoutRequestID,
		Status:            string(p.Status),
		ReceiptNumber:     ptr(p.ReceiptNumber),
		PaidAmount:        p.PaidAmount,
		PayerPhone:        ptr(p.PayerPhone),
		ResultCode:        p.ResultCode,
		ResultDesc:        ptr(p.ResultDesc),
		PaidAt:            p.PaidAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// AppliedResult describes what a provider result did to the ledger.
type AppliedResult struct {
	Payment *domain.Payment
	// Applied is false when the payment was already terminal.
	Applied bool
	// BookingTransitioned is false when the booking had already left PENDING.
	BookingTransitioned bool
}

func (r *PaymentRepository) GetByCheckoutID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error) {
	var m paymentModel
	if err := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainPayment(m), nil
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	var m paymentModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainPayment(m), nil
}

// SaveAttempt records a fresh push attempt for p.BookingID. An existing row
// is reset to PROCESSING with the new correlation ids; a COMPLETED row is
// never touched and yields ErrPaymentCompleted.
func (r *PaymentRepository) SaveAttempt(ctx context.Context, p *domain.Payment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing paymentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", p.BookingID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.Status = domain.PaymentProcessing
			m := toPaymentModel(p)
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			*p = *toDomainPayment(m)
			return nil
		}
		if err != nil {
			return err
		}
		if existing.Status == string(domain.PaymentCompleted) {
			return ErrPaymentCompleted
		}

		method := p.Method
		if method == "" {
			method = domain.PaymentMethodMpesa
		}
		res := tx.Model(&paymentModel{}).
			Where("id = ? AND status <> ?", existing.ID, string(domain.PaymentCompleted)).
			Updates(map[string]interface{}{
				"user_id":             p.UserID,
				"amount":              p.Amount,
				"method":              method,
				"phone_number":        p.PhoneNumber,
				"merchant_request_id": p.MerchantRequestID,
				"checkout_request_id": p.CheckoutRequestID,
				"status":              string(domain.PaymentProcessing),
				"receipt_number":      nil,
				"paid_amount":         nil,
				"payer_phone":         nil,
				"result_code":         nil,
				"result_desc":         nil,
				"paid_at":             nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPaymentCompleted
		}

		var m paymentModel
		if err := tx.First(&m, existing.ID).Error; err != nil {
			return err
		}
		*p = *toDomainPayment(m)
		return nil
	})
	return translate(err)
}

// ApplyResult settles a PROCESSING payment and its booking in one
// transaction. Replays against a terminal payment change nothing.
func (r *PaymentRepository) ApplyResult(ctx context.Context, result domain.PaymentResult) (*AppliedResult, error) {
	out := &AppliedResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m paymentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("checkout_request_id = ?", result.CheckoutRequestID).
			First(&m).Error; err != nil {
			return err
		}
		if domain.PaymentStatus(m.Status).Terminal() {
			out.Payment = toDomainPayment(m)
			return nil
		}

		code := result.ResultCode
		updates := map[string]interface{}{
			"result_code": code,
			"result_desc": result.ResultDesc,
		}
		if result.Success {
			updates["status"] = string(domain.PaymentCompleted)
			updates["receipt_number"] = ptr(result.ReceiptNumber)
			updates["paid_amount"] = result.PaidAmount
			updates["payer_phone"] = ptr(result.PayerPhone)
			updates["paid_at"] = result.At
		} else {
			updates["status"] = string(domain.PaymentFailed)
		}

		res := tx.Model(&paymentModel{}).
			Where("id = ? AND status = ?", m.ID, string(domain.PaymentProcessing)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			out.Applied = true
			moved, err := transitionOnPayment(tx, m.BookingID, result.Success, result.At)
			if err != nil {
				return err
			}
			out.BookingTransitioned = moved
		}

		if err := tx.First(&m, m.ID).Error; err != nil {
			return err
		}
		out.Payment = toDomainPayment(m)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// ListStaleProcessing returns PROCESSING payments last touched before cutoff,
// oldest first.
func (r *PaymentRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var rows []paymentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(domain.PaymentProcessing), cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainPayment(m))
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
