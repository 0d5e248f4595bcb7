package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nablus1/TurfArena-booking/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	Reference       string     `gorm:"column:reference;size:40;uniqueIndex;not null"`
	UserID          int64      `gorm:"column:user_id;index;not null"`
	SlotID          int64      `gorm:"column:slot_id;index;not null"`
	TotalAmount     float64    `gorm:"column:total_amount;not null"`
	PlayerCount     int        `gorm:"column:player_count;not null"`
	Notes           *string    `gorm:"column:notes"`
	Status          string     `gorm:"column:status;size:20;index;not null;default:PENDING"`
	EntryToken      string     `gorm:"column:entry_token;size:64;uniqueIndex;not null"`
	IsValidated     bool       `gorm:"column:is_validated;not null;default:false"`
	ValidatedAt     *time.Time `gorm:"column:validated_at"`
	ValidatedBy     *int64     `gorm:"column:validated_by"`
	ValidationNotes *string    `gorm:"column:validation_notes"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	var notes, validationNotes string
	if m.Notes != nil {
		notes = *m.Notes
	}
	if m.ValidationNotes != nil {
		validationNotes = *m.ValidationNotes
	}

	return &domain.Booking{
		ID:              m.ID,
		Reference:       m.Reference,
		UserID:          m.UserID,
		SlotID:          m.SlotID,
		TotalAmount:     m.TotalAmount,
		PlayerCount:     m.PlayerCount,
		Notes:           notes,
		Status:          domain.BookingStatus(m.Status),
		EntryToken:      m.EntryToken,
		IsValidated:     m.IsValidated,
		ValidatedAt:     m.ValidatedAt,
		ValidatedBy:     m.ValidatedBy,
		ValidationNotes: validationNotes,
		CancelledAt:     m.CancelledAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	var notes, validationNotes *string
	if b.Notes != "" {
		v := b.Notes
		notes = &v
	}
	if b.ValidationNotes != "" {
		v := b.ValidationNotes
		validationNotes = &v
	}
	status := b.Status
	if status == "" {
		status = domain.BookingPending
	}

	return bookingModel{
		ID:              b.ID,
		Reference:       b.Reference,
		UserID:          b.UserID,
		SlotID:          b.SlotID,
		TotalAmount:     b.TotalAmount,
		PlayerCount:     b.PlayerCount,
		Notes:           notes,
		Status:          string(status),
		EntryToken:      b.EntryToken,
		IsValidated:     b.IsValidated,
		ValidatedAt:     b.ValidatedAt,
		ValidatedBy:     b.ValidatedBy,
		ValidationNotes: validationNotes,
		CancelledAt:     b.CancelledAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// CreateWithCapacity inserts b as a PENDING booking after checking the slot
// under a row lock, so the capacity check and the insert commit together.
// The booking amount is taken from the slot price.
func (r *BookingRepository) CreateWithCapacity(ctx context.Context, b *domain.Booking) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot slotModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&slot, b.SlotID).Error; err != nil {
			return err
		}
		if !slot.IsAvailable {
			return ErrSlotUnavailable
		}

		var active int64
		if err := tx.Model(&bookingModel{}).
			Where("slot_id = ? AND status IN ?", slot.ID, activeStatusStrings()).
			Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= slot.Capacity {
			return ErrSlotFull
		}

		b.TotalAmount = slot.Price
		b.Status = domain.BookingPending
		m := toBookingModel(b)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		*b = *toDomainBooking(m)
		return nil
	})
	return translate(err)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainBooking(m), nil
}

// GetDetails loads a booking with its slot, owner and payment.
func (r *BookingRepository) GetDetails(ctx context.Context, id int64) (*domain.BookingDetails, error) {
	var m bookingModel
	db := r.db.WithContext(ctx)
	if err := db.First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	out, err := hydrateBookings(db, []bookingModel{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// FindByCode resolves a gate code: entry token first, then reference.
func (r *BookingRepository) FindByCode(ctx context.Context, code string) (*domain.BookingDetails, error) {
	db := r.db.WithContext(ctx)
	var m bookingModel
	err := db.Where("entry_token = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("reference = ?", code).First(&m).Error
	}
	if err != nil {
		return nil, translate(err)
	}
	out, err := hydrateBookings(db, []bookingModel{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List returns one page of bookings matching f plus the total match count.
func (r *BookingRepository) List(ctx context.Context, f domain.BookingFilter) ([]domain.BookingDetails, int64, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&bookingModel{})
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC, id DESC"
	if f.Oldest {
		order = "created_at ASC, id ASC"
	}
	var rows []bookingModel
	if err := q.Order(order).Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out, err := hydrateBookings(db, rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CancelIfPending moves a PENDING booking to CANCELLED. It reports false when
// the booking had already left PENDING.
func (r *BookingRepository) CancelIfPending(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("id = ? AND status = ?", id, string(domain.BookingPending)).
		Updates(map[string]interface{}{
			"status":       string(domain.BookingCancelled),
			"cancelled_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// UpdateStatus sets a booking's status. Moving a booking from an inactive
// status back to PENDING or CONFIRMED re-checks the slot's capacity under
// the slot row lock, as CreateWithCapacity does.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m bookingModel
		if err := tx.First(&m, id).Error; err != nil {
			return err
		}

		if status.Active() && !domain.BookingStatus(m.Status).Active() {
			var slot slotModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&slot, m.SlotID).Error; err != nil {
				return err
			}
			var active int64
			if err := tx.Model(&bookingModel{}).
				Where("slot_id = ? AND id <> ? AND status IN ?", slot.ID, id, activeStatusStrings()).
				Count(&active).Error; err != nil {
				return err
			}
			if int(active) >= slot.Capacity {
				return ErrSlotFull
			}
		}

		updates := map[string]interface{}{"status": string(status)}
		switch {
		case status == domain.BookingCancelled:
			updates["cancelled_at"] = at
		case status.Active():
			updates["cancelled_at"] = nil
		}
		res := tx.Model(&bookingModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return translate(err)
}

// TransitionOnPaymentResult moves a PENDING booking to CONFIRMED or
// CANCELLED. Bookings that already left PENDING are left untouched.
func (r *BookingRepository) TransitionOnPaymentResult(ctx context.Context, id int64, success bool) (bool, error) {
	return transitionOnPayment(r.db.WithContext(ctx), id, success, time.Now().UTC())
}

func transitionOnPayment(tx *gorm.DB, bookingID int64, success bool, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": string(domain.BookingConfirmed)}
	if !success {
		updates["status"] = string(domain.BookingCancelled)
		updates["cancelled_at"] = at
	}
	res := tx.Model(&bookingModel{}).
		Where("id = ? AND status = ?", bookingID, string(domain.BookingPending)).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkValidated consumes the entry ticket. The write only lands while the
// booking is CONFIRMED, unvalidated and backed by a COMPLETED payment.
func (r *BookingRepository) MarkValidated(ctx context.Context, id, validatorID int64, notes string, at time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	paid := db.Model(&paymentModel{}).
		Select("1").
		Where("payments.booking_id = bookings.id AND payments.status = ?", string(domain.PaymentCompleted))

	updates := map[string]interface{}{
		"is_validated": true,
		"validated_at": at,
		"validated_by": validatorID,
	}
	if notes != "" {
		updates["validation_notes"] = notes
	}

	res := db.Model(&bookingModel{}).
		Where("id = ? AND is_validated = ? AND status = ?", id, false, string(domain.BookingConfirmed)).
		Where("EXISTS (?)", paid).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Delete removes a booking and its payment. Slots are never touched.
func (r *BookingRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", id).Delete(&paymentModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&bookingModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return translate(err)
}

func (r *BookingRepository) Analytics(ctx context.Context, dayStart, dayEnd time.Time) (*domain.Analytics, error) {
	db := r.db.WithContext(ctx)
	out := &domain.Analytics{ByStatus: map[domain.BookingStatus]int64{}}

	var byStatus []struct {
		Status string
		N      int64
	}
	if err := db.Model(&bookingModel{}).Select("status, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		out.ByStatus[domain.BookingStatus(row.Status)] = row.N
		out.TotalBookings += row.N
	}

	if err := db.Model(&bookingModel{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&out.TodayBookings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&bookingModel{}).Where("is_validated = ?", true).Count(&out.ValidatedTickets).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&paymentModel{}).
		Where("status = ?", string(domain.PaymentProcessing)).
		Count(&out.PendingPayments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&paymentModel{}).
		Where("status = ?", string(domain.PaymentCompleted)).
		Count(&out.CompletedPayments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&paymentModel{}).
		Select("COALESCE(SUM(COALESCE(paid_amount, amount)), 0)").
		Where("status = ?", string(domain.PaymentCompleted)).
		Scan(&out.Revenue).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func hydrateBookings(db *gorm.DB, rows []bookingModel) ([]domain.BookingDetails, error) {
	if len(rows) == 0 {
		return []domain.BookingDetails{}, nil
	}
	slotIDs := make([]int64, 0, len(rows))
	userIDs := make([]int64, 0, len(rows))
	bookingIDs := make([]int64, 0, len(rows))
	for _, m := range rows {
		slotIDs = append(slotIDs, m.SlotID)
		userIDs = append(userIDs, m.UserID)
		bookingIDs = append(bookingIDs, m.ID)
	}

	var slots []slotModel
	if err := db.Where("id IN ?", slotIDs).Find(&slots).Error; err != nil {
		return nil, err
	}
	var users []userModel
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	var payments []paymentModel
	if err := db.Where("booking_id IN ?", bookingIDs).Find(&payments).Error; err != nil {
		return nil, err
	}

	slotByID := make(map[int64]slotModel, len(slots))
	for _, s := range slots {
		slotByID[s.ID] = s
	}
	userByID := make(map[int64]userModel, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}
	paymentByBooking := make(map[int64]paymentModel, len(payments))
	for _, p := range payments {
		paymentByBooking[p.BookingID] = p
	}

	out := make([]domain.BookingDetails, 0, len(rows))
	for _, m := range rows {
		d := domain.BookingDetails{Booking: *toDomainBooking(m)}
		if s, ok := slotByID[m.SlotID]; ok {
			d.Slot = *toDomainSlot(s)
		}
		if u, ok := userByID[m.UserID]; ok {
			d.User = *toDomainUser(u)
		}
		if p, ok := paymentByBooking[m.ID]; ok {
			d.Payment = toDomainPayment(p)
		}
		out = append(out, d)
	}
	return out, nil
}
